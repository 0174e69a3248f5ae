package ir

import (
	"errors"
	"fmt"
)

// CompileError represents a failure detected while compiling a query.
//
// Compile errors include:
//   - Unsupported operator: no handler for an input result operator
//   - Unsupported method call: no transformer and no in-memory evaluator
//   - Unsupported expression shape: no text rule, or a complex value where a
//     single value is required
//   - Mapping resolution failure: the mapping resolver cannot resolve a type
//     or member
//
// All four are permanent for the compilation that raised them. There is no
// partial result and no retry.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the text form of the offending subtree.
	Node string
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates an input operator has no handler.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeUnsupportedMethodCall indicates a method call has no transformer.
	ErrCodeUnsupportedMethodCall ErrorCode = "UNSUPPORTED_METHOD_CALL"

	// ErrCodeUnsupportedExpression indicates an expression cannot be rendered
	// in the position it appears in.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION_SHAPE"

	// ErrCodeMappingFailure indicates the mapping resolver failed.
	ErrCodeMappingFailure ErrorCode = "MAPPING_RESOLUTION_FAILURE"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UnsupportedOperator creates a CompileError for an operator without a handler.
func UnsupportedOperator(node fmt.Stringer, format string, args ...any) *CompileError {
	return newCompileError(ErrCodeUnsupportedOperator, node, format, args...)
}

// UnsupportedMethodCall creates a CompileError for a method call without a transformer.
func UnsupportedMethodCall(node fmt.Stringer, format string, args ...any) *CompileError {
	return newCompileError(ErrCodeUnsupportedMethodCall, node, format, args...)
}

// UnsupportedExpression creates a CompileError for an expression shape that
// cannot be used where it appears.
func UnsupportedExpression(node fmt.Stringer, format string, args ...any) *CompileError {
	return newCompileError(ErrCodeUnsupportedExpression, node, format, args...)
}

// MappingFailure creates a CompileError for a mapping resolver failure.
func MappingFailure(node fmt.Stringer, format string, args ...any) *CompileError {
	return newCompileError(ErrCodeMappingFailure, node, format, args...)
}

func newCompileError(code ErrorCode, node fmt.Stringer, format string, args ...any) *CompileError {
	e := &CompileError{Code: code, Message: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Node = node.String()
	}
	return e
}

// CodeOf returns the ErrorCode of err, or "" when err is not a CompileError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnsupported returns true for the three "unsupported" categories.
func IsUnsupported(err error) bool {
	switch CodeOf(err) {
	case ErrCodeUnsupportedOperator, ErrCodeUnsupportedMethodCall, ErrCodeUnsupportedExpression:
		return true
	}
	return false
}

// IsMappingFailure returns true if the error is a mapping resolution failure.
func IsMappingFailure(err error) bool {
	return CodeOf(err) == ErrCodeMappingFailure
}
