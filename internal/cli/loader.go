package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/relq/internal/mapping"
	"github.com/roach88/relq/internal/querymodel"
)

// LoadError represents an error that occurred while loading a mapping or a
// query document.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadMapping loads the mapping named by --mapping (or its config/env
// equivalent).
func LoadMapping(opts *RootOptions) (*mapping.Schema, error) {
	if opts.Mapping == "" {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "no mapping given: use --mapping, RELQ_MAPPING or .relq.yaml"}
	}
	if _, err := os.Stat(opts.Mapping); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mapping not found: %s", opts.Mapping), Err: err}
	}
	schema, err := mapping.Load(opts.Mapping)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeMapping, Message: err.Error(), Err: err}
	}
	return schema, nil
}

// LoadQuery decodes the query document at path against schema.
func LoadQuery(path string, schema *mapping.Schema) (*querymodel.QueryModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query not found: %s", path), Err: err}
	}
	model, err := querymodel.DecodeFile(path, schema)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeQuery, Message: err.Error(), Err: err}
	}
	return model, nil
}

// load runs LoadMapping and LoadQuery, reporting a failure through formatter
// as a command error.
func load(opts *RootOptions, formatter *OutputFormatter, queryPath string) (*mapping.Schema, *querymodel.QueryModel, error) {
	schema, err := LoadMapping(opts)
	if err != nil {
		return nil, nil, reportLoadError(formatter, err)
	}
	model, err := LoadQuery(queryPath, schema)
	if err != nil {
		return nil, nil, reportLoadError(formatter, err)
	}
	return schema, model, nil
}

func reportLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, code, err)
}
