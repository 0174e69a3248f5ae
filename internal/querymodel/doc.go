// Package querymodel defines the input contract of the compiler: the
// abstract operation tree handed over by an upstream query parser.
//
// A QueryModel is a main from-clause, an ordered list of body clauses
// (additional from-clauses, joins, where and order-by clauses), a select
// clause, and an ordered list of result operators applied to the selected
// sequence.
//
// All node sets are closed. Expr, QuerySource, BodyClause and ResultOperator
// are sealed interfaces (marker methods) so that the preparation stage can
// use exhaustive type switches instead of visitors.
//
// Query sources are identified by their item name. A QuerySourceRef names
// the clause it refers to; references may reach outward from a sub-query
// into the enclosing query model (correlated sub-queries).
//
// Result operators that take a lambda (All, GroupBy, Aggregate) express the
// lambda body in terms of ItemRef, which stands for "the current item of the
// sequence the operator is applied to".
//
// The package also provides a strict YAML codec (Decode, DecodeFile) used by
// fixtures, golden scenarios and the CLI, and Validate, which reports shapes
// the compiler is known to reject before compilation starts.
package querymodel
