// Package sqlstmt is the statement model shared by every compiler stage.
//
// A Statement is the structured form of one SELECT: projection, tables with
// their joins, where condition, grouping, orderings, TOP, DISTINCT, row-number
// paging and set operations. Statements are immutable once built; the
// preparation stage assembles them with a Builder and each later stage
// produces a new tree, returning the original pointer for any subtree it
// did not change. Callers rely on that for cheap "unchanged" checks:
//
//	resolved, _ := resolve.Resolve(stmt, ctx)
//	again, _ := resolve.Resolve(resolved, ctx2)
//	// again == resolved
//
// Expression is a sealed interface over a closed set of node kinds. Every
// node reports its static Type and renders a diagnostic text form with
// String; compile errors name the offending subtree by that form.
//
// Tables carry a TableInfo (unresolved, resolved simple table, sub-statement,
// or unresolved collection navigation) and the joins hanging off them. Joins
// are LEFT OUTER and are keyed by the member they navigate.
//
// UniqueIdentifierGenerator hands out aliases (t0, q1, t2, ...) from a single
// counter. One generator belongs to exactly one compilation.
package sqlstmt
