// Package harness runs compiler conformance scenarios.
//
// A scenario pairs a query (in the querymodel YAML form) with a mapping and
// a list of assertions about the compiled command. Scenarios are the
// executable form of the compiler's observable contract: the exact command
// text, the parameter order, the join count, the projection shape, or the
// error a query must fail with.
//
// # Scenario Format
//
//	name: filter_by_name
//	description: "Filter cooks by name"
//	mapping: kitchen.yaml
//	query:
//	  from: {name: c, table: Cook}
//	  clauses:
//	    - where: {op: "==", left: {path: c.Name}, right: {const: Huber}}
//	  select: {path: c.FirstName}
//	assertions:
//	  - type: sql_equals
//	    sql: "SELECT [t0].[FirstName] AS [value] FROM [CookTable] AS [t0] WHERE ([t0].[Name] = @1)"
//	  - type: parameters
//	    values: [Huber]
//
// # Assertion Types
//
//   - sql_equals: the command text equals sql
//   - sql_contains: the command text contains text
//   - sql_not_contains: the command text does not contain text
//   - sql_count: text occurs exactly count times in the command text
//   - parameters: the parameter values, in @1..@n order, equal values
//   - projection: the projection's text form equals text
//   - error: compilation fails with code
//
// # Golden Files
//
// RunWithGolden snapshots the command (text, parameters, projection) as
// canonical JSON under testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
