// Package harness runs calculation scenarios against a real engine and
// store, for regression tests and the "boqcalc test" command.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: pavement_abstract
//	description: "Abstract sheet quantities and rates"
//	fixture: fixtures/abstract.yaml
//	workers: 4
//	flow:
//	  - calculate: Abstract
//	    expect:
//	      summary: { rows_processed: 4, failed_cells: 1 }
//	  - reset: Abstract
//	  - calculate: Abstract
//	    workers: 1
//	assertions:
//	  - type: cell_value
//	    sheet: Abstract
//	    cell: D4
//	    value: 500
//	  - type: formula
//	    sheet: Abstract
//	    formula: =SUM(D2:D3)
//	    value: 500
//
// The fixture path is relative to the scenario file. Each scenario runs
// in a fresh SQLite database in a temporary directory, with calculation
// IDs "calc-0001", "calc-0002"... so that snapshots are reproducible.
//
// # Assertion Types
//
//   - cell_value: the checkpointed value of an output cell
//   - cell_error: a checkpointed cell failed with a message containing error
//   - formula: evaluating formula text on sheet gives value, or fails with
//     the evaluation error code in error
//   - summary: a subset of the sheet summary counters
//   - job_status: status of the session's latest calculation job
//
// # Golden Snapshots
//
// Render prints the trace and the final rows of every calculated sheet.
// RunWithGolden and AssertGolden compare that text with
// testdata/golden/<name>.golden.
package harness
