// Package config loads boqcalc settings from a CUE file.
//
// The file is unified with a closed schema, so unknown fields, wrong types
// and out-of-range values are rejected with the CUE position of the
// offending field. Fields left out take their schema defaults:
//
//	database:        "boqcalc.db"
//	workers:         50
//	memo_ttl:        "30m"
//	output_workbook: "Main Carriageway.xlsx"
//	input_workbooks: [
//		{name: "Pavement Input.xlsx", match: ["pavement"]},
//		...
//	]
//
// An empty input_workbooks list means the four standard input workbooks.
package config
