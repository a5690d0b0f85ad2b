// Package workbook knows which workbooks make up a BOQ session.
//
// A Registry maps the many spellings of a workbook name that appear in
// formulas and upload file names ("[pavement input.xlsx]",
// "Pavement_Input_v3.xlsx") to one canonical name, and says whether it is
// the output workbook or a read-only input.
//
// Fixtures are YAML documents holding extracted cells. They feed the store
// in tests and in the import command.
package workbook
