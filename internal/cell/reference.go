package cell

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reference names a cell or range, optionally qualified by workbook and sheet.
// A reference with neither is local and takes the evaluating cell's sheet.
type Reference struct {
	Workbook string
	Sheet    string
	Range    Range
}

// IsLocal reports whether the reference carries no workbook or sheet.
func (r Reference) IsLocal() bool {
	return r.Workbook == "" && r.Sheet == ""
}

// IsRange reports whether the reference spans more than one cell.
func (r Reference) IsRange() bool {
	return r.Range.Start != r.Range.End
}

// Address returns the single addressed cell (the top-left corner for ranges).
func (r Reference) Address() Address {
	return r.Range.Start
}

// String renders the reference in formula syntax.
func (r Reference) String() string {
	var b strings.Builder
	switch {
	case r.Workbook != "":
		b.WriteString("'[")
		b.WriteString(r.Workbook)
		b.WriteString("]")
		b.WriteString(r.Sheet)
		b.WriteString("'!")
	case r.Sheet != "":
		b.WriteString("'")
		b.WriteString(r.Sheet)
		b.WriteString("'!")
	}
	b.WriteString(r.Range.String())
	return b.String()
}

// Key builds the fully-qualified cache key "workbook:sheet:ADDR".
// Workbook and sheet names are NFC-normalized so that visually identical
// names extracted from different files share a key.
func Key(workbook, sheet string, addr Address) string {
	return SheetKey(workbook, sheet) + ":" + addr.String()
}

// SheetKey is the "workbook:sheet" prefix of every Key on that sheet.
func SheetKey(workbook, sheet string) string {
	return norm.NFC.String(workbook) + ":" + norm.NFC.String(sheet)
}

// Record is one extracted cell of the output workbook.
// Formula is meaningful when IsFormula is set, Value otherwise.
type Record struct {
	Workbook  string
	Sheet     string
	Address   Address
	IsFormula bool
	Formula   string
	Value     Value
}

// Key returns the record's fully-qualified key.
func (r Record) Key() string {
	return Key(r.Workbook, r.Sheet, r.Address)
}
