package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

const (
	testOutput = "Main Carriageway.xlsx"
	testInput  = "Pavement Input.xlsx"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// valueRecord creates an output record holding a constant.
func valueRecord(sheet, addr string, v cell.Value) cell.Record {
	return cell.Record{Workbook: testOutput, Sheet: sheet, Address: cell.MustParseAddress(addr), Value: v}
}

// formulaRecord creates an output record holding a formula.
func formulaRecord(sheet, addr, formula string) cell.Record {
	return cell.Record{Workbook: testOutput, Sheet: sheet, Address: cell.MustParseAddress(addr), IsFormula: true, Formula: formula}
}

// inputCell creates an input workbook cell.
func inputCell(sheet, addr string, v cell.Value) cell.Record {
	return cell.Record{Workbook: testInput, Sheet: sheet, Address: cell.MustParseAddress(addr), Value: v}
}

// importTestSession loads a small session with two output rows and a
// 2x2 input block.
func importTestSession(t *testing.T, s *Store, sessionID string) {
	t.Helper()
	output := []cell.Record{
		valueRecord("Abstract", "A1", cell.Text("Item")),
		formulaRecord("Abstract", "B1", "=A2*2"),
		valueRecord("Abstract", "A2", cell.Number(3)),
		formulaRecord("Abstract", "B2", "='[Pavement Input.xlsx]Input'!B2"),
		valueRecord("Summary", "A1", cell.Number(1)),
	}
	inputs := []cell.Record{
		inputCell("Input", "A1", cell.Number(1)),
		inputCell("Input", "B1", cell.Text("x")),
		inputCell("Input", "B2", cell.Number(4)),
	}
	if err := s.ImportSession(context.Background(), sessionID, output, inputs); err != nil {
		t.Fatalf("ImportSession() failed: %v", err)
	}
}

// testRow creates a row result with the given succeeded/failed cell counts.
func testRow(sessionID, sheet string, row, succeeded, failed int) ir.RowResult {
	r := ir.RowResult{SessionID: sessionID, Sheet: sheet, RowNumber: row, CalculationID: "calc-1"}
	for i := 0; i < succeeded; i++ {
		r.Cells = append(r.Cells, ir.CellOutcome{
			Address:   cell.Address{Col: i + 1, Row: row}.String(),
			Sheet:     sheet,
			Value:     cell.Number(float64(i)),
			Succeeded: true,
		})
	}
	for i := 0; i < failed; i++ {
		r.Cells = append(r.Cells, ir.CellOutcome{
			Address:    cell.Address{Col: succeeded + i + 1, Row: row}.String(),
			Sheet:      sheet,
			WasFormula: true,
			Value:      cell.Error(cell.ErrDiv0),
			Error:      "DOMAIN: division by zero",
		})
	}
	return r
}
