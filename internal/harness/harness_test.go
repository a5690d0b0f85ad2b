package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

func TestRunWithGolden_PavementAbstract(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "pavement_abstract.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Sheets, 1)
	assert.Equal(t, "Abstract", result.Sheets[0].Name)
}

func TestRun_LoopCycles(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "loop_cycles.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, &ir.Summary{
		RowsProcessed:   1,
		CellsProcessed:  3,
		SuccessfulCells: 1,
		FailedCells:     2,
		RowsSaved:       1,
	}, result.Trace[0].Summary)
	assert.Nil(t, result.Trace[1].Summary)
	assert.Contains(t, result.Trace[1].Error, "NO_RECORDS")
	assert.Equal(t, int64(2), result.Trace[1].Seq)

	require.Len(t, result.Sheets, 2)
	assert.Empty(t, result.Sheets[1].Rows)
}

func TestRun_FailedExpectations(t *testing.T) {
	path := writeScenario(t, `
name: wrong
description: "Every expectation is off"
fixture: `+fixturePath(t)+`
flow:
  - calculate: Abstract
    expect:
      summary: { failed_cells: 0 }
  - calculate: Missing
assertions:
  - type: cell_value
    sheet: Abstract
    cell: D4
    value: 501
  - type: cell_value
    sheet: Abstract
    cell: Z9
    value: 1
  - type: cell_error
    sheet: Abstract
    cell: D2
    error: anything
  - type: formula
    sheet: Abstract
    formula: =D2
    error: DOMAIN
  - type: formula
    sheet: Abstract
    formula: =C3
    value: 1
  - type: summary
    sheet: Abstract
    expect: { rows_processed: 3 }
  - type: job_status
    status: failed
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 9)
	assert.Contains(t, result.Errors[0], "failed_cells: expected 0, got 1")
	assert.Contains(t, result.Errors[1], "NO_RECORDS")
	assert.Contains(t, result.Errors[2], "got 500")
	assert.Contains(t, result.Errors[3], "no outcome")
	assert.Contains(t, result.Errors[4], "got success")
	assert.Contains(t, result.Errors[8], "got completed")
}

func TestRun_MissingFixtureSession(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fx.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(`
output:
  sheets:
    - name: Sheet1
      cells:
        A1: 2
        B1: =A1*21
`), 0o644))

	path := writeScenario(t, `
name: default_session
description: "Session falls back to the default"
fixture: `+fixture+`
flow:
  - calculate: Sheet1
assertions:
  - type: cell_value
    sheet: Sheet1
    cell: B1
    value: 42
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Sheets, 1)
	require.Len(t, result.Sheets[0].Rows, 1)
	assert.Equal(t, DefaultSession, result.Sheets[0].Rows[0].SessionID)
}

func TestChangedRows(t *testing.T) {
	before := map[int]string{2: "a", 3: "b", 4: "c", 5: "d"}
	after := map[int]string{2: "a", 3: "x", 5: "d", 6: "new"}

	assert.Equal(t, []int{3, 4}, changedRows(before, after))
	assert.Empty(t, changedRows(before, before))
	assert.Empty(t, changedRows(nil, after), "a sheet never calculated before the reset has nothing to compare")
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name      string
		want, got cell.Value
		match     bool
	}{
		{"exact", cell.Number(500), cell.Number(500), true},
		{"within tolerance", cell.Number(0.3), cell.Number(0.1 + 0.2), true},
		{"outside tolerance", cell.Number(500), cell.Number(500.01), false},
		{"text", cell.Text("Item"), cell.Text("Item"), true},
		{"text differs", cell.Text("Item"), cell.Text("item"), false},
		{"error kinds", cell.Error(cell.ErrDiv0), cell.Error(cell.ErrDiv0), true},
		{"error vs number", cell.Error(cell.ErrDiv0), cell.Number(0), false},
		{"number vs error", cell.Number(0), cell.Error(cell.ErrDiv0), false},
		{"bool", cell.Bool(true), cell.Bool(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, matchValue(tt.want, tt.got))
		})
	}
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.addTrace(TraceEvent{Type: EventCalculate, Sheet: "S", Error: "boom"})
	result.addTrace(TraceEvent{Type: EventReset, Sheet: "S"})

	assert.Equal(t, "scenario x\ntrace\n  1 calculate S error: boom\n  2 reset S rows=0\n",
		string(Render("x", result)))
}

// fixturePath returns the absolute path of the shared fixture.
func fixturePath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "scenarios", "fixtures", "abstract.yaml"))
	require.NoError(t, err)
	return p
}

// writeScenario writes YAML to a temp scenario file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
