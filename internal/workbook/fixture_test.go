package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/cell"
)

const sampleFixture = `
session: demo
output:
  sheets:
    - name: Abstract
      cells:
        C1: =B1*2
        A1: Item
        B1: 10
        D1: "#N/A"
        E1: true
        F1: ~
inputs:
  - file: pavement_input_v2.xlsx
    sheets:
      - name: Pavement Input
        cells:
          C5: 12.5
          C6: "Ch 100"
  - name: Emb Height.xlsx
    sheets:
      - name: Data
        cells:
          A1: 1000
`

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)
	assert.Equal(t, "demo", f.Session)

	cells := f.Output.Sheets[0].Cells
	require.Len(t, cells, 6)

	// document order is preserved
	assert.Equal(t, "C1", cells[0].Address.String())
	assert.True(t, cells[0].IsFormula)
	assert.Equal(t, "=B1*2", cells[0].Formula)

	assert.Equal(t, cell.Text("Item"), cells[1].Value)
	assert.Equal(t, cell.Number(10), cells[2].Value)
	assert.Equal(t, cell.Error(cell.ErrNA), cells[3].Value)
	assert.Equal(t, cell.Bool(true), cells[4].Value)
	assert.Equal(t, cell.Empty, cells[5].Value)
}

func TestFixture_Records(t *testing.T) {
	f, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)

	output, inputs, err := f.Records(Default())
	require.NoError(t, err)
	require.Len(t, output, 6)
	require.Len(t, inputs, 3)

	assert.Equal(t, MainCarriageway, output[0].Workbook)
	assert.Equal(t, "Abstract", output[0].Sheet)

	assert.Equal(t, PavementInput, inputs[0].Workbook)
	assert.Equal(t, cell.Number(12.5), inputs[0].Value)
	assert.Equal(t, EmbHeight, inputs[2].Workbook)
	assert.Equal(t, cell.Number(1000), inputs[2].Value)
}

func TestFixture_Records_Errors(t *testing.T) {
	unknown := `
output:
  sheets:
    - name: S
      cells: {A1: 1}
inputs:
  - file: budget.xlsx
    sheets: []
`
	f, err := ParseFixture([]byte(unknown))
	require.NoError(t, err)
	_, _, err = f.Records(Default())
	assert.ErrorContains(t, err, "cannot classify")

	formulaInInput := `
output:
  sheets:
    - name: S
      cells: {A1: 1}
inputs:
  - name: TCS Input.xlsx
    sheets:
      - name: T
        cells: {A1: =B1}
`
	f, err = ParseFixture([]byte(formulaInInput))
	require.NoError(t, err)
	_, _, err = f.Records(Default())
	assert.ErrorContains(t, err, "formulas are not allowed")
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "output: {sheets: [{name: S, cells: {A1: 1}}]}\nextra: 1\n",
		"no sheets":      "session: x\noutput: {sheets: []}\n",
		"bad address":    "output: {sheets: [{name: S, cells: {A0: 1}}]}\n",
		"duplicate cell": "output: {sheets: [{name: S, cells: {A1: 1, $A$1: 2}}]}\n",
		"nested value":   "output: {sheets: [{name: S, cells: {A1: [1, 2]}}]}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixture([]byte(doc))
			assert.Error(t, err)
		})
	}
}
