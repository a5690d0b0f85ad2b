package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/ir"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// importedDB returns a temp database holding testdata/session.yaml as s1.
func importedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "boq.db")
	_, err := execute(t, "--db", db, "import", filepath.Join("testdata", "session.yaml"))
	require.NoError(t, err)
	return db
}

func TestImportCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "boq.db")
	fixture := filepath.Join("testdata", "session.yaml")

	out, err := execute(t, "--db", db, "import", fixture)
	require.NoError(t, err)
	assert.Equal(t, "Imported session s1: 19 output cells on 3 sheets, 1 input cells\n", out)

	out, err = execute(t, "--db", db, "import", fixture)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")

	out, err = execute(t, "--db", db, "--format", "json", "import", "--session", "s2", fixture)
	require.NoError(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ImportResult{
		Session:     "s2",
		Workbook:    "Main Carriageway.xlsx",
		Sheets:      []string{"Abstract", "Loop", "Rates"},
		OutputCells: 19,
		InputCells:  1,
	}, resp.Data)
}

func TestImportCommand_BadFixture(t *testing.T) {
	db := filepath.Join(t.TempDir(), "boq.db")

	_, err := execute(t, "--db", db, "import", filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEvalCommand(t *testing.T) {
	db := importedDB(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default sheet", []string{"=D2"}, "500\n"},
		{"range", []string{"=SUM(D2:D3)"}, "500\n"},
		{"input workbook", []string{"='[Pavement Input.xlsx]Input'!B2/8"}, "5\n"},
		{"other sheet", []string{"--sheet", "Loop", "=C1*6"}, "42\n"},
		{"text", []string{`=IF(D4>100,"big","small")`}, "big\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "eval", "--session", "s1"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEvalCommand_Failures(t *testing.T) {
	db := importedDB(t)

	out, err := execute(t, "--db", db, "eval", "--session", "s1", "=C3+1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]: DOMAIN")
	assert.Contains(t, out, "#DIV/0!")

	out, err = execute(t, "--db", db, "--format", "json", "eval", "--session", "s1", "=C3+1")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeEvaluation, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "DOMAIN", details["code"])

	out, err = execute(t, "--db", db, "eval", "--session", "nope", "=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")

	out, err = execute(t, "--db", db, "eval", "--session", "s1", "=SUM(D2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]: invalid formula")

	_, err = execute(t, "--db", db, "eval", "=1")
	require.Error(t, err, "--session is required")
}

func TestCellCommand(t *testing.T) {
	db := importedDB(t)

	out, err := execute(t, "--db", db, "cell", "--session", "s1", "Abstract", "$D$2")
	require.NoError(t, err)
	assert.Equal(t, "Abstract!D2 = 500\n  formula: =ROUND(B2*C2,2)\n", out)

	out, err = execute(t, "--db", db, "cell", "--session", "s1", "Abstract", "C3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Abstract!C3 = #DIV/0!")
	assert.Contains(t, out, "error: DOMAIN: division by zero")

	out, err = execute(t, "--db", db, "cell", "--session", "s1", "Abstract", "Z99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCalcProgressResults(t *testing.T) {
	db := importedDB(t)

	out, err := execute(t, "--db", db, "progress", "--session", "s1")
	require.NoError(t, err)
	assert.Equal(t, "No calculation has run for session s1.\n", out)

	out, err = execute(t, "--db", db, "calc", "--session", "s1", "--workers", "2", "Abstract")
	require.Error(t, err, "a failed cell fails the command")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Calculated Abstract (session s1): 4 rows, 14 cells, 13 ok, 1 failed, 4 rows saved")

	out, err = execute(t, "--db", db, "--format", "json", "calc", "--session", "s1", "Rates")
	require.NoError(t, err)
	var calc struct {
		Status string     `json:"status"`
		Data   CalcResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &calc))
	assert.Equal(t, "Rates", calc.Data.Sheet)
	assert.Equal(t, 1, calc.Data.Summary.RowsProcessed)
	assert.Equal(t, 2, calc.Data.Summary.SuccessfulCells)
	require.NotNil(t, calc.Data.Job)
	assert.Len(t, calc.Data.Job.CalculationID, 36)
	assert.Equal(t, ir.JobCompleted, calc.Data.Job.Status, "the job is read back after the run")
	assert.Equal(t, 1, calc.Data.Job.CompletedRows)

	out, err = execute(t, "--db", db, "progress", "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "completed on Rates: 1/1 rows (100.0%)")

	out, err = execute(t, "--db", db, "results", "--session", "s1", "Abstract")
	require.NoError(t, err)
	assert.Contains(t, out, "Abstract (session s1) rows=4 cells=14 ok=13 failed=1 saved=4\n")
	assert.Contains(t, out, "  C3 | #DIV/0! | DOMAIN: division by zero | =C2/0\n")
	assert.Contains(t, out, "  D4 | 500 | ok | =SUM(D2:D3)\n")

	out, err = execute(t, "--db", db, "results", "--session", "s1", "--failed", "Abstract")
	require.NoError(t, err)
	assert.Contains(t, out, "row 3 ")
	assert.NotContains(t, out, "row 2 ")

	out, err = execute(t, "--db", db, "calc", "--session", "s1", "--reset", "Rates")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows, 2 cells, 2 ok, 0 failed, 1 rows saved")
}

func TestCalcCommand_Errors(t *testing.T) {
	db := importedDB(t)

	out, err := execute(t, "--db", db, "calc", "--session", "s1", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	_, err = execute(t, "--db", db, "calc", "--session", "s1", "--workers", "-1", "Abstract")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, "explain", "=SUM(A1:B3)+Sheet2!C4")
	require.NoError(t, err)
	assert.Equal(t, `formula: =SUM(A1:B3)+Sheet2!C4
tree: (SUM(A1:B3)+'Sheet2'!C4)
dependencies:
  A1:B3
  'Sheet2'!C4
references:
  A1:B3
  Sheet2!C4
`, out)

	out, err = execute(t, "explain", "=SUM(A1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "parse error:")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "boqcalc.cue")
	require.NoError(t, os.WriteFile(bad, []byte("workers: 0\n"), 0o644))

	out, err := execute(t, "--config", bad, "--db", filepath.Join(dir, "boq.db"), "progress", "--session", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]")

	good := filepath.Join(dir, "good.cue")
	require.NoError(t, os.WriteFile(good, []byte("database: \""+filepath.Join(dir, "cfg.db")+"\"\nworkers: 2\n"), 0o644))
	_, err = execute(t, "--config", good, "import", filepath.Join("testdata", "session.yaml"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cfg.db"))
}
