package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/ir"
	"github.com/roach88/boqcalc/internal/store"
	"github.com/roach88/boqcalc/internal/testutil"
	"github.com/roach88/boqcalc/internal/workbook"
)

const (
	testSession = "s1"
	testSheet   = "Abstract"
)

// newTestStore opens a fresh SQLite store in a temp dir.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// importFixture loads testdata/abstract.yaml as sessionID.
func importFixture(t *testing.T, st *store.Store, sessionID string) {
	t.Helper()
	fx, err := workbook.LoadFixture(filepath.Join("testdata", "abstract.yaml"))
	require.NoError(t, err)
	output, inputs, err := fx.Records(workbook.Default())
	require.NoError(t, err)
	require.NoError(t, st.ImportSession(context.Background(), sessionID, output, inputs))
}

// newTestEngine returns an engine over a store holding the fixture as
// testSession, with deterministic calculation IDs.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	importFixture(t, st, testSession)
	opts = append([]Option{WithIDGenerator(testutil.NewSequenceIDGenerator("calc"))}, opts...)
	return New(st, opts...), st
}

// renderRows prints row results one cell per line for golden comparison.
func renderRows(rows []ir.RowResult) []byte {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "row %d %s\n", r.RowNumber, r.CalculationID)
		for _, c := range r.Cells {
			status := "ok"
			if !c.Succeeded {
				status = c.Error
			}
			fmt.Fprintf(&b, "  %s | %s | %s", c.Address, c.Value, status)
			if c.WasFormula {
				fmt.Fprintf(&b, " | %s", c.SourceFormula)
			}
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// assertReleased checks that no run still holds the test session open: a
// released session reloads its snapshot with fresh counters.
func assertReleased(t *testing.T, e *Engine) {
	t.Helper()
	sess, err := e.opener.Open(context.Background(), testSession)
	require.NoError(t, err)
	defer e.opener.Release(testSession)
	hits, fallbacks := sess.Stats()
	assert.Zero(t, hits+fallbacks, "snapshot is released when the run ends")
}

// progressLog collects observer callbacks.
type progressLog struct {
	jobs []ir.Job
}

func (p *progressLog) observe(j ir.Job) {
	p.jobs = append(p.jobs, j)
}

// failingStore fails SaveRowResult for one row.
type failingStore struct {
	*store.Store
	failRow int
}

func (f *failingStore) SaveRowResult(ctx context.Context, r ir.RowResult) (bool, error) {
	if r.RowNumber == f.failRow {
		return false, fmt.Errorf("disk full")
	}
	return f.Store.SaveRowResult(ctx, r)
}
