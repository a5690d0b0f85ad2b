package eval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/workbook"
)

const (
	outWB   = workbook.MainCarriageway
	inWB    = workbook.PavementInput
	sheet   = "Abstract"
	session = "s1"
)

// fakeRecords is an in-memory output workbook.
type fakeRecords struct {
	records map[string]cell.Record
	reads   atomic.Int32
	err     error
}

func (f *fakeRecords) GetRecord(ctx context.Context, sessionID, wb, sh string, addr cell.Address) (cell.Record, bool, error) {
	f.reads.Add(1)
	if f.err != nil {
		return cell.Record{}, false, f.err
	}
	r, ok := f.records[cell.Key(wb, sh, addr)]
	return r, ok, nil
}

// fakeInputs is an in-memory input session.
type fakeInputs struct {
	cells map[string]cell.Value
}

func (f *fakeInputs) GetCell(ctx context.Context, wb, sh string, addr cell.Address) (cell.Value, error) {
	return f.cells[cell.Key(wb, sh, addr)], nil
}

func (f *fakeInputs) GetRange(ctx context.Context, wb, sh string, r cell.Range) ([]cell.Value, error) {
	out := make([]cell.Value, 0, r.Len())
	for a := range r.Cells() {
		out = append(out, f.cells[cell.Key(wb, sh, a)])
	}
	return out, nil
}

type env struct {
	t       *testing.T
	records *fakeRecords
	inputs  *fakeInputs
	ev      *Evaluator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:       t,
		records: &fakeRecords{records: make(map[string]cell.Record)},
		inputs:  &fakeInputs{cells: make(map[string]cell.Value)},
	}
	e.ev = New(workbook.Default(), e.records, WithMemo(cache.NewMemo(nil), 0))
	return e
}

// formula adds a formula cell to the output workbook.
func (e *env) formula(sh, addr, text string) {
	a := cell.MustParseAddress(addr)
	e.records.records[cell.Key(outWB, sh, a)] = cell.Record{Workbook: outWB, Sheet: sh, Address: a, IsFormula: true, Formula: text}
}

// value adds a constant cell to the output workbook.
func (e *env) value(sh, addr string, v cell.Value) {
	a := cell.MustParseAddress(addr)
	e.records.records[cell.Key(outWB, sh, a)] = cell.Record{Workbook: outWB, Sheet: sh, Address: a, Value: v}
}

// input adds a cell to the pavement input workbook.
func (e *env) input(sh, addr string, v cell.Value) {
	e.inputs.cells[cell.Key(inWB, sh, cell.MustParseAddress(addr))] = v
}

func (e *env) ctx() *Context {
	return NewContext(session, sheet, e.inputs)
}

func (e *env) eval(text string) (cell.Value, error) {
	e.t.Helper()
	return e.ev.EvaluateText(context.Background(), text, e.ctx())
}

// cellValue evaluates an output cell the way a row worker does.
func (e *env) cellValue(sh, addr string) (cell.Value, error) {
	e.t.Helper()
	rec := e.records.records[cell.Key(outWB, sh, cell.MustParseAddress(addr))]
	return e.ev.EvaluateRecord(context.Background(), rec, NewContext(session, sh, e.inputs))
}

var errDisk = errors.New("disk failure")
