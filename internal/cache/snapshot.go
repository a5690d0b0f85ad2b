package cache

import (
	"strings"

	"github.com/roach88/boqcalc/internal/cell"
)

// Snapshot is a read-only view of a session's input workbooks, keyed by
// cell.Key. It is built once when a calculation opens and never mutated, so
// readers need no locking.
//
// The load is authoritative for every sheet it holds a cell of: a miss on
// such a sheet is a blank cell.
type Snapshot struct {
	cells  map[string]cell.Value
	sheets map[string]struct{}
}

// NewSnapshot takes ownership of cells, the complete input load of one
// session. Callers must not modify the map afterwards.
func NewSnapshot(cells map[string]cell.Value) *Snapshot {
	if cells == nil {
		cells = map[string]cell.Value{}
	}
	sheets := make(map[string]struct{})
	for key := range cells {
		if i := strings.LastIndexByte(key, ':'); i > 0 {
			sheets[key[:i]] = struct{}{}
		}
	}
	return &Snapshot{cells: cells, sheets: sheets}
}

// Get returns the value at key. A miss is a blank cell only when the
// snapshot covers the key's sheet.
func (s *Snapshot) Get(key string) (cell.Value, bool) {
	if s == nil {
		return cell.Value{}, false
	}
	v, ok := s.cells[key]
	return v, ok
}

// Covers reports whether the load held cells of the sheet.
func (s *Snapshot) Covers(workbook, sheet string) bool {
	if s == nil {
		return false
	}
	_, ok := s.sheets[cell.SheetKey(workbook, sheet)]
	return ok
}

// Len returns the number of cells held.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.cells)
}
