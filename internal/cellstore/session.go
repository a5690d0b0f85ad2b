package cellstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
)

// Source is the persistent side of the adapter. Implemented by *store.Store.
type Source interface {
	LoadSessionSnapshot(ctx context.Context, sessionID string) (map[string]cell.Value, error)
	GetInputCell(ctx context.Context, sessionID, workbook, sheet string, addr cell.Address) (cell.Value, bool, error)
	GetInputRange(ctx context.Context, sessionID, workbook, sheet string, r cell.Range) ([]cell.Value, error)
}

// Session is an open calculation session: the input cells of one upload,
// bulk-loaded once and read by every row worker.
//
// Reads on a sheet the snapshot covers never touch the store: a cell missing
// from it is Empty. Only sheets the load held no cell of fall back to the
// store.
//
// Thread-safety: Session is safe for concurrent use. The snapshot is never
// modified after Open.
type Session struct {
	id   string
	src  Source
	snap *cache.Snapshot

	hits     atomic.Int64
	fallback atomic.Int64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GetCell reads one input cell.
func (s *Session) GetCell(ctx context.Context, workbook, sheet string, addr cell.Address) (cell.Value, error) {
	if v, ok := s.snap.Get(cell.Key(workbook, sheet, addr)); ok {
		s.hits.Add(1)
		return v, nil
	}
	if s.snap.Covers(workbook, sheet) {
		s.hits.Add(1)
		return cell.Empty, nil
	}
	s.fallback.Add(1)
	v, _, err := s.src.GetInputCell(ctx, s.id, workbook, sheet, addr)
	if err != nil {
		return cell.Value{}, fmt.Errorf("read %s: %w", cell.Key(workbook, sheet, addr), err)
	}
	return v, nil
}

// GetRange reads a rectangular block of input cells in row-major order.
// Blank cells are Empty. The store is queried once, and only when the
// snapshot does not cover the sheet.
func (s *Session) GetRange(ctx context.Context, workbook, sheet string, r cell.Range) ([]cell.Value, error) {
	if s.snap.Covers(workbook, sheet) {
		values := make([]cell.Value, 0, r.Len())
		for addr := range r.Cells() {
			v, _ := s.snap.Get(cell.Key(workbook, sheet, addr))
			values = append(values, v)
		}
		s.hits.Add(int64(len(values)))
		return values, nil
	}

	s.fallback.Add(1)
	values, err := s.src.GetInputRange(ctx, s.id, workbook, sheet, r)
	if err != nil {
		return nil, fmt.Errorf("read range %s!%s: %w", sheet, r, err)
	}
	return values, nil
}

// Stats reports snapshot hits and store fallbacks.
func (s *Session) Stats() (hits, fallbacks int64) {
	return s.hits.Load(), s.fallback.Load()
}

// Size is the number of cells in the snapshot.
func (s *Session) Size() int { return s.snap.Len() }
