// Package store persists BOQ calculation sessions in SQLite.
//
// The store holds four kinds of data:
//   - sessions and their lifecycle status
//   - extracted cells of the output workbook (cell_records), in load order
//   - read-only input workbook cells (input_cells)
//   - calculation checkpoints (row_results) and job progress (calculation_jobs)
//
// Row results are written with INSERT ... ON CONFLICT DO NOTHING against a
// UNIQUE(session_id, sheet, row_number) constraint. A row is therefore
// persisted at most once, and a resumed calculation can never duplicate work
// that already reached the store.
//
// Reads return empty slices, not nil, when nothing matches.
package store
