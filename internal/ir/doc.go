// Package ir defines the records that a calculation produces and the store
// persists: sessions, calculation jobs, per-row results and summaries.
//
// This package contains type definitions and digests only. It imports
// nothing internal except the cell value model, so the store, the engine and
// the CLI can all share it without cycles.
//
// Key design constraints:
//   - A RowResult is the checkpoint unit: written once, never updated
//   - All JSON tags use snake_case
//   - No wall-clock timestamps in records; ordering comes from row numbers
package ir
