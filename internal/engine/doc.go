// Package engine runs row-parallel, resumable calculations over the output
// sheet of a session.
//
// A calculation takes the sheet's cell records, groups them by row and hands
// each row that has no checkpoint yet to a bounded pool of workers
// (golang.org/x/sync/errgroup). A worker evaluates the row's cells in load
// order through the eval package and persists the row as one checkpoint.
//
// Lifecycle of a run:
//
//  1. Records loaded and grouped; checkpointed rows skipped
//  2. Job created, session marked calculating
//  3. Session snapshot opened (one bulk load, shared by all workers)
//  4. Rows evaluated and saved; progress published after every row
//  5. Snapshot released and session memo cleared
//  6. Job and session moved to their terminal status
//
// Failure model:
//
// A cell that fails to evaluate (division by zero, bad reference, cycle)
// is recorded with succeeded=false and its error value; the rest of the row
// and the job continue. A store failure or context cancellation aborts the
// run. Rows saved before the abort stay saved, and the next RunCalculation
// resumes with the rows that are missing.
//
// Idempotency:
//
// Row checkpoints are written with ON CONFLICT DO NOTHING on
// (session, sheet, row). Re-running a completed sheet writes nothing and
// reports the same summary.
package engine
