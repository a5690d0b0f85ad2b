package engine

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/cellstore"
	"github.com/roach88/boqcalc/internal/eval"
	"github.com/roach88/boqcalc/internal/ir"
	"github.com/roach88/boqcalc/internal/workbook"
)

// Store is everything the engine reads and writes. Implemented by
// *store.Store.
type Store interface {
	eval.Records
	cellstore.Source

	GetSession(ctx context.Context, sessionID string) (ir.Session, error)
	SetSessionStatus(ctx context.Context, sessionID string, status ir.SessionStatus, errMsg string) error

	ListSheetRecords(ctx context.Context, sessionID, workbook, sheet string) ([]cell.Record, error)
	CompletedRows(ctx context.Context, sessionID, sheet string) (map[int]bool, error)
	SaveRowResult(ctx context.Context, r ir.RowResult) (bool, error)
	SummarizeRows(ctx context.Context, sessionID, sheet string) (ir.Summary, error)
	DeleteRowResults(ctx context.Context, sessionID, sheet string) (int64, error)

	CreateJob(ctx context.Context, job ir.Job) error
	UpdateJobProgress(ctx context.Context, calculationID string, completedRows int) error
	FinishJob(ctx context.Context, calculationID string, completedRows int, status ir.JobStatus, errMsg string) error
	LatestJob(ctx context.Context, sessionID string) (ir.Job, error)
}

// DefaultWorkers is the number of rows calculated concurrently.
const DefaultWorkers = 50

// ProgressFunc observes job progress. It is called once per saved row and
// once when the job finishes.
type ProgressFunc func(ir.Job)

// Engine calculates the formula cells of an output sheet row by row.
//
// Rows are independent units of work: each is evaluated by one worker,
// persisted as a single checkpoint, and never recalculated unless reset.
// A run that stops early (cancellation, store failure) resumes where it
// left off.
//
// Thread-safety model:
//   - RunCalculation: at most one per session at a time; a second call
//     for a busy session returns a SESSION_BUSY error
//   - EvaluateFormula, CalculateCell, Progress: safe from any goroutine
//
// INVARIANTS:
//   - A row result is written at most once per (session, sheet, row)
//   - Every opened session snapshot is released and its memo cleared when
//     the run ends, whatever the outcome
type Engine struct {
	store    Store
	registry *workbook.Registry
	eval     *eval.Evaluator
	opener   *cellstore.Opener
	ids      IDGenerator

	workers    int
	ttl        time.Duration
	clock      cache.Clock
	maxDepth   int
	onProgress ProgressFunc

	mu   sync.Mutex
	live map[string]*tracker // keyed by session ID
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of rows calculated concurrently.
//
// Default: 50 (DefaultWorkers)
// Use WithWorkers(1) for a serial run.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithMemoTTL sets how long computed cell values stay memoized.
//
// Default: 30m (cache.DefaultTTL)
func WithMemoTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.ttl = d
	}
}

// WithIDGenerator sets the calculation ID source.
//
// Default: UUIDv7Generator
// Use WithIDGenerator(testutil.NewSequenceIDGenerator("calc")) for
// deterministic tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithProgressFunc registers a progress observer.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// WithClock sets the clock used for memo expiry.
func WithClock(c cache.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRegistry sets the workbook registry.
//
// Default: workbook.Default()
func WithRegistry(r *workbook.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithMaxDepth sets the formula resolution depth limit.
//
// Default: eval.DefaultMaxDepth
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// New creates an Engine backed by s.
func New(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		registry: workbook.Default(),
		ids:      UUIDv7Generator{},
		workers:  DefaultWorkers,
		ttl:      cache.DefaultTTL,
		clock:    cache.SystemClock,
		maxDepth: eval.DefaultMaxDepth,
		live:     make(map[string]*tracker),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}

	e.opener = cellstore.NewOpener(s)
	e.eval = eval.New(e.registry, s,
		eval.WithMemo(cache.NewMemo(e.clock), e.ttl),
		eval.WithMaxDepth(e.maxDepth),
	)
	return e
}

// Evaluator returns the formula evaluator shared by every run.
func (e *Engine) Evaluator() *eval.Evaluator { return e.eval }

// Registry returns the workbook registry.
func (e *Engine) Registry() *workbook.Registry { return e.registry }

// claim marks the session as running. It returns nil if a run is already
// in progress.
func (e *Engine) claim(sessionID string) *tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.live[sessionID]; busy {
		return nil
	}
	t := &tracker{}
	e.live[sessionID] = t
	return t
}

func (e *Engine) unclaim(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.live, sessionID)
}

func (e *Engine) liveTracker(sessionID string) (*tracker, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.live[sessionID]
	return t, ok
}
