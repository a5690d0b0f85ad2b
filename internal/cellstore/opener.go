package cellstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/boqcalc/internal/cache"
)

// Opener hands out calculation sessions. Concurrent opens of the same session
// share one snapshot load; the session stays open until every Open has been
// matched by a Release.
type Opener struct {
	src   Source
	group singleflight.Group

	mu   sync.Mutex
	open map[string]*openSession
}

type openSession struct {
	sess *Session
	refs int
}

// NewOpener creates an Opener reading from src.
func NewOpener(src Source) *Opener {
	return &Opener{
		src:  src,
		open: make(map[string]*openSession),
	}
}

// Open returns the session, loading its snapshot on first use.
// Every successful Open must be followed by Release.
func (o *Opener) Open(ctx context.Context, sessionID string) (*Session, error) {
	o.mu.Lock()
	if entry, ok := o.open[sessionID]; ok {
		entry.refs++
		o.mu.Unlock()
		return entry.sess, nil
	}
	o.mu.Unlock()

	v, err, _ := o.group.Do(sessionID, func() (any, error) {
		cells, err := o.src.LoadSessionSnapshot(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		slog.Debug("session snapshot loaded", "session", sessionID, "cells", len(cells))
		return &Session{id: sessionID, src: o.src, snap: cache.NewSnapshot(cells)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", sessionID, err)
	}
	loaded := v.(*Session)

	o.mu.Lock()
	defer o.mu.Unlock()
	// Another caller may have registered the session after our first check.
	if entry, ok := o.open[sessionID]; ok {
		entry.refs++
		return entry.sess, nil
	}
	o.open[sessionID] = &openSession{sess: loaded, refs: 1}
	return loaded, nil
}

// Release drops one reference. The snapshot is discarded with the last one.
func (o *Opener) Release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.open[sessionID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(o.open, sessionID)
		slog.Debug("session snapshot released", "session", sessionID)
	}
}

// isOpen reports whether the session currently holds a snapshot.
func (o *Opener) isOpen(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.open[sessionID]
	return ok
}
