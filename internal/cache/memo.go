package cache

import (
	"sync"
	"time"

	"github.com/roach88/boqcalc/internal/cell"
)

// DefaultTTL is how long a computed value stays in the memo.
const DefaultTTL = 30 * time.Minute

// Clock supplies the current time. Tests replace it to drive expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type memoEntry struct {
	value     cell.Value
	expiresAt time.Time
}

// Memo holds computed cell values per session with a time-to-live.
//
// A cached Empty is a hit and is distinct from absence. Expired entries are
// reported as misses and dropped lazily.
//
// Thread-safety: all methods are safe for concurrent use.
type Memo struct {
	mu       sync.Mutex
	clock    Clock
	sessions map[string]map[string]memoEntry
}

// NewMemo creates an empty memo. A nil clock means the wall clock.
func NewMemo(clock Clock) *Memo {
	if clock == nil {
		clock = SystemClock
	}
	return &Memo{
		clock:    clock,
		sessions: make(map[string]map[string]memoEntry),
	}
}

// Get returns the value stored under key for session, if present and fresh.
func (m *Memo) Get(session, key string) (cell.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.sessions[session]
	if !ok {
		return cell.Value{}, false
	}
	e, ok := entries[key]
	if !ok {
		return cell.Value{}, false
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(entries, key)
		return cell.Value{}, false
	}
	return e.value, true
}

// Set stores value under key for session. A non-positive ttl uses DefaultTTL.
func (m *Memo) Set(session, key string, value cell.Value, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.sessions[session]
	if !ok {
		entries = make(map[string]memoEntry)
		m.sessions[session] = entries
	}
	entries[key] = memoEntry{value: value, expiresAt: m.clock.Now().Add(ttl)}
}

// ClearSession drops every entry of session and returns how many there were.
func (m *Memo) ClearSession(session string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.sessions[session])
	delete(m.sessions, session)
	return n
}

// Len returns the number of stored entries across sessions, expired or not.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, entries := range m.sessions {
		n += len(entries)
	}
	return n
}

// Purge removes expired entries and returns how many were removed.
func (m *Memo) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for session, entries := range m.sessions {
		for key, e := range entries {
			if !now.Before(e.expiresAt) {
				delete(entries, key)
				removed++
			}
		}
		if len(entries) == 0 {
			delete(m.sessions, session)
		}
	}
	return removed
}
