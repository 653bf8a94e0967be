// Package sessions tracks the live sessions of one relay instance so the
// server can cap concurrency and drain them on shutdown.
package sessions

import (
	"context"
	"errors"
	"sync"
)

// ErrCapacity is returned by Register when the session limit is reached.
var ErrCapacity = errors.New("session capacity reached")

type Tracker struct {
	mu       sync.Mutex
	limit    int
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	cancel func()
	once   sync.Once
}

// NewTracker returns a tracker admitting at most limit concurrent
// sessions. A limit of zero or less means unlimited.
func NewTracker(limit int) *Tracker {
	return &Tracker{
		limit:    limit,
		sessions: make(map[string]*trackedSession),
	}
}

// Register admits one session and records its cancel func for CancelAll.
// It returns an idempotent unregister func. When the tracker is full it
// returns ErrCapacity and admits nothing.
func (t *Tracker) Register(sessionID string, cancel func()) (unregister func(), err error) {
	if t == nil {
		return func() {}, nil
	}

	entry := &trackedSession{cancel: cancel}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	if t.limit > 0 && len(t.sessions) >= t.limit {
		t.mu.Unlock()
		return nil, ErrCapacity
	}
	old := t.sessions[sessionID]
	t.sessions[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.release(sessionID, old)
	}

	return func() { t.release(sessionID, entry) }, nil
}

func (t *Tracker) release(sessionID string, entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[sessionID] == entry {
			delete(t.sessions, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// CancelAll asks every live session to shut down. It does not wait.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.cancel == nil {
			continue
		}
		cancels = append(cancels, entry.cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered, or ctx
// expires. It reports whether the drain completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
