// Package scheduler provides the one-shot deferred callbacks behind offer
// expiry. Timers live in process memory; a reconciliation sweep re-arms them
// from the store after restarts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"courier-dispatch/internal/logx"
)

// TimeoutFunc handles an expired offer. Handlers must be idempotent: a timer
// may fire after the assignment already reached a terminal state, and the
// sweep can arm a deadline twice across restarts.
type TimeoutFunc func(ctx context.Context, assignmentID string)

// Timers arms at most one pending timer per assignment id.
type Timers struct {
	log logx.Logger

	mu      sync.Mutex
	fire    TimeoutFunc
	pending map[string]*time.Timer
	stopped bool
}

// NewTimers creates an empty timer set.
func NewTimers(log logx.Logger) *Timers {
	if log == nil {
		log = logx.Nop()
	}
	return &Timers{
		log:     log,
		pending: make(map[string]*time.Timer),
	}
}

// Bind sets the timeout handler. Must be called before the first Arm; timers
// armed without a handler log and drop the firing.
func (t *Timers) Bind(fire TimeoutFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fire = fire
}

// Arm schedules a timeout check for the assignment after delay. Arming an id
// that already has a pending timer is a no-op, so the reconciliation sweep
// can re-announce deadlines freely. A non-positive delay fires immediately.
func (t *Timers) Arm(assignmentID string, delay time.Duration) {
	if assignmentID == "" {
		return
	}
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if _, ok := t.pending[assignmentID]; ok {
		return
	}
	t.pending[assignmentID] = time.AfterFunc(delay, func() {
		t.expire(assignmentID)
	})
}

// Disarm cancels a pending timer, if any. A firing already in flight is not
// interrupted; handlers tolerate that.
func (t *Timers) Disarm(assignmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[assignmentID]; ok {
		timer.Stop()
		delete(t.pending, assignmentID)
	}
}

// Len returns the number of pending timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every pending timer and rejects further arming.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}

func (t *Timers) expire(assignmentID string) {
	t.mu.Lock()
	delete(t.pending, assignmentID)
	fire := t.fire
	t.mu.Unlock()

	if fire == nil {
		t.log.Error("timer fired without a bound handler",
			logx.String("assignment_id", assignmentID))
		return
	}
	fire(context.Background(), assignmentID)
}
