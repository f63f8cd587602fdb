package executor

import (
	"sync"

	"github.com/yuya-takeyama/sync-s3/pkg/planner"
)

// ErrorLog keeps the full, chronological failure history of every record that failed
// at least once and has not since been retried successfully.
type ErrorLog struct {
	mu      sync.Mutex
	order   []*planner.Record
	history map[*planner.Record][]error
}

func NewErrorLog() *ErrorLog {
	return &ErrorLog{history: make(map[*planner.Record][]error)}
}

// Add appends err to the history of r, creating the entry on first failure.
func (l *ErrorLog) Add(r *planner.Record, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.history[r]; !ok {
		l.order = append(l.order, r)
	}
	l.history[r] = append(l.history[r], err)
}

// Remove drops r and its history.
func (l *ErrorLog) Remove(r *planner.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.history[r]; !ok {
		return
	}
	delete(l.history, r)
	for i, o := range l.order {
		if o == r {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Records returns a snapshot of the failed records in first-failure order.
func (l *ErrorLog) Records() []*planner.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*planner.Record, len(l.order))
	copy(out, l.order)
	return out
}

// History returns a copy of every error recorded for r, oldest first.
func (l *ErrorLog) History(r *planner.Record) []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.history[r]
	out := make([]error, len(h))
	copy(out, h)
	return out
}

// Latest returns the most recent error for r.
func (l *ErrorLog) Latest(r *planner.Record) (error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.history[r]
	if !ok || len(h) == 0 {
		return nil, false
	}
	return h[len(h)-1], true
}

func (l *ErrorLog) Contains(r *planner.Record) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.history[r]
	return ok
}

func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
