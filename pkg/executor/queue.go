package executor

import (
	"sync"

	"github.com/yuya-takeyama/sync-s3/pkg/planner"
)

// Queue holds the records still waiting for a worker. It is seeded once; afterwards the
// only mutation is Claim, and a claimed key never comes back.
type Queue struct {
	mu      sync.Mutex
	keys    []string
	head    int
	pending map[string]*planner.Record
}

func NewQueue(records []*planner.Record) *Queue {
	q := &Queue{
		keys:    make([]string, 0, len(records)),
		pending: make(map[string]*planner.Record, len(records)),
	}
	for _, r := range records {
		if _, dup := q.pending[r.Key()]; !dup {
			q.keys = append(q.keys, r.Key())
		}
		q.pending[r.Key()] = r
	}
	return q
}

// Peek returns the first key that has not been claimed yet.
func (q *Queue) Peek() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.advance()
	if q.head >= len(q.keys) {
		return "", false
	}
	return q.keys[q.head], true
}

// Claim removes key from the queue and hands its record to the caller. It fails when
// another caller claimed the key first.
func (q *Queue) Claim(key string) (*planner.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.pending[key]
	if !ok {
		return nil, false
	}
	delete(q.pending, key)
	q.advance()
	return r, true
}

// TakeNext claims the first pending record in one step.
func (q *Queue) TakeNext() (*planner.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.advance()
	if q.head >= len(q.keys) {
		return nil, false
	}
	key := q.keys[q.head]
	r := q.pending[key]
	delete(q.pending, key)
	q.advance()
	return r, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TotalSize sums the local sizes of the pending records.
func (q *Queue) TotalSize() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	var total int64
	for _, r := range q.pending {
		total += r.LocalSize()
	}
	return total
}

// advance skips claimed keys at the head. Callers hold mu.
func (q *Queue) advance() {
	for q.head < len(q.keys) {
		if _, ok := q.pending[q.keys[q.head]]; ok {
			return
		}
		q.head++
	}
}
