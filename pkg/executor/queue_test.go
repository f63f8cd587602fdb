package executor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/sync-s3/pkg/planner"
)

func newTestRecords(t *testing.T, keys ...string) []*planner.Record {
	t.Helper()
	records := make([]*planner.Record, 0, len(keys))
	for _, key := range keys {
		r, err := planner.NewRecord(key, &planner.LocalEntry{Key: key, Checksum: "00", Size: 10}, nil)
		require.NoError(t, err)
		records = append(records, r)
	}
	return records
}

func TestQueuePeekAndClaim(t *testing.T) {
	q := NewQueue(newTestRecords(t, "a", "b"))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(20), q.TotalSize())

	key, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", key)

	// Peek does not claim.
	key, _ = q.Peek()
	assert.Equal(t, "a", key)

	r, ok := q.Claim("a")
	require.True(t, ok)
	assert.Equal(t, "a", r.Key())

	_, ok = q.Claim("a")
	assert.False(t, ok, "a key can only be claimed once")

	key, ok = q.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", key)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, int64(10), q.TotalSize())
}

func TestQueueClaimOutOfOrder(t *testing.T) {
	q := NewQueue(newTestRecords(t, "a", "b", "c"))

	_, ok := q.Claim("b")
	require.True(t, ok)

	var order []string
	for {
		r, ok := q.TakeNext()
		if !ok {
			break
		}
		order = append(order, r.Key())
	}
	assert.Equal(t, []string{"a", "c"}, order)

	_, ok = q.Peek()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueUnknownKey(t *testing.T) {
	q := NewQueue(newTestRecords(t, "a"))
	_, ok := q.Claim("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue(nil)
	_, ok := q.Peek()
	assert.False(t, ok)
	_, ok = q.TakeNext()
	assert.False(t, ok)
	assert.Equal(t, int64(0), q.TotalSize())
}

func TestQueueDuplicateKeysKeepFirstPosition(t *testing.T) {
	first := newTestRecords(t, "a", "b")
	replacement := newTestRecords(t, "a")
	q := NewQueue(append(first, replacement...))

	assert.Equal(t, 2, q.Len())
	r, ok := q.TakeNext()
	require.True(t, ok)
	assert.Same(t, replacement[0], r)
}

func TestQueueConcurrentClaims(t *testing.T) {
	keys := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("dir/%03d.txt", i)
	}
	q := NewQueue(newTestRecords(t, keys...))

	var mu sync.Mutex
	claimed := make(map[string]int)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				key, ok := q.Peek()
				if !ok {
					return
				}
				if _, ok := q.Claim(key); !ok {
					continue
				}
				mu.Lock()
				claimed[key]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, len(keys))
	for key, n := range claimed {
		assert.Equal(t, 1, n, "key %s claimed %d times", key, n)
	}
}

func TestErrorLog(t *testing.T) {
	records := newTestRecords(t, "a", "b")
	a, b := records[0], records[1]
	log := NewErrorLog()

	_, ok := log.Latest(a)
	assert.False(t, ok)

	first := assert.AnError
	second := errTest("second")
	log.Add(b, first)
	log.Add(a, first)
	log.Add(b, second)

	assert.Equal(t, 2, log.Len())
	assert.Equal(t, []*planner.Record{b, a}, log.Records())
	assert.Equal(t, []error{first, second}, log.History(b))

	latest, ok := log.Latest(b)
	require.True(t, ok)
	assert.Equal(t, second, latest)
	assert.True(t, log.Contains(a))

	log.Remove(b)
	assert.False(t, log.Contains(b))
	assert.Empty(t, log.History(b))
	assert.Equal(t, []*planner.Record{a}, log.Records())

	// Removing twice is harmless.
	log.Remove(b)
	assert.Equal(t, 1, log.Len())
}

type errTest string

func (e errTest) Error() string { return string(e) }
