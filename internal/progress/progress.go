package progress

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/sync-s3/pkg/executor"
)

// Tracker counts transfer results. It is an executor.Observer.
type Tracker struct {
	total      int64
	totalBytes int64

	transferred atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
	bytes       atomic.Int64

	logger  zerolog.Logger
	started time.Time
}

// NewTracker creates a tracker expecting total records carrying totalBytes of uploads.
func NewTracker(logger zerolog.Logger, total int, totalBytes int64) *Tracker {
	return &Tracker{
		total:      int64(total),
		totalBytes: totalBytes,
		logger:     logger,
		started:    time.Now(),
	}
}

func (t *Tracker) Observe(_ int, res executor.Result) {
	switch res.Type {
	case executor.ResultSuccess:
		t.transferred.Add(1)
		t.bytes.Add(res.Size)
	case executor.ResultNoop:
		t.skipped.Add(1)
	case executor.ResultError:
		t.failed.Add(1)
	}
}

type Snapshot struct {
	Transferred int64
	Skipped     int64
	Failed      int64
	Bytes       int64
}

func (s Snapshot) Done() int64 { return s.Transferred + s.Skipped + s.Failed }

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Transferred: t.transferred.Load(),
		Skipped:     t.skipped.Load(),
		Failed:      t.failed.Load(),
		Bytes:       t.bytes.Load(),
	}
}

// Report logs the current counters every interval until ctx is done.
func (t *Tracker) Report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.log()
		}
	}
}

func (t *Tracker) log() {
	s := t.Snapshot()
	t.logger.Info().
		Int64("done", s.Done()).
		Int64("total", t.total).
		Int64("failed", s.Failed).
		Str("uploaded", humanize.IBytes(uint64(s.Bytes))).
		Str("of", humanize.IBytes(uint64(t.totalBytes))).
		Msg("Progress")
}

// PrintSummary writes the final counters to w.
func (t *Tracker) PrintSummary(w io.Writer) {
	s := t.Snapshot()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Transferred: %d files (%s)\n", s.Transferred, humanize.IBytes(uint64(s.Bytes)))
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d files\n", s.Skipped)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Errors: %d\n", s.Failed)
	}
	fmt.Fprintf(w, "Duration: %s\n", time.Since(t.started).Round(time.Millisecond))
}
