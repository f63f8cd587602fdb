package executor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/sync-s3/internal/checksum"
	"github.com/yuya-takeyama/sync-s3/pkg/planner"
	"github.com/yuya-takeyama/sync-s3/pkg/s3client"
)

// ErrUnknownClassification means a record reached a worker with a classification the
// engine does not handle. It aborts the run.
var ErrUnknownClassification = errors.New("unknown classification")

// Worker claims records from a shared queue and transfers them one at a time. Each
// worker owns its ErrorLog.
type Worker struct {
	ID int

	client s3client.Client
	opts   Options
	errors *ErrorLog
	logger zerolog.Logger
}

func newWorker(id int, client s3client.Client, logger zerolog.Logger, opts Options) *Worker {
	return &Worker{
		ID:     id,
		client: client,
		opts:   opts,
		errors: NewErrorLog(),
		logger: logger.With().Int("worker", id).Logger(),
	}
}

// Errors exposes the failure history of the records this worker could not transfer.
func (w *Worker) Errors() *ErrorLog { return w.errors }

// Run claims and executes records until the queue is empty. Per-record failures are
// recorded and reported as ResultError; only engine errors stop the loop.
func (w *Worker) Run(ctx context.Context, queue *Queue, emit func(Result)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, ok := queue.Peek()
		if !ok {
			return nil
		}
		record, ok := queue.Claim(key)
		if !ok {
			// Another worker got there first.
			continue
		}

		res, err := w.execute(ctx, record)
		if err != nil {
			return err
		}
		emit(res)
	}
}

// Retry re-executes every record currently in the ErrorLog, in first-failure order.
// A record leaves the log as soon as an attempt does not fail.
func (w *Worker) Retry(ctx context.Context, emit func(Result)) error {
	for _, record := range w.errors.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := w.execute(ctx, record)
		if err != nil {
			return err
		}
		if res.Type != ResultError {
			w.errors.Remove(record)
		}
		emit(res)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, record *planner.Record) (Result, error) {
	res, err := w.transfer(ctx, record)
	if errors.Is(err, ErrUnknownClassification) {
		return Result{}, err
	}
	if err != nil {
		w.errors.Add(record, err)
		w.logger.Warn().Err(err).Str("key", record.Key()).Msg("Transfer failed")
		return Result{Type: ResultError, Key: record.Key()}, nil
	}
	return res, nil
}

func (w *Worker) transfer(ctx context.Context, record *planner.Record) (Result, error) {
	switch record.Classification() {
	case planner.Unchanged:
		if !w.opts.Force {
			return Result{Type: ResultNoop, Key: record.Key()}, nil
		}
		fallthrough
	case planner.Changed, planner.NewLocally:
		if err := w.upload(ctx, record); err != nil {
			return Result{}, err
		}
		return Result{Type: ResultSuccess, Key: record.Key(), Size: record.LocalSize()}, nil
	case planner.RemovedLocally:
		if err := w.delete(ctx, record); err != nil {
			return Result{}, err
		}
		return Result{Type: ResultSuccess, Key: record.Key()}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s for key %q", ErrUnknownClassification, record.Classification(), record.Key())
	}
}

func (w *Worker) upload(ctx context.Context, record *planner.Record) error {
	local := record.Local()
	if local == nil {
		return fmt.Errorf("no local file for %q", record.Key())
	}

	md5, err := checksum.HexToBase64(local.Checksum)
	if err != nil {
		return err
	}

	file, err := os.Open(local.Path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	req := &s3client.PutObjectRequest{
		Bucket:      w.opts.Bucket,
		Key:         record.Key(),
		Body:        file,
		Size:        local.Size,
		ContentMD5:  md5,
		ContentType: local.ContentType,
	}
	if meta := w.opts.Metadata.Lookup(record.Key()); meta != nil {
		if meta.ContentType != nil {
			req.ContentType = *meta.ContentType
		}
		if meta.CacheControl != nil {
			req.CacheControl = *meta.CacheControl
		}
		if meta.WebsiteRedirectLocation != nil {
			req.WebsiteRedirectLocation = *meta.WebsiteRedirectLocation
		}
	}

	w.logger.Debug().Str("key", record.Key()).Str("path", local.Path).Msg("Uploading")
	if err := w.client.PutObject(ctx, req); err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}
	return nil
}

func (w *Worker) delete(ctx context.Context, record *planner.Record) error {
	w.logger.Debug().Str("key", record.Key()).Msg("Deleting")
	err := w.client.DeleteObject(ctx, &s3client.DeleteObjectRequest{
		Bucket: w.opts.Bucket,
		Key:    record.Key(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}
