package planner

import (
	"errors"
	"fmt"
)

// ErrNoSides is returned when a record would have neither a local nor a remote entry.
var ErrNoSides = errors.New("expected either a local or a remote entry, got neither")

// LocalEntry is one file found under the source directory.
type LocalEntry struct {
	Key         string // relative to the source directory, slash separated
	Path        string // absolute filesystem path
	Checksum    string // lowercase MD5 hex
	ContentType string
	Size        int64
}

// RemoteEntry is one object from the bucket listing.
type RemoteEntry struct {
	Key  string
	ETag string // quoted, as reported by S3
	Size int64
}

type Classification int

const (
	Unchanged Classification = iota + 1
	Changed
	NewLocally
	RemovedLocally
)

func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "Unchanged"
	case Changed:
		return "Changed"
	case NewLocally:
		return "NewLocally"
	case RemovedLocally:
		return "RemovedLocally"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Valid reports whether c is one of the four known classifications.
func (c Classification) Valid() bool {
	return c >= Unchanged && c <= RemovedLocally
}

// Classify derives the classification from which sides are present and whether the
// remote ETag equals the quoted local checksum.
func Classify(local *LocalEntry, remote *RemoteEntry) (Classification, error) {
	switch {
	case local != nil && remote != nil:
		if remote.ETag == quoteChecksum(local.Checksum) {
			return Unchanged, nil
		}
		return Changed, nil
	case remote != nil:
		return RemovedLocally, nil
	case local != nil:
		return NewLocally, nil
	default:
		return 0, ErrNoSides
	}
}

func quoteChecksum(checksum string) string {
	return `"` + checksum + `"`
}

// Record pairs the two sides of one key. It is immutable once built.
type Record struct {
	key            string
	classification Classification
	local          *LocalEntry
	remote         *RemoteEntry
}

// NewRecord builds a record and fixes its classification.
func NewRecord(key string, local *LocalEntry, remote *RemoteEntry) (*Record, error) {
	c, err := Classify(local, remote)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", key, err)
	}
	return &Record{
		key:            key,
		classification: c,
		local:          local,
		remote:         remote,
	}, nil
}

func (r *Record) Key() string                    { return r.key }
func (r *Record) Classification() Classification { return r.classification }
func (r *Record) Local() *LocalEntry             { return r.local }
func (r *Record) Remote() *RemoteEntry           { return r.remote }

// LocalSize is the size of the local side, or 0 when the file only exists remotely.
func (r *Record) LocalSize() int64 {
	if r.local == nil {
		return 0
	}
	return r.local.Size
}

func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.key, r.classification)
}
