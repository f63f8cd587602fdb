package planner

import (
	"fmt"
	"iter"
	"path"
	"strings"
)

type CompareOptions struct {
	// Prefix is the root key prefix local keys are joined under.
	Prefix string
}

// Plan is the ordered result of a comparison: local keys in inventory order, then
// remote-only keys in listing order.
type Plan struct {
	order   []string
	records map[string]*Record
}

func newPlan() *Plan {
	return &Plan{records: make(map[string]*Record)}
}

func (p *Plan) set(r *Record) {
	if _, exists := p.records[r.key]; !exists {
		p.order = append(p.order, r.key)
	}
	p.records[r.key] = r
}

func (p *Plan) Len() int { return len(p.order) }

func (p *Plan) Get(key string) (*Record, bool) {
	r, ok := p.records[key]
	return r, ok
}

// Records returns every record in plan order.
func (p *Plan) Records() []*Record {
	out := make([]*Record, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.records[key])
	}
	return out
}

// Pending returns the records that need a transfer, in plan order. Unchanged records
// are only included when force is set.
func (p *Plan) Pending(force bool) []*Record {
	var out []*Record
	for _, r := range p.Records() {
		if r.classification == Unchanged && !force {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Counts returns the number of records per classification.
func (p *Plan) Counts() map[Classification]int {
	counts := make(map[Classification]int, 4)
	for _, r := range p.records {
		counts[r.classification]++
	}
	return counts
}

// Compare merges a complete remote listing with the local inventory. The local
// sequence is drained before any remote-only key is considered.
func Compare(remote []RemoteEntry, local iter.Seq2[LocalEntry, error], opts CompareOptions) (*Plan, error) {
	remoteByKey := make(map[string]*RemoteEntry, len(remote))
	for i := range remote {
		remoteByKey[remote[i].Key] = &remote[i]
	}

	plan := newPlan()

	for entry, err := range local {
		if err != nil {
			return nil, fmt.Errorf("read local inventory: %w", err)
		}
		key := JoinKey(opts.Prefix, entry.Key)
		localEntry := entry
		r, err := NewRecord(key, &localEntry, remoteByKey[key])
		if err != nil {
			return nil, err
		}
		plan.set(r)
	}

	rootKey := RootKey(opts.Prefix)
	for i := range remote {
		key := remote[i].Key
		if key == rootKey {
			continue
		}
		if _, claimed := plan.records[key]; claimed {
			continue
		}
		r, err := NewRecord(key, nil, remoteByKey[key])
		if err != nil {
			return nil, err
		}
		plan.set(r)
	}

	return plan, nil
}

// RootKey is the directory-marker key of the prefix; it is never treated as a real object.
func RootKey(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}

// JoinKey joins a relative key under prefix using forward slashes.
func JoinKey(prefix, relKey string) string {
	relKey = strings.TrimPrefix(relKey, "/")
	if prefix == "" {
		return relKey
	}
	return path.Join(strings.TrimSuffix(prefix, "/"), relKey)
}

// RelativeKey strips the root prefix from a bucket key.
func RelativeKey(prefix, key string) string {
	root := RootKey(prefix)
	if root == "" {
		return key
	}
	return strings.TrimPrefix(key, root)
}
