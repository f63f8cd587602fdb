package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Object holds the optional headers applied when uploading one key.
type Object struct {
	CacheControl            *string `json:"CacheControl,omitempty"`
	ContentType             *string `json:"ContentType,omitempty"`
	WebsiteRedirectLocation *string `json:"WebsiteRedirectLocation,omitempty"`
}

// Document maps object keys to their metadata. Entries may be null.
type Document map[string]*Object

// Load reads a metadata document. Unknown per-object fields are rejected.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return doc, nil
}

func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Lookup returns the metadata for key, or nil.
func (d Document) Lookup(key string) *Object {
	if d == nil {
		return nil
	}
	return d[key]
}
