package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/sync-s3/pkg/planner"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func collect(w *Walker) ([]planner.LocalEntry, error) {
	var entries []planner.LocalEntry
	for entry, err := range w.Entries() {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func TestWalkerEntries(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":      "<html></html>",
		"css/site.css":    "body{}",
		"docs/readme":     "plain words",
		"docs/deep/a.txt": "Hello, World!",
	})

	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	entries, err := collect(w)
	require.NoError(t, err)

	var keys []string
	byKey := make(map[string]int)
	for i, e := range entries {
		keys = append(keys, e.Key)
		byKey[e.Key] = i
	}
	assert.Equal(t, []string{"css/site.css", "docs/deep/a.txt", "docs/readme", "index.html"}, keys)

	hello := entries[byKey["docs/deep/a.txt"]]
	assert.Equal(t, "65a8e27d8879283831b664bd8b7f0ad4", hello.Checksum)
	assert.Equal(t, int64(13), hello.Size)
	assert.Equal(t, filepath.Join(w.Root(), "docs", "deep", "a.txt"), hello.Path)

	assert.Contains(t, entries[byKey["index.html"]].ContentType, "text/html")
	assert.Contains(t, entries[byKey["docs/readme"]].ContentType, "text/plain")
}

func TestWalkerExcludes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"keep.txt":          "k",
		"skip.log":          "s",
		"node_modules/a.js": "a",
		"sub/also.log":      "s",
		"sub/keep.md":       "k",
	})

	w, err := NewWalker(root, []string{"**/*.log", "node_modules/"})
	require.NoError(t, err)

	entries, err := collect(w)
	require.NoError(t, err)

	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"keep.txt", "sub/keep.md"}, keys)
}

func TestWalkerStopsEarly(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	count := 0
	for _, err := range w.Entries() {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestNewWalkerErrors(t *testing.T) {
	_, err := NewWalker(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewWalker(file, nil)
	assert.Error(t, err)

	_, err = NewWalker(t.TempDir(), []string{"[unclosed"})
	assert.Error(t, err)
}

func TestDetectContentType(t *testing.T) {
	assert.Contains(t, DetectContentType("a.css", nil), "text/css")
	assert.Equal(t, "application/pdf", DetectContentType("report", []byte("%PDF-1.4\n...")))
	assert.Equal(t, "application/octet-stream", DetectContentType("blob", []byte{0x00, 0x01, 0x02, 0xff}))
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{name: "simple glob", patterns: []string{"*.txt"}, path: "a.txt", want: true},
		{name: "glob does not cross dirs", patterns: []string{"*.txt"}, path: "dir/a.txt", want: false},
		{name: "double star", patterns: []string{"**/*.txt"}, path: "dir/sub/a.txt", want: true},
		{name: "dir pattern", patterns: []string{"build/"}, path: "build/out/app.js", want: true},
		{name: "dir pattern nested", patterns: []string{"**/cache/"}, path: "a/cache/x", want: true},
		{name: "dir pattern does not match file", patterns: []string{"build/"}, path: "build", want: false},
		{name: "no patterns", patterns: nil, path: "a", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAny(tt.patterns, tt.path))
		})
	}
}
