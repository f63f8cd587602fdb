package walker

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yuya-takeyama/sync-s3/internal/checksum"
	"github.com/yuya-takeyama/sync-s3/pkg/planner"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

// Walker walks local files with exclude pattern support
type Walker struct {
	root     string
	excludes []string
}

// NewWalker creates a new file walker
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
	}, nil
}

func (w *Walker) Root() string { return w.root }

// Entries lazily walks the tree in lexical order, hashing each regular file as it is
// reached. The first error ends the sequence.
func (w *Walker) Entries() iter.Seq2[planner.LocalEntry, error] {
	return func(yield func(planner.LocalEntry, error) bool) {
		_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				yield(planner.LocalEntry{}, fmt.Errorf("walk directory: %w", err))
				return filepath.SkipAll
			}

			relPath, err := filepath.Rel(w.root, path)
			if err != nil {
				yield(planner.LocalEntry{}, fmt.Errorf("get relative path: %w", err))
				return filepath.SkipAll
			}
			relPath = filepath.ToSlash(relPath)

			if d.IsDir() {
				if relPath != "." && w.isExcludedDir(relPath) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if w.isExcluded(relPath) {
				return nil
			}

			entry, err := describeFile(path, relPath)
			if err != nil {
				yield(planner.LocalEntry{}, err)
				return filepath.SkipAll
			}
			if !yield(entry, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// describeFile reads the file once: the first bytes feed content sniffing and the
// whole stream feeds the MD5 digest.
func describeFile(path, relPath string) (planner.LocalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return planner.LocalEntry{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return planner.LocalEntry{}, fmt.Errorf("stat %s: %w", path, err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return planner.LocalEntry{}, fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	sum, err := checksum.CalculateMD5(io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		return planner.LocalEntry{}, fmt.Errorf("checksum %s: %w", path, err)
	}

	return planner.LocalEntry{
		Key:         relPath,
		Path:        path,
		Checksum:    sum,
		ContentType: DetectContentType(path, head),
		Size:        info.Size(),
	}, nil
}

// DetectContentType prefers the extension mapping and falls back to sniffing the
// leading bytes of the file.
func DetectContentType(filename string, head []byte) string {
	if ext := filepath.Ext(filename); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}
	return mimetype.Detect(head).String()
}

// isExcluded checks if a path matches any exclude pattern
func (w *Walker) isExcluded(path string) bool {
	return MatchAny(w.excludes, path)
}

func (w *Walker) isExcludedDir(path string) bool {
	for _, pattern := range w.excludes {
		if !strings.HasSuffix(pattern, "/") {
			continue
		}
		if matched, _ := doublestar.Match(strings.TrimSuffix(pattern, "/"), path); matched {
			return true
		}
	}
	return false
}

// MatchAny reports whether a slash-separated relative path matches one of the exclude
// patterns. A pattern ending in "/" matches everything below a matching directory.
func MatchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(path, "/")
			for i := 1; i < len(parts); i++ {
				if matched, _ := doublestar.Match(dirPattern, strings.Join(parts[:i], "/")); matched {
					return true
				}
			}
			continue
		}
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}
