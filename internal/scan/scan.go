// Package scan implements the Source Scanner: it walks a source
// directory tree and produces the deterministic, URI-sorted object set the
// rest of the engine diffs against the previous session.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rrdpd/internal/hash"
	"rrdpd/internal/rrdp"
)

// Scanner walks sourceDir, builds rsync URIs against rsyncBase, and
// implements rrdp.Scanner.
type Scanner struct {
	sourceDir string
	rsyncBase string
	ignore    *IgnoreMatcher
}

// New builds a Scanner. rsyncBase is forced to end with '/' so scanned
// object URIs join cleanly with the relative path under it. ignore may
// be nil.
func New(sourceDir, rsyncBase string, ignore *IgnoreMatcher) *Scanner {
	if !strings.HasSuffix(rsyncBase, "/") {
		rsyncBase += "/"
	}
	return &Scanner{sourceDir: sourceDir, rsyncBase: rsyncBase, ignore: ignore}
}

var _ rrdp.Scanner = (*Scanner)(nil)

// Scan recursively enumerates regular files under the source directory,
// excluding hidden entries and anything matched by the ignore patterns,
// and returns them sorted by URI.
func (s *Scanner) Scan() ([]rrdp.Object, error) {
	info, err := os.Stat(s.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", s.sourceDir, rrdp.ErrIO)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s: %w", s.sourceDir, rrdp.ErrConfig)
	}

	var objects []rrdp.Object

	err = filepath.WalkDir(s.sourceDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walking %s: %w", p, walkErr)
		}

		if p == s.sourceDir {
			return nil
		}

		rel, err := filepath.Rel(s.sourceDir, p)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if hasHiddenComponent(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		// Symlinks to files are followed: os.ReadFile resolves them.
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		bytes, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		objects = append(objects, rrdp.Object{
			URI:   s.rsyncBase + rel,
			Bytes: bytes,
			Hash:  hash.Hex(bytes),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].URI < objects[j].URI })
	return objects, nil
}

func hasHiddenComponent(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
