package scan

import (
	"path/filepath"
	"strings"
)

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// IgnoreMatcher checks source-relative paths against a set of glob
// patterns, on top of the Source Scanner's mandatory hidden-entry
// exclusion. Patterns without '/' match against the entry's basename
// only; patterns with '/' match against the full path relative to the
// source root.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher builds an IgnoreMatcher from raw pattern strings, as
// configured by `[filesystem] ignore = [...]`. Blank lines and lines
// starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath should be excluded from the scan.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
