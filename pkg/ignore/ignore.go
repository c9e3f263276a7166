// Package ignore compiles a target's ignore pattern list into a boolean
// predicate used while scanning a directory tree.
package ignore

import (
	"errors"
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// cleanPreservingTrailingSlash is a variant of path.Clean that preserves a
// trailing slash, which carries meaning for directory-only patterns.
func cleanPreservingTrailingSlash(pattern string) string {
	var needTrailingSlash bool
	if l := len(pattern); l > 1 {
		needTrailingSlash = pattern[l-1] == '/'
	}
	if result := pathpkg.Clean(pattern); needTrailingSlash {
		return result + "/"
	} else {
		return result
	}
}

// pattern represents a single parsed gitwildmatch-style ignore pattern.
type pattern struct {
	negated       bool
	directoryOnly bool
	matchLeaf     bool
	glob          string
}

func newPattern(raw string) (*pattern, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty pattern")
	}

	var negated bool
	if raw[0] == '!' {
		negated = true
		raw = raw[1:]
	}
	if raw == "" {
		return nil, errors.New("negated empty pattern")
	}

	raw = cleanPreservingTrailingSlash(raw)

	if raw == "/" || raw == "//" {
		return nil, errors.New("pattern matches synchronization root")
	}

	var absolute bool
	if raw[0] == '/' {
		absolute = true
		raw = raw[1:]
	}

	var directoryOnly bool
	if raw[len(raw)-1] == '/' {
		directoryOnly = true
		raw = raw[:len(raw)-1]
	}

	containsSlash := strings.IndexByte(raw, '/') >= 0

	if _, err := doublestar.Match(raw, "a"); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
	}

	return &pattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     !absolute && !containsSlash,
		glob:          raw,
	}, nil
}

func (p *pattern) matches(relativePath string, isDir bool) bool {
	if p.directoryOnly && !isDir {
		return false
	}
	if match, _ := doublestar.Match(p.glob, relativePath); match {
		return true
	}
	if p.matchLeaf && relativePath != "" {
		if match, _ := doublestar.Match(p.glob, pathpkg.Base(relativePath)); match {
			return true
		}
	}
	return false
}

// Matcher evaluates a compiled list of ignore patterns against relative
// paths encountered during a scan.
type Matcher struct {
	patterns []*pattern
}

// Compile parses a list of gitwildmatch-style patterns into a Matcher. A nil
// or empty list yields a Matcher that never ignores anything.
func Compile(patterns []string) (*Matcher, error) {
	compiled := make([]*pattern, len(patterns))
	for i, raw := range patterns {
		p, err := newPattern(raw)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%q): %w", i, raw, err)
		}
		compiled[i] = p
	}
	return &Matcher{patterns: compiled}, nil
}

// Match reports whether relativePath (using forward slashes, relative to the
// scan root) should be ignored. Later patterns take precedence over earlier
// ones, matching gitignore-style layering; a negated pattern un-ignores a
// path that an earlier pattern ignored.
func (m *Matcher) Match(relativePath string, isDir bool) bool {
	if m == nil {
		return false
	}
	var ignored bool
	for _, p := range m.patterns {
		if p.matches(relativePath, isDir) {
			ignored = !p.negated
		}
	}
	return ignored
}
