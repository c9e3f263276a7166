// Package rootedpath implements a path value type that remembers the length
// of its root prefix, so that a child path constructed anywhere under a
// synchronization root can still report its path relative to that root.
package rootedpath

import (
	"path"
	"path/filepath"
	"strings"
)

// RootedPath pairs an absolute, OS-native path with the length (in path
// components) of the prefix that constitutes its root. It is a value type:
// copying it is always safe and cheap.
type RootedPath struct {
	absolute string
	rootLen  int
}

// NewRoot creates a RootedPath whose root is the given absolute directory.
// The input is cleaned via filepath.Clean; relative paths are accepted and
// resolved against the current working directory is the caller's
// responsibility (callers typically pass an already-absolute path).
func NewRoot(absolute string) RootedPath {
	clean := filepath.Clean(absolute)
	return RootedPath{
		absolute: clean,
		rootLen:  countParts(clean),
	}
}

// countParts returns the number of non-empty path components in a cleaned
// absolute path.
func countParts(p string) int {
	slash := filepath.ToSlash(p)
	slash = strings.Trim(slash, "/")
	if slash == "" {
		return 0
	}
	return len(strings.Split(slash, "/"))
}

// Absolute returns the full OS-native absolute path.
func (p RootedPath) Absolute() string {
	return p.absolute
}

// GetRoot returns the RootedPath corresponding to this path's root
// directory, discarding any path components below the root.
func (p RootedPath) GetRoot() RootedPath {
	slash := filepath.ToSlash(p.absolute)
	trimmed := strings.TrimLeft(slash, "/")
	parts := strings.Split(strings.TrimRight(trimmed, "/"), "/")
	if len(parts) <= p.rootLen {
		return p
	}
	rootSlash := slash[:len(slash)-len(trimmed)] + strings.Join(parts[:p.rootLen], "/")
	return RootedPath{
		absolute: filepath.FromSlash(rootSlash),
		rootLen:  p.rootLen,
	}
}

// FromRoot returns this path's location relative to its root, using forward
// slashes regardless of host platform (the on-disk formats are POSIX-slash).
// The root itself is reported as the empty string.
func (p RootedPath) FromRoot() string {
	parts := strings.Split(strings.Trim(filepath.ToSlash(p.absolute), "/"), "/")
	if len(parts) <= p.rootLen {
		return ""
	}
	return path.Join(parts[p.rootLen:]...)
}

// Name returns the final path component.
func (p RootedPath) Name() string {
	return filepath.Base(p.absolute)
}

// Child returns a new RootedPath for a direct child of p, inheriting p's
// root prefix length.
func (p RootedPath) Child(name string) RootedPath {
	return RootedPath{
		absolute: filepath.Join(p.absolute, name),
		rootLen:  p.rootLen,
	}
}

// JoinFromRoot resolves a POSIX-slash path, relative to this path's root,
// back into a RootedPath. This is the inverse of FromRoot and is used when
// reconciling a diff's stored relative paths against a live root.
func (p RootedPath) JoinFromRoot(relative string) RootedPath {
	root := p.GetRoot()
	if relative == "" {
		return root
	}
	return RootedPath{
		absolute: filepath.Join(root.absolute, filepath.FromSlash(relative)),
		rootLen:  p.rootLen,
	}
}
