package svn

// Small helper functions.

import (
	"strings"
)

// MatchPathPrefix returns true if the given path begins with the same path *components* as prefix.
// For example, if path is "foo/bar" and prefix is "foo", then this function returns true.
// If path is "foo/bar" and prefix is "foo/bar", then this function returns true.
// If path is "foo/barn" and prefix is "foo/bar", then this function returns false.
// An empty or "/" prefix matches every path.
func MatchPathPrefix(path, prefix string) bool {
	path = strings.Trim(path, "/")
	prefix = strings.Trim(prefix, "/")

	if prefix == "" {
		return true
	}
	if len(path) < len(prefix) {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}

// TrimPathPrefix returns the part of path below prefix, without a leading
// slash. The caller must have checked MatchPathPrefix.
func TrimPathPrefix(path, prefix string) string {
	path = strings.Trim(path, "/")
	prefix = strings.Trim(prefix, "/")
	return strings.TrimLeft(path[len(prefix):], "/")
}
