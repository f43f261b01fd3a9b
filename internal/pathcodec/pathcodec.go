// Package pathcodec parses and normalizes the slash-delimited ancestor paths
// used by workspace entries.
package pathcodec

import "strings"

// Separator joins path segments.
const Separator = "/"

// Segments splits p on "/" and drops empty segments, so leading, trailing and
// duplicate slashes are tolerated.
func Segments(p string) []string {
	if p == "" {
		return nil
	}
	var out []string
	for seg := range strings.SplitSeq(p, Separator) {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Depth returns the number of non-empty segments in p. The empty path is the
// implicit root and has depth 0.
func Depth(p string) int {
	return len(Segments(p))
}

// ParentPath returns every segment but the last, rejoined with "/". It
// returns "" when p has depth 1 or less.
func ParentPath(p string) string {
	segs := Segments(p)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], Separator)
}

// Base returns the last segment of p, or "" for the root.
func Base(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Join concatenates the given parts and returns the normalized result.
func Join(parts ...string) string {
	var segs []string
	for _, part := range parts {
		segs = append(segs, Segments(part)...)
	}
	return strings.Join(segs, Separator)
}

// Clean normalizes p: no leading, trailing or duplicate slashes.
func Clean(p string) string {
	return Join(p)
}

// Split is the inverse of Join(path, name): it separates a full location into
// its ancestor path and own name.
func Split(full string) (path, name string) {
	return ParentPath(full), Base(full)
}
