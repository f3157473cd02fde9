// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"path"
	"sort"
	"strings"
)

// NormalizePath converts p into the form used to compare archive entries with
// filter paths: forward slashes, no leading "./" or "/", no trailing "/", and no
// redundant elements. The archive root normalizes to the empty string.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// FilterSet is the set of normalized entry paths to remove from an archive.
type FilterSet map[string]struct{}

// NewFilterSet creates a FilterSet from paths. Every path is normalized and
// empty paths are ignored.
func NewFilterSet(paths ...string) FilterSet {
	s := make(FilterSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add normalizes p and adds it to the set.
func (s FilterSet) Add(p string) {
	if n := NormalizePath(p); n != "" {
		s[n] = struct{}{}
	}
}

// Contains reports whether the normalized form of p is in the set.
func (s FilterSet) Contains(p string) bool {
	_, ok := s[NormalizePath(p)]
	return ok
}

// Len returns the number of paths in the set.
func (s FilterSet) Len() int {
	return len(s)
}

// Paths returns the members of the set in lexical order.
func (s FilterSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Unmatched returns the members of the set that are not in seen, in lexical order.
func (s FilterSet) Unmatched(seen map[string]bool) []string {
	var paths []string
	for _, p := range s.Paths() {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	return paths
}

// Keep reports whether the entry at p stays in the archive. An entry is dropped
// if and only if its normalized path is a member of set. There is no prefix or
// pattern matching: removing a directory requires every contained path to be
// listed as well.
func Keep(p string, set FilterSet) bool {
	return !set.Contains(p)
}
