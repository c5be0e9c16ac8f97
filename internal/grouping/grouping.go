// Package grouping partitions detected files into related groups so that a
// video and its sidecar subtitle are classified together and land in the
// same library directory.
//
// The partition key is (filename stem, containing directory); files in
// different directories never group even when their stems match. Partitions
// of one stay ungrouped. Within a partition the primary is elected by
// extension rank (video outranks subtitle and auxiliary formats), with
// lexical filename order breaking ties so the election is deterministic.
package grouping

import (
	"path/filepath"
	"sort"
	"strings"
)

// Extension ranks for primary election. Lower rank wins.
const (
	rankVideo     = 0
	rankSubtitle  = 1
	rankAuxiliary = 2
	rankUnknown   = 3
)

var videoExtensions = map[string]struct{}{
	".mkv": {},
	".mp4": {},
	".avi": {},
	".m4v": {},
	".mov": {},
	".ts":  {},
}

var subtitleExtensions = map[string]struct{}{
	".srt": {},
	".ass": {},
	".ssa": {},
	".sub": {},
	".vtt": {},
	".idx": {},
}

var auxiliaryExtensions = map[string]struct{}{
	".nfo": {},
}

// Group is one partition of related files.
type Group struct {
	Dir     string
	Stem    string
	Primary string
	// Members lists every path in the group, primary first, then by rank
	// and lexical order.
	Members []string
}

// Rank returns the primary-election rank for a path's extension.
func Rank(path string) int {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := videoExtensions[ext]; ok {
		return rankVideo
	}
	if _, ok := subtitleExtensions[ext]; ok {
		return rankSubtitle
	}
	if _, ok := auxiliaryExtensions[ext]; ok {
		return rankAuxiliary
	}
	return rankUnknown
}

// IsVideo reports whether the path carries a recognized video extension.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsSubtitle reports whether the path carries a recognized subtitle extension.
func IsSubtitle(path string) bool {
	_, ok := subtitleExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Stem returns the filename with its final extension removed.
func Stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

type partitionKey struct {
	dir  string
	stem string
}

// Resolve partitions a batch of paths into groups. Singleton partitions are
// returned with an empty Members slice collapsed to just the path itself so
// callers can distinguish grouped from ungrouped files.
func Resolve(paths []string) []Group {
	partitions := make(map[partitionKey][]string)
	var order []partitionKey
	for _, path := range paths {
		key := partitionKey{dir: filepath.Dir(path), stem: Stem(path)}
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], path)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		members := partitions[key]
		sort.Slice(members, func(a, b int) bool {
			ra, rb := Rank(members[a]), Rank(members[b])
			if ra != rb {
				return ra < rb
			}
			return filepath.Base(members[a]) < filepath.Base(members[b])
		})
		groups = append(groups, Group{
			Dir:     key.dir,
			Stem:    key.stem,
			Primary: members[0],
			Members: members,
		})
	}
	return groups
}

// Grouped reports whether the partition holds more than one file.
func (g Group) Grouped() bool {
	return len(g.Members) > 1
}
