// Package subject derives subject identities from image paths and extracts the
// distinct set of images referenced by a pair list.
package subject

import (
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/iris-batch/internal/pairlist"
)

// Subject is one distinct image of a pair list and the id its template is
// stored under.
type Subject struct {
	ID         string
	SourcePath string
}

// Resolve returns the subject id for path: the base name up to its first dot,
// NFC-normalized. S1.L01.jpg and S1.jpg both resolve to S1, which keeps ids
// compatible with template directories written by earlier tooling.
//
// Paths that share a base name resolve to the same id regardless of directory.
// Degenerate inputs still yield an id: "" gives "", a name without a dot is
// returned as is and a dot-file such as ".hidden" keeps its full name.
func Resolve(path string) string {
	path = strings.TrimRight(filepath.ToSlash(path), "/")
	if path == "" {
		return ""
	}
	base := path[strings.LastIndex(path, "/")+1:]
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return norm.NFC.String(base)
}

// SourcePath returns where the image for path lives. Relative paths are taken
// relative to root; absolute paths are used as is.
func SourcePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// Dedup returns every image referenced by either side of any pair exactly
// once, located with SourcePath and sorted by path. Deduplication is by full
// path.
func Dedup(pairs []pairlist.Pair, root string) []Subject {
	seen := make(map[string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		seen[SourcePath(root, p.Left)] = struct{}{}
		seen[SourcePath(root, p.Right)] = struct{}{}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	subjects := make([]Subject, len(paths))
	for i, path := range paths {
		subjects[i] = Subject{ID: Resolve(path), SourcePath: path}
	}
	return subjects
}

// Collisions reports ids that more than one distinct path resolves to.
// The returned paths are sorted.
func Collisions(subjects []Subject) map[string][]string {
	byID := make(map[string][]string)
	for _, s := range subjects {
		byID[s.ID] = append(byID[s.ID], s.SourcePath)
	}
	collisions := make(map[string][]string)
	for id, paths := range byID {
		if len(paths) > 1 {
			sort.Strings(paths)
			collisions[id] = paths
		}
	}
	return collisions
}
