package watchermodule

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ReduceTargets collapses a set of changed file paths (relative to the
// library root, in any order) into a minimal list of folder-level scan
// targets: each path maps to its parent folder, and a kept ancestor absorbs
// every descendant. A change at the root itself becomes the whole-library
// target, which absorbs everything else. The result is deterministic and
// independent of input order.
func ReduceTargets(libraryID uint32, changedPaths []string) []ScanTarget {
	folders := make(map[string]struct{}, len(changedPaths))
	for _, p := range changedPaths {
		folders[parentFolder(p)] = struct{}{}
	}

	// Whole-library absorbs everything; no need to look further.
	if _, ok := folders[""]; ok {
		return []ScanTarget{{LibraryID: libraryID}}
	}

	ordered := make([]string, 0, len(folders))
	for f := range folders {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := depth(ordered[i]), depth(ordered[j])
		if di != dj {
			return di < dj
		}
		return ordered[i] < ordered[j]
	})

	kept := make([]string, 0, len(ordered))
	for _, folder := range ordered {
		absorbed := false
		for _, ancestor := range kept {
			if folderWithin(ancestor, folder) {
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, folder)
		}
	}

	targets := make([]ScanTarget, 0, len(kept))
	for _, folder := range kept {
		targets = append(targets, ScanTarget{LibraryID: libraryID, FolderPath: folder})
	}
	return targets
}

// parentFolder maps a changed file path to the folder a rescan should
// cover. Files directly under the root map to "" (whole library).
func parentFolder(rel string) string {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return ""
	}
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

func depth(folder string) int {
	if folder == "" {
		return 0
	}
	return strings.Count(folder, "/") + 1
}

// folderWithin reports whether target equals ancestor or sits below it.
func folderWithin(ancestor, target string) bool {
	if ancestor == "" {
		return true
	}
	return target == ancestor || strings.HasPrefix(target, ancestor+"/")
}
