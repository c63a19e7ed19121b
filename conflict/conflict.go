// Package conflict detects overlapping file edits between workers of one
// session. Detection is a pure function over a snapshot of the workers'
// files-touched sets: nothing is stored, subscribed to, or cached, so it is
// safe to call at any time including mid-run.
package conflict

import (
	"sort"

	"github.com/swarmdeck/swarmdeck/core"
)

// FileConflict reports a file path touched by two or more distinct workers
// within the same session. It is derived on demand, never persisted.
type FileConflict struct {
	FilePath  string   `json:"file_path"`
	WorkerIDs []string `json:"worker_ids"`
}

// Detect groups the workers' files-touched sets by path and returns one
// FileConflict per path touched by at least two distinct workers. Worker ids
// are deduplicated; ordering of the result is unspecified (see Sort).
func Detect(workers []*core.Worker) []FileConflict {
	byPath := map[string]map[string]bool{}
	for _, w := range workers {
		for path := range w.FilesTouched {
			ids, ok := byPath[path]
			if !ok {
				ids = map[string]bool{}
				byPath[path] = ids
			}
			ids[w.ID] = true
		}
	}

	var conflicts []FileConflict
	for path, ids := range byPath {
		if len(ids) < 2 {
			continue
		}
		workerIDs := make([]string, 0, len(ids))
		for id := range ids {
			workerIDs = append(workerIDs, id)
		}
		conflicts = append(conflicts, FileConflict{FilePath: path, WorkerIDs: workerIDs})
	}
	return conflicts
}

// Sort orders conflicts by path and each conflict's worker ids
// lexicographically, for stable presentation.
func Sort(conflicts []FileConflict) {
	for i := range conflicts {
		sort.Strings(conflicts[i].WorkerIDs)
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].FilePath < conflicts[j].FilePath
	})
}
