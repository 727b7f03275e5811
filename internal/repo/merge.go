// internal/repo/merge.go
package repo

import (
	"fmt"
	"sort"

	"grove/internal/errors"

	"go.uber.org/zap"
)

// Merge folds the snapshot of sourceBranch into the current one.
//
// The policy is deliberately simple and is a known limitation, not a bug:
// for every key live in the source snapshot, the source's content overwrites
// the current value whenever the key is absent here or the content
// fingerprints differ. There is no common-ancestor three-way diff and no
// conflict markers; the source always wins. A merge version is published and
// the current branch advances to it.
func (r *Repository) Merge(sourceBranch string) (MergeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sourceVersion, ok := r.branches[sourceBranch]
	if !ok {
		return MergeResult{}, errors.NotFound(fmt.Sprintf("branch not found: %s", sourceBranch))
	}
	if sourceBranch == r.branch {
		return MergeResult{}, errors.Conflict("cannot merge a branch with itself")
	}

	snap, err := r.entries.Snapshot(sourceVersion)
	if err != nil {
		return MergeResult{}, err
	}

	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var changed []string
	for _, name := range names {
		src := snap[name]
		cur, exists := r.entries.Get(name)

		switch {
		case !exists:
			if _, err := r.entries.Add(name, src.Content, r.author); err != nil {
				return MergeResult{}, fmt.Errorf("merging %s: %w", name, err)
			}
		case cur.Fingerprint != src.Fingerprint:
			if _, err := r.entries.Modify(name, src.Content, r.author); err != nil {
				return MergeResult{}, fmt.Errorf("merging %s: %w", name, err)
			}
		default:
			continue
		}
		changed = append(changed, name)
	}

	message := fmt.Sprintf("Merge branch '%s' into %s", sourceBranch, r.branch)
	info := r.entries.WriteCommitRecord(message, r.author, changed)
	r.branches[r.branch] = info.ID

	r.logger.Info("merged branch",
		zap.String("source", sourceBranch),
		zap.String("target", r.branch),
		zap.Int("changed", len(changed)),
		zap.String("version", info.ID))

	return MergeResult{Version: info, Changed: len(changed), Files: changed}, r.persist()
}
