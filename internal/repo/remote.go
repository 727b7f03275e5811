// internal/repo/remote.go
package repo

import (
	"fmt"

	"grove/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Remote is a configured remote descriptor. Remote operations are simulated:
// they keep local bookkeeping (the tracking branch) and return descriptive
// results, but no network traffic ever happens.
type Remote struct {
	URL        string `json:"url"`
	Configured bool   `json:"configured"`
	ID         string `json:"id,omitempty"`
}

// SetRemote configures the remote descriptor.
func (r *Repository) SetRemote(url string) (Remote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if url == "" {
		return Remote{}, errors.InvalidArgument("remote url cannot be empty")
	}

	r.remote = Remote{URL: url, Configured: true, ID: uuid.NewString()}
	r.logger.Info("configured remote", zap.String("url", url))
	return r.remote, r.persist()
}

// Remote returns the configured remote descriptor, if any.
func (r *Repository) Remote() (Remote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.remote, r.remote.Configured
}

// Fetch reports what a fetch would do.
func (r *Repository) Fetch() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.remote.Configured {
		return "", errors.NotFound("no remote repository configured")
	}
	return fmt.Sprintf("Fetching from %s (simulated)", r.remote.URL), nil
}

// Pull fetches and then merges the tracking branch for the current branch.
// The tracking branch is created at the working version the first time,
// which makes the first pull a no-change merge.
func (r *Repository) Pull() (string, MergeResult, error) {
	fetchMsg, err := r.Fetch()
	if err != nil {
		return "", MergeResult{}, err
	}

	r.mu.Lock()
	tracking := "remote/" + r.branch
	if _, ok := r.branches[tracking]; !ok {
		r.branches[tracking] = r.entries.CurrentVersion()
	}
	r.mu.Unlock()

	result, err := r.Merge(tracking)
	if err != nil {
		return "", MergeResult{}, err
	}
	return fetchMsg, result, nil
}

// Push reports what a push would do.
func (r *Repository) Push() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.remote.Configured {
		return "", errors.NotFound("no remote repository configured")
	}
	files := len(r.entries.CurrentKeys())
	return fmt.Sprintf("Pushing to %s (simulated) - %d files", r.remote.URL, files), nil
}
