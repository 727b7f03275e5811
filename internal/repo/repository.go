// internal/repo/repository.go
package repo

import (
	"fmt"
	"sort"
	"sync"

	"grove/internal/entry"
	"grove/internal/errors"
	"grove/internal/storage"
	"grove/internal/validation"
	"grove/internal/version"

	"go.uber.org/zap"
)

// DefaultBranch is the branch a new repository starts on.
const DefaultBranch = "main"

// Status is the coarse, file-level classification of the working snapshot.
// Every current key is either staged or unstaged; content-level diffing is
// deliberately out of scope.
type Status struct {
	Branch   string   `json:"branch"`
	Staged   []string `json:"staged"`
	Unstaged []string `json:"unstaged"`
	Clean    bool     `json:"clean"`
}

// Branch describes one entry of the branch map.
type Branch struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Current bool   `json:"current"`
}

// MergeResult reports what a merge changed.
type MergeResult struct {
	Version version.Info `json:"version"`
	Changed int          `json:"changed"`
	Files   []string     `json:"files,omitempty"`
}

// FileVersion pairs a version with the record a file held in it.
type FileVersion struct {
	Info   version.Info  `json:"info"`
	Record *entry.Record `json:"record"`
}

// Repository ties the entry store, version directory, branch map and staging
// set together. Each Repository is a self-contained instance; two of them
// share nothing.
//
// All mutating operations are serialized behind mu. Reads that only touch an
// already published version run lock-free once the root is resolved.
type Repository struct {
	mu       sync.RWMutex
	dir      *version.Directory
	entries  *entry.Store
	branch   string
	branches map[string]string
	staging  map[string]struct{}
	remote   Remote
	author   string
	logger   *zap.Logger

	store    *storage.Store // nil for in-memory repositories
	savedSeq uint64
}

// New creates an in-memory repository with an initial empty version on the
// default branch.
func New(author string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := version.NewDirectory()
	entries, err := entry.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("creating entry store: %w", err)
	}

	r := &Repository{
		dir:      dir,
		entries:  entries,
		branch:   DefaultBranch,
		branches: make(map[string]string),
		staging:  make(map[string]struct{}),
		author:   author,
		logger:   logger,
	}

	init := entries.Init(author)
	r.branches[DefaultBranch] = init.ID
	logger.Debug("initialized repository",
		zap.String("branch", DefaultBranch),
		zap.String("version", init.ID))
	return r, nil
}

// Open creates a repository backed by the store at dataDir, restoring any
// previously persisted state.
func Open(dataDir, author string, logger *zap.Logger) (*Repository, error) {
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	r, err := attach(store, author, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return r, nil
}

// OpenWith attaches a repository to an already opened store. Used by tests
// with in-memory storage.
func OpenWith(store *storage.Store, author string, logger *zap.Logger) (*Repository, error) {
	return attach(store, author, logger)
}

func attach(store *storage.Store, author string, logger *zap.Logger) (*Repository, error) {
	st, found, err := store.LoadState()
	if err != nil {
		return nil, err
	}

	if !found {
		r, err := New(author, logger)
		if err != nil {
			return nil, err
		}
		r.store = store
		if err := r.persist(); err != nil {
			return nil, fmt.Errorf("persisting initial state: %w", err)
		}
		return r, nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	dir := version.NewDirectory()
	entries, err := entry.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("creating entry store: %w", err)
	}

	versions, err := store.LoadVersions()
	if err != nil {
		return nil, err
	}
	var savedSeq uint64
	for _, v := range versions {
		dir.Restore(v.Info, v.Root)
		if v.Info.Seq > savedSeq {
			savedSeq = v.Info.Seq
		}
	}

	if err := entries.Checkout(st.Working); err != nil {
		return nil, fmt.Errorf("restoring working version: %w", err)
	}

	staging := make(map[string]struct{}, len(st.Staged))
	for _, name := range st.Staged {
		staging[name] = struct{}{}
	}
	if st.Branches == nil {
		st.Branches = map[string]string{st.Branch: st.Working}
	}
	if author == "" {
		author = st.Author
	}

	r := &Repository{
		dir:      dir,
		entries:  entries,
		branch:   st.Branch,
		branches: st.Branches,
		staging:  staging,
		author:   author,
		logger:   logger,
		store:    store,
		savedSeq: savedSeq,
		remote: Remote{
			URL:        st.RemoteURL,
			Configured: st.RemoteConfigured,
			ID:         st.RemoteID,
		},
	}

	logger.Debug("restored repository",
		zap.String("branch", r.branch),
		zap.Int("versions", len(versions)))
	return r, nil
}

// Close releases the backing store, if any.
func (r *Repository) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// SetAuthor changes the author recorded on subsequent operations.
func (r *Repository) SetAuthor(author string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if author == "" {
		return errors.InvalidArgument("author cannot be empty")
	}
	r.author = author
	return r.persist()
}

// Author returns the current author.
func (r *Repository) Author() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.author
}

// Add writes a new record for name and publishes a version. The branch
// pointer does not move; only commits and merges advance it.
func (r *Repository) Add(name string, content []byte) (version.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := r.entries.Add(name, content, r.author)
	if err != nil {
		return version.Info{}, err
	}
	r.logger.Debug("added file", zap.String("name", name), zap.String("version", info.ID))
	return info, r.persist()
}

// Modify replaces an existing record's content; NotFound if name is absent.
func (r *Repository) Modify(name string, content []byte) (version.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := r.entries.Modify(name, content, r.author)
	if err != nil {
		return version.Info{}, err
	}
	r.logger.Debug("modified file", zap.String("name", name), zap.String("version", info.ID))
	return info, r.persist()
}

// Put adds name when it is absent and modifies it otherwise.
func (r *Repository) Put(name string, content []byte) (version.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		info version.Info
		err  error
	)
	if r.entries.Exists(name) {
		info, err = r.entries.Modify(name, content, r.author)
	} else {
		info, err = r.entries.Add(name, content, r.author)
	}
	if err != nil {
		return version.Info{}, err
	}
	return info, r.persist()
}

// Remove tombstones name and publishes a version.
func (r *Repository) Remove(name string) (version.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := r.entries.Remove(name, r.author)
	if err != nil {
		return version.Info{}, err
	}
	delete(r.staging, name)
	r.logger.Debug("removed file", zap.String("name", name), zap.String("version", info.ID))
	return info, r.persist()
}

// Get returns the record for name in the working snapshot, or, when
// versionID is non-empty, in that version.
func (r *Repository) Get(name, versionID string) (*entry.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if versionID != "" {
		return r.entries.GetAt(name, versionID)
	}
	rec, ok := r.entries.Get(name)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("file not found: %s", name))
	}
	return rec, nil
}

// Keys enumerates live file names, in the working snapshot or at versionID.
func (r *Repository) Keys(versionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if versionID != "" {
		return r.entries.KeysAt(versionID)
	}
	return r.entries.CurrentKeys(), nil
}

// Stage adds existing keys to the staging set. Names that are absent from
// the current snapshot are skipped, not an error. The staged names are
// returned.
func (r *Repository) Stage(names []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var staged []string
	for _, name := range names {
		if r.entries.Exists(name) {
			r.staging[name] = struct{}{}
			staged = append(staged, name)
		}
	}
	sort.Strings(staged)
	if len(staged) > 0 {
		if err := r.persist(); err != nil {
			r.logger.Warn("persisting staging set", zap.Error(err))
		}
	}
	return staged
}

// StageAll stages every live key in the current snapshot.
func (r *Repository) StageAll() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.entries.CurrentKeys()
	for _, name := range keys {
		r.staging[name] = struct{}{}
	}
	if len(keys) > 0 {
		if err := r.persist(); err != nil {
			r.logger.Warn("persisting staging set", zap.Error(err))
		}
	}
	return keys
}

// Unstage drops names from the staging set.
func (r *Repository) Unstage(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		delete(r.staging, name)
	}
	if err := r.persist(); err != nil {
		r.logger.Warn("persisting staging set", zap.Error(err))
	}
}

// Commit publishes a new version from the staged set and advances the
// current branch to it. An empty staging set is a NoOp signal: nothing is
// published and history does not grow.
func (r *Repository) Commit(message string) (version.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.staging) == 0 {
		return version.Info{}, errors.NoOp("nothing to commit")
	}
	if message == "" {
		message = "Auto-commit"
	}

	files := make([]string, 0, len(r.staging))
	for name := range r.staging {
		files = append(files, name)
	}
	sort.Strings(files)

	info := r.entries.WriteCommitRecord(message, r.author, files)
	r.staging = make(map[string]struct{})
	r.branches[r.branch] = info.ID

	r.logger.Info("committed",
		zap.String("branch", r.branch),
		zap.String("version", info.ID),
		zap.Int("files", len(files)))
	return info, r.persist()
}

// CreateBranch records the working version under a new name. The working
// version and current branch are unchanged.
func (r *Repository) CreateBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validation.BranchName(name); err != nil {
		return err
	}
	if _, exists := r.branches[name]; exists {
		return errors.Conflict(fmt.Sprintf("branch already exists: %s", name))
	}

	r.branches[name] = r.entries.CurrentVersion()
	r.logger.Debug("created branch", zap.String("name", name))
	return r.persist()
}

// DeleteBranch removes a branch pointer. The current branch cannot be
// deleted.
func (r *Repository) DeleteBranch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == r.branch {
		return errors.Conflict(fmt.Sprintf("cannot delete the current branch: %s", name))
	}
	if _, exists := r.branches[name]; !exists {
		return errors.NotFound(fmt.Sprintf("branch not found: %s", name))
	}

	delete(r.branches, name)
	r.logger.Debug("deleted branch", zap.String("name", name))
	return r.persist()
}

// ListBranches returns the branch map sorted by name.
func (r *Repository) ListBranches() []Branch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Branch, 0, len(r.branches))
	for name, v := range r.branches {
		out = append(out, Branch{Name: name, Version: v, Current: name == r.branch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CurrentBranch returns the checked-out branch name. After a checkout of a
// raw version id the label still names the old branch (detached semantics).
func (r *Repository) CurrentBranch() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.branch
}

// CurrentVersion returns the working version id.
func (r *Repository) CurrentVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.CurrentVersion()
}

// Checkout resolves target first as a branch name, then as a version id.
// A branch checkout switches both the current branch and the working
// version; a version checkout moves the working version only. Unknown
// targets fail without mutating anything.
func (r *Repository) Checkout(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.branches[target]; ok {
		if err := r.entries.Checkout(v); err != nil {
			return err
		}
		r.branch = target
		r.logger.Info("switched branch", zap.String("branch", target), zap.String("version", v))
		return r.persist()
	}

	if r.dir.Exists(target) {
		if err := r.entries.Checkout(target); err != nil {
			return err
		}
		r.logger.Info("detached checkout", zap.String("version", target))
		return r.persist()
	}

	return errors.NotFound(fmt.Sprintf("no branch or version named %q", target))
}

// Status classifies every live key of the working snapshot as staged or
// unstaged. The classification is file-level only.
func (r *Repository) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{Branch: r.branch}
	for _, name := range r.entries.CurrentKeys() {
		if _, ok := r.staging[name]; ok {
			st.Staged = append(st.Staged, name)
		} else {
			st.Unstaged = append(st.Unstaged, name)
		}
	}
	st.Clean = len(st.Staged) == 0 && len(st.Unstaged) == 0
	return st
}

// History returns every published version in publish order.
func (r *Repository) History() []version.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir.History()
}

// FileHistory returns the versions in which name exists non-tombstoned,
// oldest first, with the record each one holds.
func (r *Repository) FileHistory(name string) []FileVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []FileVersion
	for _, info := range r.dir.History() {
		rec, err := r.entries.GetAt(name, info.ID)
		if err != nil {
			continue
		}
		out = append(out, FileVersion{Info: info, Record: rec})
	}
	return out
}

// persist writes unsaved versions and the repository head to the backing
// store. A nil store makes it a no-op. Callers hold mu.
func (r *Repository) persist() error {
	if r.store == nil {
		return nil
	}

	for _, info := range r.dir.History() {
		if info.Seq <= r.savedSeq {
			continue
		}
		root, _ := r.dir.Resolve(info.ID)
		if err := r.store.SaveVersion(info, root); err != nil {
			return fmt.Errorf("saving version %s: %w", info.ID, err)
		}
		r.savedSeq = info.Seq
	}

	staged := make([]string, 0, len(r.staging))
	for name := range r.staging {
		staged = append(staged, name)
	}
	sort.Strings(staged)

	st := storage.State{
		Branch:           r.branch,
		Working:          r.entries.CurrentVersion(),
		Author:           r.author,
		Staged:           staged,
		Branches:         r.branches,
		RemoteURL:        r.remote.URL,
		RemoteConfigured: r.remote.Configured,
		RemoteID:         r.remote.ID,
	}
	if err := r.store.SaveState(st); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}
