// internal/entry/store.go
package entry

import (
	"fmt"

	"grove/internal/errors"
	"grove/internal/rbtree"
	"grove/internal/validation"
	"grove/internal/version"

	lru "github.com/hashicorp/golang-lru/v2"
)

const snapshotCacheSize = 128

// Store wraps the persistent map with file semantics: named records,
// tombstoned deletions, and per-version queries. Every mutation publishes a
// new version through the directory and moves the working root to it.
//
// Store itself is not synchronized; the repository layer serializes all
// mutating calls behind its writer lock. Reads against an already published
// version need no lock because published nodes are never mutated.
type Store struct {
	dir     *version.Directory
	root    *rbtree.Node
	current string

	// snapshots caches the flattened live-record view of published versions,
	// keyed by version id. Safe to cache forever: versions are immutable.
	snapshots *lru.Cache[string, map[string]*Record]
}

func NewStore(dir *version.Directory) (*Store, error) {
	snapshots, err := lru.New[string, map[string]*Record](snapshotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot cache: %w", err)
	}

	return &Store{
		dir:       dir,
		snapshots: snapshots,
	}, nil
}

// Init publishes the empty initial version and makes it current.
func (s *Store) Init(author string) version.Info {
	info := s.dir.Publish(version.Meta{Message: "Initial version", Author: author},
		func(string) *rbtree.Node { return nil })
	s.root = nil
	s.current = info.ID
	return info
}

// Add writes a new (or replacement) record for name and publishes a version.
func (s *Store) Add(name string, content []byte, author string) (version.Info, error) {
	if err := validName(name); err != nil {
		return version.Info{}, err
	}
	return s.put("Added: "+name, NewRecord(name, content, author)), nil
}

// Modify replaces the content of an existing record. Unlike Add it fails
// with NotFound when name is absent or tombstoned in the current snapshot.
func (s *Store) Modify(name string, content []byte, author string) (version.Info, error) {
	if err := validName(name); err != nil {
		return version.Info{}, err
	}
	if _, ok := s.Get(name); !ok {
		return version.Info{}, errors.NotFound(fmt.Sprintf("file not found: %s", name))
	}
	return s.put("Modified: "+name, NewRecord(name, content, author)), nil
}

// Remove writes a tombstone for name and publishes a version. The prior
// content stays reachable through every earlier version.
func (s *Store) Remove(name, author string) (version.Info, error) {
	if err := validName(name); err != nil {
		return version.Info{}, err
	}
	if _, ok := s.Get(name); !ok {
		return version.Info{}, errors.NotFound(fmt.Sprintf("file not found: %s", name))
	}
	return s.put("Deleted: "+name, NewTombstone(name, author)), nil
}

// WriteCommitRecord stores the commit bookkeeping record and publishes the
// resulting version tagged with message and the staged file list.
func (s *Store) WriteCommitRecord(message, author string, files []string) version.Info {
	rec := NewRecord(CommitRecordName, []byte(message), author)
	info := s.dir.Publish(version.Meta{Message: message, Author: author, Files: files},
		func(id string) *rbtree.Node {
			return rbtree.Insert(s.root, CommitRecordName, rec, id)
		})
	root, _ := s.dir.Resolve(info.ID)
	s.root = root
	s.current = info.ID
	return info
}

func (s *Store) put(message string, rec *Record) version.Info {
	info := s.dir.Publish(version.Meta{Message: message, Author: rec.Author},
		func(id string) *rbtree.Node {
			return rbtree.Insert(s.root, rec.Name, rec, id)
		})
	root, _ := s.dir.Resolve(info.ID)
	s.root = root
	s.current = info.ID
	return info
}

// Get returns the record for name in the current snapshot. Tombstoned names
// report absent.
func (s *Store) Get(name string) (*Record, bool) {
	return recordAt(s.root, name)
}

// GetAt returns the record for name as of the given version. Unknown
// versions and absent or tombstoned names both report NotFound; the message
// distinguishes them.
func (s *Store) GetAt(name, versionID string) (*Record, error) {
	root, ok := s.dir.Resolve(versionID)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("version not found: %s", versionID))
	}
	rec, ok := recordAt(root, name)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("file not found: %s @ %s", name, versionID))
	}
	return rec, nil
}

// Exists reports whether name is live in the current snapshot.
func (s *Store) Exists(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// CurrentKeys returns every live file name in the working snapshot, in
// ascending order. Tombstones and the commit bookkeeping key are filtered.
func (s *Store) CurrentKeys() []string {
	return liveKeys(s.root)
}

// KeysAt returns every live file name in the given version.
func (s *Store) KeysAt(versionID string) ([]string, error) {
	root, ok := s.dir.Resolve(versionID)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("version not found: %s", versionID))
	}
	return liveKeys(root), nil
}

// Snapshot returns the live records of a published version keyed by name.
// Results are cached; the returned map must be treated as read-only.
func (s *Store) Snapshot(versionID string) (map[string]*Record, error) {
	if snap, ok := s.snapshots.Get(versionID); ok {
		return snap, nil
	}

	root, ok := s.dir.Resolve(versionID)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("version not found: %s", versionID))
	}

	snap := make(map[string]*Record)
	rbtree.Walk(root, func(key string, value any) bool {
		rec := value.(*Record)
		if !rec.Deleted && key != CommitRecordName {
			snap[key] = rec
		}
		return true
	})

	s.snapshots.Add(versionID, snap)
	return snap, nil
}

// Checkout swaps the working root to the given version. This is a pointer
// swap, never a copy.
func (s *Store) Checkout(versionID string) error {
	root, ok := s.dir.Resolve(versionID)
	if !ok {
		return errors.NotFound(fmt.Sprintf("version not found: %s", versionID))
	}
	s.root = root
	s.current = versionID
	return nil
}

// CurrentVersion returns the id of the working version.
func (s *Store) CurrentVersion() string {
	return s.current
}

// Root exposes the working root for the persistence layer.
func (s *Store) Root() *rbtree.Node {
	return s.root
}

func recordAt(root *rbtree.Node, name string) (*Record, bool) {
	value, ok := rbtree.Get(root, name)
	if !ok {
		return nil, false
	}
	rec := value.(*Record)
	if rec.Deleted {
		return nil, false
	}
	return rec, true
}

func liveKeys(root *rbtree.Node) []string {
	keys := make([]string, 0, rbtree.Size(root))
	rbtree.Walk(root, func(key string, value any) bool {
		rec := value.(*Record)
		if !rec.Deleted && key != CommitRecordName {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}

func validName(name string) error {
	if err := validation.FileName(name); err != nil {
		return err
	}
	if name == CommitRecordName {
		return errors.InvalidArgument(fmt.Sprintf("file name %q is reserved", name))
	}
	return nil
}
