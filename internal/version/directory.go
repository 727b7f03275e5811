// internal/version/directory.go
package version

import (
	"fmt"
	"sync"
	"time"

	"grove/internal/rbtree"

	"github.com/google/uuid"
)

// Meta is the caller-supplied metadata attached to a published version.
type Meta struct {
	Message string
	Author  string
	Files   []string
}

// Info describes one published version. Once issued, an Info is never
// updated; re-resolving the same id always yields the same root.
type Info struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files,omitempty"`
}

// Directory maps version identifiers to immutable tree roots. It is the sole
// structural owner of every published root: a node stays reachable for as
// long as some directory entry or branch pointer can reach it.
type Directory struct {
	mu    sync.RWMutex
	roots map[string]*rbtree.Node
	order []Info
	seq   uint64
}

func NewDirectory() *Directory {
	return &Directory{
		roots: make(map[string]*rbtree.Node),
	}
}

// Publish allocates a fresh version id, calls build with it so new nodes can
// carry their owning version tag, and records the returned root under the id.
// Only the root reference is stored; path copying already guarantees the tree
// is immutable, so no copy of any kind is made here.
func (d *Directory) Publish(meta Meta, build func(id string) *rbtree.Node) Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	info := Info{
		ID:        newID(d.seq),
		Seq:       d.seq,
		Message:   meta.Message,
		Author:    meta.Author,
		CreatedAt: time.Now(),
		Files:     meta.Files,
	}

	d.roots[info.ID] = build(info.ID)
	d.order = append(d.order, info)
	return info
}

// Restore re-registers a previously published version, used when loading a
// repository from disk. The directory's sequence counter is advanced past
// the restored version so future ids cannot collide.
func (d *Directory) Restore(info Info, root *rbtree.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roots[info.ID] = root
	d.order = append(d.order, info)
	if info.Seq > d.seq {
		d.seq = info.Seq
	}
}

// Resolve returns the root published under id.
func (d *Directory) Resolve(id string) (*rbtree.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	root, ok := d.roots[id]
	return root, ok
}

// Exists reports whether id names a published version.
func (d *Directory) Exists(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.roots[id]
	return ok
}

// Lookup returns the Info for id.
func (d *Directory) Lookup(id string) (Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, info := range d.order {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// History returns every published version in publish order.
func (d *Directory) History() []Info {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Info, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of published versions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.order)
}

// newID builds a version id from the monotonic sequence number plus a random
// fragment. Wall-clock time is deliberately not part of the id: two commits
// within the same millisecond must still get distinct identifiers.
func newID(seq uint64) string {
	return fmt.Sprintf("v%06d-%s", seq, uuid.NewString()[:8])
}
