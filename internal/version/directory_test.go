package version

import (
	"testing"

	"grove/internal/rbtree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishResolve(t *testing.T) {
	d := NewDirectory()

	var root *rbtree.Node
	info := d.Publish(Meta{Message: "first", Author: "alice"}, func(id string) *rbtree.Node {
		root = rbtree.Insert(nil, "a", 1, id)
		return root
	})

	require.NotEmpty(t, info.ID)
	assert.Equal(t, uint64(1), info.Seq)
	assert.Equal(t, "first", info.Message)
	assert.False(t, info.CreatedAt.IsZero())

	got, ok := d.Resolve(info.ID)
	require.True(t, ok)
	assert.Same(t, root, got, "resolve must return the published root, not a copy")

	_, ok = d.Resolve("v999999-deadbeef")
	assert.False(t, ok)
}

func TestIDsUniqueUnderRapidPublish(t *testing.T) {
	d := NewDirectory()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		info := d.Publish(Meta{Message: "burst"}, func(string) *rbtree.Node { return nil })
		require.False(t, seen[info.ID], "duplicate version id %s", info.ID)
		seen[info.ID] = true
	}
}

func TestHistoryOrder(t *testing.T) {
	d := NewDirectory()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, d.Publish(Meta{}, func(string) *rbtree.Node { return nil }).ID)
	}

	history := d.History()
	require.Len(t, history, 5)
	for i, info := range history {
		assert.Equal(t, ids[i], info.ID)
		assert.Equal(t, uint64(i+1), info.Seq)
	}
}

func TestRestoreAdvancesSequence(t *testing.T) {
	d := NewDirectory()
	d.Restore(Info{ID: "v000007-abcd1234", Seq: 7}, nil)

	info := d.Publish(Meta{}, func(string) *rbtree.Node { return nil })
	assert.Equal(t, uint64(8), info.Seq)

	got, ok := d.Lookup("v000007-abcd1234")
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Seq)
}

func TestLookupUnknown(t *testing.T) {
	d := NewDirectory()
	_, ok := d.Lookup("nope")
	assert.False(t, ok)
	assert.False(t, d.Exists("nope"))
}
