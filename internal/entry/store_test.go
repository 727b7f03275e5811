package entry

import (
	"testing"

	"grove/internal/errors"
	"grove/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(version.NewDirectory())
	require.NoError(t, err)
	s.Init("tester")
	return s
}

func TestAddGet(t *testing.T) {
	s := newTestStore(t)

	info, err := s.Add("readme.md", []byte("hello"), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Added: readme.md", info.Message)
	assert.Equal(t, info.ID, s.CurrentVersion())

	rec, ok := s.Get("readme.md")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), rec.Content)
	assert.Equal(t, "alice", rec.Author)
	assert.NotEmpty(t, rec.Fingerprint)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestAddRejectsInvalidNames(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("", []byte("x"), "alice")
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = s.Add(CommitRecordName, []byte("x"), "alice")
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestModifyRequiresExisting(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Modify("missing.txt", []byte("x"), "alice")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "modify of absent file must be NotFound, got %v", err)

	_, err = s.Add("a.txt", []byte("one"), "alice")
	require.NoError(t, err)

	_, err = s.Modify("a.txt", []byte("two"), "bob")
	require.NoError(t, err)

	rec, ok := s.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), rec.Content)
	assert.Equal(t, "bob", rec.Author)
}

func TestTombstoneHiding(t *testing.T) {
	s := newTestStore(t)

	before, err := s.Add("gone.txt", []byte("payload"), "alice")
	require.NoError(t, err)

	_, err = s.Remove("gone.txt", "alice")
	require.NoError(t, err)

	// Hidden from the current snapshot.
	_, ok := s.Get("gone.txt")
	assert.False(t, ok)
	assert.NotContains(t, s.CurrentKeys(), "gone.txt")

	// Still reachable by explicit historical query.
	rec, err := s.GetAt("gone.txt", before.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), rec.Content)

	// Removing again is NotFound, not a double delete.
	_, err = s.Remove("gone.txt", "alice")
	assert.True(t, errors.IsNotFound(err))
}

func TestVersionImmutability(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.Add("f", []byte("v1"), "alice")
	require.NoError(t, err)
	v2, err := s.Modify("f", []byte("v2"), "alice")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err = s.Modify("f", []byte("later"), "alice")
		require.NoError(t, err)
	}

	rec, err := s.GetAt("f", v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), rec.Content)

	rec, err = s.GetAt("f", v2.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Content)
}

func TestCheckoutSwapsWorkingRoot(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.Add("f", []byte("v1"), "alice")
	require.NoError(t, err)
	v2, err := s.Modify("f", []byte("v2"), "alice")
	require.NoError(t, err)

	require.NoError(t, s.Checkout(v1.ID))
	rec, ok := s.Get("f")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), rec.Content)

	require.NoError(t, s.Checkout(v2.ID))
	rec, ok = s.Get("f")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), rec.Content)

	err = s.Checkout("v999999-unknown0")
	assert.True(t, errors.IsNotFound(err))
}

func TestKeyEnumerationFiltersBookkeeping(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("b.txt", nil, "alice")
	require.NoError(t, err)
	_, err = s.Add("a.txt", nil, "alice")
	require.NoError(t, err)
	info := s.WriteCommitRecord("checkpoint", "alice", []string{"a.txt", "b.txt"})

	assert.Equal(t, []string{"a.txt", "b.txt"}, s.CurrentKeys())

	keys, err := s.KeysAt(info.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, keys)

	// The bookkeeping record is still a real historical record.
	rec, err := s.GetAt(CommitRecordName, info.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("checkpoint"), rec.Content)
}

func TestSnapshotCachesLiveRecords(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("keep.txt", []byte("keep"), "alice")
	require.NoError(t, err)
	_, err = s.Add("drop.txt", []byte("drop"), "alice")
	require.NoError(t, err)
	info, err := s.Remove("drop.txt", "alice")
	require.NoError(t, err)

	snap, err := s.Snapshot(info.ID)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, []byte("keep"), snap["keep.txt"].Content)

	again, err := s.Snapshot(info.ID)
	require.NoError(t, err)
	assert.Equal(t, len(snap), len(again))

	_, err = s.Snapshot("v000000-missing0")
	assert.True(t, errors.IsNotFound(err))
}

func TestGetAtUnknownVersion(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAt("anything", "not-a-version")
	assert.True(t, errors.IsNotFound(err))

	_, err = s.KeysAt("not-a-version")
	assert.True(t, errors.IsNotFound(err))
}
