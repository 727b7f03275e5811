package repo

import (
	"testing"

	"grove/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	r, err := New("tester", nil)
	require.NoError(t, err)
	return r
}

func TestNewRepositoryStartsOnMain(t *testing.T) {
	r := newTestRepo(t)

	assert.Equal(t, DefaultBranch, r.CurrentBranch())
	assert.NotEmpty(t, r.CurrentVersion())

	branches := r.ListBranches()
	require.Len(t, branches, 1)
	assert.Equal(t, DefaultBranch, branches[0].Name)
	assert.True(t, branches[0].Current)
	assert.Equal(t, r.CurrentVersion(), branches[0].Version)

	// The initial empty version is already published.
	require.Len(t, r.History(), 1)
	assert.Equal(t, "Initial version", r.History()[0].Message)
}

func TestRepositoriesAreIndependent(t *testing.T) {
	a := newTestRepo(t)
	b := newTestRepo(t)

	_, err := a.Add("only-in-a.txt", []byte("x"))
	require.NoError(t, err)

	keys, err := b.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestEndToEndVersionTravel(t *testing.T) {
	r := newTestRepo(t)

	v1, err := r.Add("f", []byte("v1"))
	require.NoError(t, err)
	v2, err := r.Put("f", []byte("v2"))
	require.NoError(t, err)

	rec, err := r.Get("f", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Content)

	rec, err = r.Get("f", v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), rec.Content)

	require.NoError(t, r.Checkout(v1.ID))
	rec, err = r.Get("f", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), rec.Content)

	require.NoError(t, r.Checkout(v2.ID))
	rec, err = r.Get("f", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), rec.Content)
}

func TestStageIgnoresUnknownNames(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Add("known.txt", []byte("x"))
	require.NoError(t, err)

	staged := r.Stage([]string{"known.txt", "ghost.txt"})
	assert.Equal(t, []string{"known.txt"}, staged)

	st := r.Status()
	assert.Equal(t, []string{"known.txt"}, st.Staged)
	assert.Empty(t, st.Unstaged)
}

func TestCommitNoOp(t *testing.T) {
	r := newTestRepo(t)
	before := len(r.History())

	_, err := r.Commit("empty")
	require.Error(t, err)
	assert.True(t, errors.IsNoOp(err), "empty commit must signal NoOp, got %v", err)
	assert.Len(t, r.History(), before, "a no-op commit must not append to history")
}

func TestCommitAdvancesBranch(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Add("a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = r.Add("b.txt", []byte("b"))
	require.NoError(t, err)

	r.StageAll()
	info, err := r.Commit("first commit")
	require.NoError(t, err)
	assert.Equal(t, "first commit", info.Message)
	assert.Equal(t, []string{"a.txt", "b.txt"}, info.Files)

	// Staging set cleared, branch pointer moved.
	st := r.Status()
	assert.Empty(t, st.Staged)
	for _, b := range r.ListBranches() {
		if b.Name == DefaultBranch {
			assert.Equal(t, info.ID, b.Version)
		}
	}
}

func TestCommitDefaultsMessage(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Add("a.txt", []byte("a"))
	require.NoError(t, err)
	r.StageAll()

	info, err := r.Commit("")
	require.NoError(t, err)
	assert.Equal(t, "Auto-commit", info.Message)
}

func TestBranchLifecycle(t *testing.T) {
	r := newTestRepo(t)

	require.NoError(t, r.CreateBranch("feature"))

	err := r.CreateBranch("feature")
	assert.True(t, errors.IsConflict(err), "duplicate branch must be Conflict, got %v", err)

	err = r.DeleteBranch(DefaultBranch)
	assert.True(t, errors.IsConflict(err), "deleting current branch must be Conflict")

	err = r.DeleteBranch("ghost")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, r.DeleteBranch("feature"))
	assert.Len(t, r.ListBranches(), 1)
}

func TestCreateBranchDoesNotMoveHead(t *testing.T) {
	r := newTestRepo(t)

	before := r.CurrentVersion()
	require.NoError(t, r.CreateBranch("feature"))

	assert.Equal(t, before, r.CurrentVersion())
	assert.Equal(t, DefaultBranch, r.CurrentBranch())
	for _, b := range r.ListBranches() {
		if b.Name == "feature" {
			assert.Equal(t, before, b.Version)
		}
	}
}

func TestCheckoutBranchVsVersion(t *testing.T) {
	r := newTestRepo(t)

	v1, err := r.Add("f", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, r.CreateBranch("feature"))

	_, err = r.Put("f", []byte("v2"))
	require.NoError(t, err)
	r.StageAll()
	_, err = r.Commit("advance main")
	require.NoError(t, err)

	// Branch checkout switches both label and version.
	require.NoError(t, r.Checkout("feature"))
	assert.Equal(t, "feature", r.CurrentBranch())
	assert.Equal(t, v1.ID, r.CurrentVersion())

	// Version checkout is detached: label stays put.
	require.NoError(t, r.Checkout(v1.ID))
	assert.Equal(t, "feature", r.CurrentBranch())
	assert.Equal(t, v1.ID, r.CurrentVersion())

	// Unknown target mutates nothing.
	err = r.Checkout("no-such-thing")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "feature", r.CurrentBranch())
	assert.Equal(t, v1.ID, r.CurrentVersion())
}

func TestStatusClean(t *testing.T) {
	r := newTestRepo(t)

	st := r.Status()
	assert.True(t, st.Clean)
	assert.Equal(t, DefaultBranch, st.Branch)

	_, err := r.Add("f", []byte("x"))
	require.NoError(t, err)

	st = r.Status()
	assert.False(t, st.Clean)
	assert.Equal(t, []string{"f"}, st.Unstaged)
}

func TestRemoveUnstagesFile(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Add("f", []byte("x"))
	require.NoError(t, err)
	r.Stage([]string{"f"})

	_, err = r.Remove("f")
	require.NoError(t, err)

	st := r.Status()
	assert.Empty(t, st.Staged)
	assert.True(t, st.Clean)
}

func TestFileHistory(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Add("f", []byte("one"))
	require.NoError(t, err)
	_, err = r.Modify("f", []byte("two"))
	require.NoError(t, err)
	_, err = r.Remove("f")
	require.NoError(t, err)

	history := r.FileHistory("f")
	require.Len(t, history, 2, "tombstoned versions must not appear in file history")
	assert.Equal(t, []byte("one"), history[0].Record.Content)
	assert.Equal(t, []byte("two"), history[1].Record.Content)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(dir, "alice", nil)
	require.NoError(t, err)

	_, err = r.Add("a.txt", []byte("alpha"))
	require.NoError(t, err)
	v1, err := r.Add("b.txt", []byte("beta"))
	require.NoError(t, err)
	r.StageAll()
	commit, err := r.Commit("persisted commit")
	require.NoError(t, err)
	require.NoError(t, r.CreateBranch("feature"))
	r.Stage([]string{"a.txt"})
	require.NoError(t, r.Close())

	re, err := Open(dir, "", nil)
	require.NoError(t, err)
	defer re.Close()

	assert.Equal(t, "alice", re.Author())
	assert.Equal(t, DefaultBranch, re.CurrentBranch())
	assert.Equal(t, commit.ID, re.CurrentVersion())

	rec, err := re.Get("a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), rec.Content)

	rec, err = re.Get("b.txt", v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("beta"), rec.Content)

	st := re.Status()
	assert.Equal(t, []string{"a.txt"}, st.Staged)

	names := make(map[string]string)
	for _, b := range re.ListBranches() {
		names[b.Name] = b.Version
	}
	assert.Contains(t, names, "feature")

	// History survives with order and messages intact.
	history := re.History()
	require.NotEmpty(t, history)
	assert.Equal(t, "Initial version", history[0].Message)
	assert.Equal(t, "persisted commit", history[len(history)-1].Message)

	// And new versions keep publishing past the restored sequence.
	next, err := re.Put("c.txt", []byte("gamma"))
	require.NoError(t, err)
	assert.Greater(t, next.Seq, commit.Seq)
}
