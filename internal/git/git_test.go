package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/testutil"
)

func TestRepo_RemoteURL_Fake(t *testing.T) {
	dir := t.TempDir()
	fake := testutil.NewFakeExecutor()
	fake.Outputs["git remote get-url origin"] = "git@example.com:u/proj.git\n"

	r := NewWithExecutor(fake)
	assert.Equal(t, "git@example.com:u/proj.git", r.RemoteURL(dir))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dir, calls[0].Dir)
}

func TestRepo_RemoteURL_Absent(t *testing.T) {
	fake := testutil.NewFakeExecutor()
	fake.Errors["git remote get-url origin"] = errors.New("exit status 2")
	r := NewWithExecutor(fake)

	assert.Empty(t, r.RemoteURL(t.TempDir()), "no origin")
	assert.Empty(t, r.RemoteURL(filepath.Join(t.TempDir(), "gone")), "missing dir")
	assert.Empty(t, r.RemoteURL(""), "empty dir")

	assert.Len(t, fake.Calls(), 1, "missing and empty dirs never reach git")
}

func TestRepo_Clone_Fake(t *testing.T) {
	base := t.TempDir()
	dest := filepath.Join(base, "src", "proj")

	fake := testutil.NewFakeExecutor()
	r := NewWithExecutor(fake)

	require.NoError(t, r.Clone("https://example.com/proj.git", dest))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(base, "src"), calls[0].Dir)
	assert.Equal(t, []string{"clone", "--quiet", "https://example.com/proj.git", dest}, calls[0].Args)

	info, err := os.Stat(filepath.Join(base, "src"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRepo_Clone_Failure(t *testing.T) {
	fake := testutil.NewFakeExecutor()
	fake.Errors["git clone --quiet bad "+filepath.Join("/tmp", "x")] = errors.New("exit status 128")
	fake.Outputs["git clone --quiet bad "+filepath.Join("/tmp", "x")] = "fatal: repository 'bad' does not exist"
	r := NewWithExecutor(fake)

	err := r.Clone("bad", filepath.Join("/tmp", "x"))
	require.Error(t, err)

	var cmdErr *errors.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Output, "does not exist")
}

func TestRepo_Clone_NoURL(t *testing.T) {
	r := NewWithExecutor(testutil.NewFakeExecutor())
	assert.Error(t, r.Clone("", "/tmp/x"))
}

func TestRepo_RealGit(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir, remoteDir := testutil.SetupTestRepoWithRemote(t)
	r := New()

	assert.Equal(t, remoteDir, r.RemoteURL(repoDir))

	dest := filepath.Join(t.TempDir(), "nested", "clone")
	require.NoError(t, r.Clone(remoteDir, dest))

	_, err := os.Stat(filepath.Join(dest, "README.md"))
	assert.NoError(t, err)
	assert.Equal(t, remoteDir, r.RemoteURL(dest))
}
