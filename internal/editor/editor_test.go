package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/testutil"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "work_0_1", Key("work", 0, 1))
	assert.Equal(t, "my_sess_2_0", Key("my_sess", 2, 0))
}

func TestEditor_IsEditor(t *testing.T) {
	e := New("nvim", []string{"nvim", "vim"}, t.TempDir())

	assert.True(t, e.IsEditor("nvim"))
	assert.True(t, e.IsEditor("/usr/bin/vim"))
	assert.False(t, e.IsEditor("zsh"))
	assert.False(t, e.IsEditor(""))

	defaulted := New("nvim", nil, t.TempDir())
	assert.True(t, defaulted.IsEditor("nvim"))
}

func TestEditor_SessionPath(t *testing.T) {
	e := New("nvim", nil, "/state/editor")
	assert.Equal(t, "/state/editor/work_0_1.vim", e.SessionPath("work_0_1"))
	assert.Equal(t, "/state/editor/a%b_0_0.vim", e.SessionPath("a/b_0_0"))
}

func TestEditor_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "editor")
	fake := testutil.NewFakeExecutor()
	e := NewWithExecutor("nvim", nil, dir, fake)

	require.NoError(t, e.Save("/tmp/nvim.sock", "work_0_1"))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "nvim", calls[0].Name)
	require.Len(t, calls[0].Args, 4)
	assert.Equal(t, []string{"--server", "/tmp/nvim.sock", "--remote-send"}, calls[0].Args[:3])
	assert.Contains(t, calls[0].Args[3], ":mksession! "+e.SessionPath("work_0_1"))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEditor_SaveFailure(t *testing.T) {
	e := NewWithExecutor("nvim", nil, t.TempDir(), failingExecutor{})

	err := e.Save("/tmp/nvim.sock", "k")
	var cmdErr *errors.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "connection refused", cmdErr.Output)

	assert.Error(t, e.Save("", "k"), "no socket")
}

type failingExecutor struct{}

func (failingExecutor) Run(string, string, ...string) ([]byte, error) {
	return []byte("connection refused"), errors.New("exit status 1")
}

func TestEditor_RemoveAndReload(t *testing.T) {
	dir := t.TempDir()
	e := New("nvim", nil, dir)

	assert.Equal(t, "nvim", e.ReloadCommand("work_0_0"), "no session file")
	assert.NoError(t, e.Remove("work_0_0"), "missing file is fine")

	require.NoError(t, os.WriteFile(e.SessionPath("work_0_0"), []byte("\" session"), 0o644))
	assert.True(t, e.HasSession("work_0_0"))
	assert.Equal(t, "nvim -S "+e.SessionPath("work_0_0"), e.ReloadCommand("work_0_0"))

	require.NoError(t, e.Remove("work_0_0"))
	assert.False(t, e.HasSession("work_0_0"))
}

func TestExEscape(t *testing.T) {
	assert.Equal(t, `/a/b.vim`, exEscape("/a/b.vim"))
	assert.Equal(t, `/my\ dir/s\%1.vim`, exEscape("/my dir/s%1.vim"))
}
