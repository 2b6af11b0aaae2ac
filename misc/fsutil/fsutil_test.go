package fsutil_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/misc/fsutil"

	"github.com/stretchr/testify/require"
)

func homeEnv() string {
	if runtime.GOOS == "windows" {
		return "USERPROFILE"
	}
	return "HOME"
}

// fakeHome points the user home directory at a fresh temp dir.
func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(homeEnv(), home)
	return home
}

func TestExpandDefaultRepoRoot(t *testing.T) {
	home := fakeHome(t)

	root, err := fsutil.ExpandHome(config.DefaultPathRoot)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, config.DefaultPathName), root)

	root, err = fsutil.ExpandHome("~")
	require.NoError(t, err)
	require.Equal(t, home, root)

	// IPFS_PATH style values are taken verbatim
	abs := filepath.Join(home, "elsewhere", "repo")
	root, err = fsutil.ExpandHome(abs)
	require.NoError(t, err)
	require.Equal(t, abs, root)

	root, err = fsutil.ExpandHome("")
	require.NoError(t, err)
	require.Empty(t, root)

	_, err = fsutil.ExpandHome("~alice/.ipfs")
	require.Error(t, err)

	t.Setenv(homeEnv(), "")
	_, err = fsutil.ExpandHome(config.DefaultPathRoot)
	require.Error(t, err)
}

func TestRepoDirWritable(t *testing.T) {
	home := fakeHome(t)

	require.Error(t, fsutil.DirWritable(""))
	require.Error(t, fsutil.DirWritable("~alice/.ipfs"))

	// a missing repo root under the home dir is created
	require.NoError(t, fsutil.DirWritable(config.DefaultPathRoot))
	repoRoot := filepath.Join(home, config.DefaultPathName)
	fi, err := os.Stat(repoRoot)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	// an existing root is left as it was
	require.NoError(t, fsutil.DirWritable(repoRoot))
	entries, err := os.ReadDir(repoRoot)
	require.NoError(t, err)
	require.Empty(t, entries)

	// only the last path element is created
	err = fsutil.DirWritable(filepath.Join(home, "missing", "repo"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	blocker := filepath.Join(home, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	err = fsutil.DirWritable(blocker)
	require.ErrorContains(t, err, "not a directory")
}

func TestRepoDirReadOnly(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	roDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(roDir, 0o500))

	require.ErrorIs(t, fsutil.DirWritable(roDir), fs.ErrPermission)
	require.ErrorIs(t, fsutil.DirWritable(filepath.Join(roDir, "repo")), fs.ErrPermission)
}

func TestRepoFileExists(t *testing.T) {
	repoRoot := t.TempDir()
	cfgFile := filepath.Join(repoRoot, config.DefaultConfigFile)
	require.False(t, fsutil.FileExists(cfgFile))

	require.NoError(t, os.WriteFile(cfgFile, []byte("{}"), 0o600))
	require.True(t, fsutil.FileExists(cfgFile))

	// directories count too
	require.True(t, fsutil.FileExists(repoRoot))

	if runtime.GOOS == "windows" {
		return
	}
	// a dangling link still occupies the name
	spec := filepath.Join(repoRoot, "datastore_spec")
	require.NoError(t, os.Symlink(filepath.Join(repoRoot, "gone"), spec))
	require.True(t, fsutil.FileExists(spec))
}
