package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	cfg, err := Init("")
	require.NoError(t, err)
	require.Equal(t, "mount", cfg.Datastore.Spec["type"])
	require.EqualValues(t, 10_000_000_000, cfg.Datastore.StorageMax.WithDefault(0))
	require.EqualValues(t, DefaultStorageGCWatermark, cfg.Datastore.StorageGCWatermark.WithDefault(0))
	require.True(t, cfg.Import.CidVersion.IsDefault())
}

func TestInitProfiles(t *testing.T) {
	cfg, err := Init("test, raw-leaves")
	require.NoError(t, err)
	require.Equal(t, "mem", cfg.Datastore.Spec["type"])
	require.True(t, cfg.Datastore.HashOnRead.WithDefault(false))
	require.EqualValues(t, 1, cfg.Import.CidVersion.WithDefault(0))

	require.NoError(t, ApplyProfiles(cfg, "default-datastore"))
	require.Equal(t, "mount", cfg.Datastore.Spec["type"])

	_, err = Init("nope")
	require.ErrorContains(t, err, "invalid configuration profile: nope")
}

func TestCloneIsDeep(t *testing.T) {
	cfg, err := Init("badgerds")
	require.NoError(t, err)

	clone, err := cfg.Clone()
	require.NoError(t, err)
	clone.Datastore.Spec["type"] = "mem"
	clone.Import.UnixFSChunker = *NewOptionalString("rabin")

	require.Equal(t, "measure", cfg.Datastore.Spec["type"])
	require.True(t, cfg.Import.UnixFSChunker.IsDefault())
}

func TestMapRoundtrip(t *testing.T) {
	cfg, err := Init("pebbleds")
	require.NoError(t, err)

	m, err := ToMap(cfg)
	require.NoError(t, err)
	require.Contains(t, m, "Datastore")

	back, err := FromMap(m)
	require.NoError(t, err)
	require.Equal(t, cfg.Datastore.Spec, back.Datastore.Spec)
	require.Equal(t, cfg.Datastore.GCPeriod.WithDefault(0), back.Datastore.GCPeriod.WithDefault(0))
}

func TestFilename(t *testing.T) {
	root := t.TempDir()

	f, err := Filename(root, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, DefaultConfigFile), f)

	f, err = Filename(root, "other")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "other"), f)

	abs := filepath.Join(t.TempDir(), "cfg.json")
	f, err = Filename(root, abs)
	require.NoError(t, err)
	require.Equal(t, abs, f)

	t.Setenv(EnvDir, root)
	dir, err := PathRoot()
	require.NoError(t, err)
	require.Equal(t, root, dir)
}
