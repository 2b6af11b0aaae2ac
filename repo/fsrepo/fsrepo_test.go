package fsrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/repo"

	ds "github.com/ipfs/go-datastore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T, profiles string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo")
	conf, err := config.Init(profiles)
	require.NoError(t, err)
	require.NoError(t, Init(path, conf))
	return path
}

func TestInitOpenClose(t *testing.T) {
	path := initRepo(t, "")
	require.True(t, IsInitialized(path))

	for _, f := range []string{"config", "version", "datastore_spec"} {
		require.FileExists(t, filepath.Join(path, f))
	}

	r, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, path, r.Path())

	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Close(), repo.ErrClosed)

	_, err = r.Config()
	require.ErrorIs(t, err, repo.ErrClosed)
}

func TestOpenUninitialized(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorAs(t, err, &NoRepoError{})
}

func TestDatastoreBackends(t *testing.T) {
	for _, profile := range []string{"flatfs", "levelds", "badgerds", "pebbleds", "test"} {
		t.Run(profile, func(t *testing.T) {
			ctx := context.Background()
			path := initRepo(t, profile)

			r, err := Open(path)
			require.NoError(t, err)

			d := r.Datastore()
			blockKey := ds.NewKey("/blocks/CIQTEST")
			pinKey := ds.NewKey("/pins/recursive/CIQTEST")
			require.NoError(t, d.Put(ctx, blockKey, []byte("block")))
			require.NoError(t, d.Put(ctx, pinKey, []byte("pin")))
			require.NoError(t, d.Sync(ctx, ds.NewKey("/")))
			require.NoError(t, r.Close())

			if profile == "test" {
				return
			}

			r, err = Open(path)
			require.NoError(t, err)
			defer r.Close()

			v, err := r.Datastore().Get(ctx, blockKey)
			require.NoError(t, err)
			require.Equal(t, []byte("block"), v)
			v, err = r.Datastore().Get(ctx, pinKey)
			require.NoError(t, err)
			require.Equal(t, []byte("pin"), v)
		})
	}
}

func TestVersionMismatch(t *testing.T) {
	path := initRepo(t, "test")
	require.NoError(t, os.WriteFile(filepath.Join(path, "version"), []byte("7\n"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrNeedMigration)

	require.NoError(t, os.Remove(filepath.Join(path, "version")))
	_, err = Open(path)
	require.ErrorIs(t, err, ErrNoVersion)
}

func TestSpecMismatch(t *testing.T) {
	path := initRepo(t, "test")

	conf, err := ConfigAt(path)
	require.NoError(t, err)
	require.NoError(t, config.ApplyProfiles(conf, "levelds"))

	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.SetConfig(conf))
	require.NoError(t, r.Close())

	_, err = Open(path)
	require.ErrorIs(t, err, ErrDatastoreSpecMismatch)
}

func TestConfigKeys(t *testing.T) {
	path := initRepo(t, "test")
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetConfigKey("Import.UnixFSChunker", "size-1024"))
	v, err := r.GetConfigKey("Import.UnixFSChunker")
	require.NoError(t, err)
	require.Equal(t, "size-1024", v)

	conf, err := r.Config()
	require.NoError(t, err)
	require.Equal(t, "size-1024", conf.Import.UnixFSChunker.WithDefault(""))

	require.Error(t, r.SetConfigKey("Import.CidVersion", "not a number"))

	onDisk, err := ConfigAt(path)
	require.NoError(t, err)
	require.True(t, onDisk.Import.CidVersion.IsDefault())
	require.Equal(t, "size-1024", onDisk.Import.UnixFSChunker.WithDefault(""))
}

func TestMeasureMetrics(t *testing.T) {
	require.NoError(t, InjectPrometheus())

	ctx := context.Background()
	path := initRepo(t, "levelds")
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Datastore().Put(ctx, ds.NewKey("/k"), []byte("v")))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "leveldb_datastore") {
			found = true
		}
	}
	require.True(t, found, "measure metrics should be exported")

	usage, err := r.GetStorageUsage(ctx)
	require.NoError(t, err)
	require.NotZero(t, usage)
}
