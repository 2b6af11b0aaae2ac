// Package fsrepo opens repos stored in a directory: a JSON config, a
// version file, a lock file and the datastores described by the config's
// Datastore.Spec.
package fsrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	config "github.com/ipfs/kubo-core/config"
	serialize "github.com/ipfs/kubo-core/config/serialize"
	"github.com/ipfs/kubo-core/misc/fsutil"
	"github.com/ipfs/kubo-core/repo"
	"github.com/ipfs/kubo-core/repo/common"

	"github.com/facebookgo/atomicfile"
	ds "github.com/ipfs/go-datastore"
	lockfile "github.com/ipfs/go-fs-lock"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
)

var log = logging.Logger("fsrepo")

// RepoVersion is the version number that we are currently expecting to see.
const RepoVersion = 1

const (
	// LockFile is the filename of the repo lock, relative to config dir
	LockFile = "repo.lock"

	versionFile    = "version"
	specFn         = "datastore_spec"
	defaultDirMode = 0o755
)

var (
	// ErrNoVersion is returned when the repo has no version file.
	ErrNoVersion = errors.New("no version file found, please run 0-to-1 migration tool.\n")

	// ErrNeedMigration is returned when the on-disk version differs from
	// RepoVersion.
	ErrNeedMigration = errors.New("repo version mismatch")

	// ErrDatastoreSpecMismatch is returned when the config's datastore spec
	// no longer describes the datastore on disk.
	ErrDatastoreSpecMismatch = errors.New("datastore configuration of the repo does not match the on-disk layout")

	// ErrLocked is returned when another process holds the repo lock.
	ErrLocked = errors.New("repo is locked by another process")
)

// NoRepoError is returned when trying to open a repo in which one has not
// been initialized.
type NoRepoError struct {
	Path string
}

var _ error = NoRepoError{}

func (err NoRepoError) Error() string {
	return fmt.Sprintf("no repo found in %s, run init first", err.Path)
}

// packageLock must be held while performing any operation that modifies an
// FSRepo's state field. This includes Init, Open, Close, and Remove.
var packageLock sync.Mutex

// FSRepo represents a repo stored on the filesystem.
type FSRepo struct {
	// has Close been called already
	closed bool
	// path is the file-system path
	path string
	// lockfile is the file system lock to prevent others from opening
	// the same fsrepo path concurrently
	lockfile io.Closer

	mu     sync.Mutex
	config *config.Config
	ds     repo.Datastore
}

var _ repo.Repo = (*FSRepo)(nil)

// Open the FSRepo at path. Returns an error if the repo is not
// initialized.
func Open(repoPath string) (repo.Repo, error) {
	packageLock.Lock()
	defer packageLock.Unlock()

	return open(repoPath)
}

func open(repoPath string) (*FSRepo, error) {
	r, err := newFSRepo(repoPath)
	if err != nil {
		return nil, err
	}

	if !isInitializedUnsynced(r.path) {
		return nil, NoRepoError{Path: r.path}
	}

	r.lockfile, err = lockfile.Lock(r.path, LockFile)
	if err != nil {
		if locked, _ := lockfile.Locked(r.path, LockFile); locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, r.path)
		}
		return nil, err
	}
	keepLocked := false
	defer func() {
		// unlock on error, leave it locked on success
		if !keepLocked {
			r.lockfile.Close()
		}
	}()

	ver, err := readVersion(r.path)
	if err != nil {
		return nil, err
	}
	if ver != RepoVersion {
		return nil, fmt.Errorf("%w: repo has version %d, expected %d", ErrNeedMigration, ver, RepoVersion)
	}

	if err := r.openConfig(); err != nil {
		return nil, err
	}

	if err := r.openDatastore(); err != nil {
		return nil, err
	}

	keepLocked = true
	log.Debugw("opened repo", "path", r.path)
	return r, nil
}

func newFSRepo(rpath string) (*FSRepo, error) {
	expPath, err := fsutil.ExpandHome(filepath.Clean(rpath))
	if err != nil {
		return nil, err
	}

	return &FSRepo{path: expPath}, nil
}

func readVersion(repoPath string) (int, error) {
	b, err := os.ReadFile(filepath.Join(repoPath, versionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoVersion
		}
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("malformed version file: %w", err)
	}
	return v, nil
}

func writeVersion(repoPath string, version int) error {
	f, err := atomicfile.New(filepath.Join(repoPath, versionFile), 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d\n", version); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}

// ConfigAt returns an error if the FSRepo at the given path is not
// initialized. This function allows callers to read the config file even when
// another process is running and holding the lock.
func ConfigAt(repoPath string) (*config.Config, error) {
	// packageLock must be held to ensure that the Read is atomic.
	packageLock.Lock()
	defer packageLock.Unlock()

	configFilename, err := config.Filename(repoPath, "")
	if err != nil {
		return nil, err
	}
	return serialize.Load(configFilename)
}

// configIsInitialized returns true if the repo is initialized at
// provided |path|.
func configIsInitialized(path string) bool {
	configFilename, err := config.Filename(path, "")
	if err != nil {
		return false
	}
	return fsutil.FileExists(configFilename)
}

func initConfig(path string, conf *config.Config) error {
	if configIsInitialized(path) {
		return nil
	}
	configFilename, err := config.Filename(path, "")
	if err != nil {
		return err
	}
	// initialization is the one time when it's okay to write to the config
	// without reading the config from disk and merging any user-provided keys
	// that may exist.
	return serialize.WriteConfigFile(configFilename, conf)
}

func initSpec(path string, conf map[string]interface{}) error {
	fn := filepath.Join(path, specFn)

	if fsutil.FileExists(fn) {
		return nil
	}

	bytes, err := diskSpec(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(fn, bytes, 0o600)
}

// Init initializes a new FSRepo at the given path with the provided config.
func Init(repoPath string, conf *config.Config) error {
	// packageLock must be held to ensure that the repo is not initialized more
	// than once.
	packageLock.Lock()
	defer packageLock.Unlock()

	if isInitializedUnsynced(repoPath) {
		return nil
	}

	if err := fsutil.DirWritable(repoPath); err != nil {
		return err
	}

	if err := initConfig(repoPath, conf); err != nil {
		return err
	}

	if err := initSpec(repoPath, conf.Datastore.Spec); err != nil {
		return err
	}

	return writeVersion(repoPath, RepoVersion)
}

// LockedByOtherProcess returns true if the FSRepo is locked by another
// process. If true, then the repo cannot be opened by this process.
func LockedByOtherProcess(repoPath string) (bool, error) {
	repoPath = filepath.Clean(repoPath)
	locked, err := lockfile.Locked(repoPath, LockFile)
	if locked {
		log.Debugf("(%t)<->Lock is held at %s", locked, repoPath)
	}
	return locked, err
}

// openConfig returns an error if the config file is not present.
func (r *FSRepo) openConfig() error {
	configFilename, err := config.Filename(r.path, "")
	if err != nil {
		return err
	}
	conf, err := serialize.Load(configFilename)
	if err != nil {
		return err
	}
	r.config = conf
	return nil
}

// openDatastore returns an error if the config file is not present.
func (r *FSRepo) openDatastore() error {
	if r.config.Datastore.Spec == nil {
		return fmt.Errorf("required Datastore.Spec entry missing from config file")
	}

	want, err := diskSpec(r.config.Datastore.Spec)
	if err != nil {
		return err
	}
	have, err := os.ReadFile(filepath.Join(r.path, specFn))
	if err != nil {
		return fmt.Errorf("reading %s: %w", specFn, err)
	}
	if !bytes.Equal(bytes.TrimSpace(have), bytes.TrimSpace(want)) {
		return fmt.Errorf("%w: on disk %s, config %s", ErrDatastoreSpecMismatch, have, want)
	}

	d, err := constructDatastore(r.path, r.config.Datastore.Spec)
	if err != nil {
		return err
	}
	r.ds = d
	return nil
}

// Close closes the FSRepo, releasing held resources.
func (r *FSRepo) Close() error {
	packageLock.Lock()
	defer packageLock.Unlock()

	if r.closed {
		return repo.ErrClosed
	}
	r.closed = true

	// The lock is released even if the datastore fails to close.
	return multierr.Combine(r.ds.Close(), r.lockfile.Close())
}

// Path returns the repo root directory.
func (r *FSRepo) Path() string {
	return r.path
}

// Config the current config. This function DOES NOT copy the config. The caller
// MUST NOT modify it without first calling `Clone`.
//
// Result when not Open is undefined. The method may panic if it pleases.
func (r *FSRepo) Config() (*config.Config, error) {
	// It is not necessary to hold the package lock since the repo is in an
	// opened state. The package lock is _not_ meant to ensure that the repo is
	// thread-safe. The package lock is only meant to guard against removal and
	// coordinate the lockfile. However, we provide thread-safety to keep
	// things simple.
	packageLock.Lock()
	defer packageLock.Unlock()

	if r.closed {
		return nil, repo.ErrClosed
	}
	return r.config, nil
}

// setConfigUnsynced is for private use.
func (r *FSRepo) setConfigUnsynced(updated *config.Config) error {
	configFilename, err := config.Filename(r.path, "")
	if err != nil {
		return err
	}

	// to avoid clobbering user-provided keys, must read the config from disk
	// as a map, write the updated struct values to the map and write the map
	// to disk.
	var mapconf map[string]interface{}
	if err := serialize.ReadConfigFile(configFilename, &mapconf); err != nil {
		return err
	}
	m, err := config.ToMap(updated)
	if err != nil {
		return err
	}
	mergedMap := common.MapMergeDeep(mapconf, m)
	if err := serialize.WriteConfigFile(configFilename, mergedMap); err != nil {
		return err
	}
	// Do not use `*r.config = ...`. This will modify the *shared* config
	// returned by `r.Config`.
	r.config = updated
	return nil
}

// SetConfig updates the FSRepo's config. The user must not modify the config
// object after calling this method.
func (r *FSRepo) SetConfig(updated *config.Config) error {
	packageLock.Lock()
	defer packageLock.Unlock()

	if r.closed {
		return repo.ErrClosed
	}
	return r.setConfigUnsynced(updated)
}

// GetConfigKey retrieves only the value of a particular key.
func (r *FSRepo) GetConfigKey(key string) (interface{}, error) {
	packageLock.Lock()
	defer packageLock.Unlock()

	if r.closed {
		return nil, repo.ErrClosed
	}

	filename, err := config.Filename(r.path, "")
	if err != nil {
		return nil, err
	}
	var cfg map[string]interface{}
	if err := serialize.ReadConfigFile(filename, &cfg); err != nil {
		return nil, err
	}
	return common.MapGetKV(cfg, key)
}

// SetConfigKey writes the value of a particular key.
func (r *FSRepo) SetConfigKey(key string, value interface{}) error {
	packageLock.Lock()
	defer packageLock.Unlock()

	if r.closed {
		return repo.ErrClosed
	}

	filename, err := config.Filename(r.path, "")
	if err != nil {
		return err
	}
	var mapconf map[string]interface{}
	if err := serialize.ReadConfigFile(filename, &mapconf); err != nil {
		return err
	}

	if err := common.MapSetKV(mapconf, key, value); err != nil {
		return err
	}

	// Round-trip through the typed config so invalid values are rejected
	// before anything is written.
	conf, err := config.FromMap(mapconf)
	if err != nil {
		return err
	}
	if err := serialize.WriteConfigFile(filename, mapconf); err != nil {
		return err
	}
	r.config = conf
	return nil
}

// Datastore returns a repo-owned datastore. If FSRepo is Closed, return value
// is undefined.
func (r *FSRepo) Datastore() repo.Datastore {
	packageLock.Lock()
	d := r.ds
	packageLock.Unlock()
	return d
}

// GetStorageUsage computes the storage space taken by the repo in bytes.
func (r *FSRepo) GetStorageUsage(ctx context.Context) (uint64, error) {
	return ds.DiskUsage(ctx, r.Datastore())
}

var _ io.Closer = (*FSRepo)(nil)

// IsInitialized returns true if the repo is initialized at provided |path|.
func IsInitialized(path string) bool {
	// packageLock is held to ensure that another caller doesn't attempt to
	// Init or Remove the repo while this call is in progress.
	packageLock.Lock()
	defer packageLock.Unlock()

	return isInitializedUnsynced(path)
}

// private methods below this point. NB: packageLock must held by caller.

// isInitializedUnsynced reports whether the repo is initialized. Caller must
// hold the packageLock.
func isInitializedUnsynced(repoPath string) bool {
	return configIsInitialized(repoPath)
}

// diskSpec renders the parts of a datastore spec that decide the on-disk
// layout. Keys that only tune a backend at runtime are left out.
func diskSpec(spec map[string]interface{}) ([]byte, error) {
	ds, err := layoutOf(spec)
	if err != nil {
		return nil, err
	}
	// encoding/json sorts map keys, so equal layouts render equally.
	return json.Marshal(ds)
}
