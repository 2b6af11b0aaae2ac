package repo

import (
	"context"
	"errors"
	"io"

	config "github.com/ipfs/kubo-core/config"

	ds "github.com/ipfs/go-datastore"
)

// ErrClosed is returned by operations on a repo that was already closed.
var ErrClosed = errors.New("repo is closed")

// Repo represents all persistent data of a given node.
type Repo interface {
	// Config returns the node configuration. The returned value must not
	// be modified; use SetConfig or SetConfigKey.
	Config() (*config.Config, error)

	// SetConfig persists conf and makes it the current configuration.
	SetConfig(conf *config.Config) error

	// SetConfigKey sets a dot separated config key, e.g. "Import.CidVersion".
	SetConfigKey(key string, value interface{}) error

	// GetConfigKey reads a dot separated config key.
	GetConfigKey(key string) (interface{}, error)

	// Datastore returns the root datastore holding blocks and pins.
	Datastore() Datastore

	// GetStorageUsage reports the bytes used by the datastore.
	GetStorageUsage(context.Context) (uint64, error)

	// Path is the repo root directory, or "" for in-memory repos.
	Path() string

	io.Closer
}

// Datastore is the interface required from a datastore to be
// acceptable to FSRepo.
type Datastore interface {
	ds.Batching // must be thread-safe
}
