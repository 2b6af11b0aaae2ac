package repo

import (
	"context"
	"sync"

	config "github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/repo/common"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
)

var _ Repo = (*Mock)(nil)

// Mock is an in-memory Repo.
type Mock struct {
	mu     sync.Mutex
	C      config.Config
	D      Datastore
	closed bool
}

// NewMock returns a Mock over a fresh thread-safe map datastore.
func NewMock(c config.Config) *Mock {
	return &Mock{C: c, D: dssync.MutexWrap(ds.NewMapDatastore())}
}

func (m *Mock) Config() (*config.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return &m.C, nil
}

func (m *Mock) SetConfig(updated *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.C = *updated
	return nil
}

func (m *Mock) SetConfigKey(key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapconf, err := config.ToMap(&m.C)
	if err != nil {
		return err
	}
	if err := common.MapSetKV(mapconf, key, value); err != nil {
		return err
	}
	conf, err := config.FromMap(mapconf)
	if err != nil {
		return err
	}
	m.C = *conf
	return nil
}

func (m *Mock) GetConfigKey(key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapconf, err := config.ToMap(&m.C)
	if err != nil {
		return nil, err
	}
	return common.MapGetKV(mapconf, key)
}

func (m *Mock) Datastore() Datastore { return m.D }

func (m *Mock) GetStorageUsage(ctx context.Context) (uint64, error) {
	return ds.DiskUsage(ctx, m.D)
}

func (m *Mock) Path() string { return "" }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.D.Close()
}
