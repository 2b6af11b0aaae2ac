package blockservice

import (
	"context"
	"sync"
	"testing"

	"github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/exchange/offline"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

type mapExchange struct {
	mu       sync.Mutex
	blocks   map[cid.Cid]blocks.Block
	notified int
	fetches  int
}

func (m *mapExchange) GetBlock(_ context.Context, c cid.Cid) (blocks.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	b, ok := m.blocks[c]
	if !ok {
		return nil, format.ErrNotFound{Cid: c}
	}
	return b, nil
}

func (m *mapExchange) NotifyNewBlocks(_ context.Context, bs ...blocks.Block) error {
	m.mu.Lock()
	m.notified += len(bs)
	m.mu.Unlock()
	return nil
}

func (m *mapExchange) Close() error { return nil }

func newStore() blockstore.Blockstore {
	return blockstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
}

func TestGetFallsBackToExchange(t *testing.T) {
	ctx := context.Background()
	remote := blocks.NewBlock([]byte("remote only"))
	ex := &mapExchange{blocks: map[cid.Cid]blocks.Block{remote.Cid(): remote}}
	bs := newStore()
	bserv := New(bs, ex)

	got, err := bserv.GetBlock(ctx, remote.Cid())
	require.NoError(t, err)
	require.Equal(t, remote.RawData(), got.RawData())

	// fetched blocks are written back
	has, err := bs.Has(ctx, remote.Cid())
	require.NoError(t, err)
	require.True(t, has)

	_, err = bserv.GetBlock(ctx, remote.Cid())
	require.NoError(t, err)
	require.Equal(t, 1, ex.fetches)
}

func TestGetRejectsMismatchedBlock(t *testing.T) {
	ctx := context.Background()
	want := blocks.NewBlock([]byte("wanted"))
	forged, err := blocks.NewBlockWithCid([]byte("forged"), want.Cid())
	require.NoError(t, err)
	ex := &mapExchange{blocks: map[cid.Cid]blocks.Block{want.Cid(): forged}}

	bserv := New(newStore(), ex)
	_, err = bserv.GetBlock(ctx, want.Cid())
	require.ErrorIs(t, err, blockstore.ErrHashMismatch)
}

func TestOfflineMiss(t *testing.T) {
	ctx := context.Background()
	bserv := New(newStore(), offline.Exchange())
	_, err := bserv.GetBlock(ctx, blocks.NewBlock([]byte("nowhere")).Cid())
	require.True(t, format.IsNotFound(err))
}

func TestAddBlocksNotifiesExchange(t *testing.T) {
	ctx := context.Background()
	ex := &mapExchange{blocks: map[cid.Cid]blocks.Block{}}
	bserv := New(newStore(), ex)

	require.NoError(t, bserv.AddBlock(ctx, blocks.NewBlock([]byte("a"))))
	require.NoError(t, bserv.AddBlocks(ctx, []blocks.Block{
		blocks.NewBlock([]byte("b")),
		blocks.NewBlock([]byte("c")),
	}))
	require.Equal(t, 3, ex.notified)

	var got int
	for range bserv.GetBlocks(ctx, []cid.Cid{
		blocks.NewBlock([]byte("a")).Cid(),
		blocks.NewBlock([]byte("b")).Cid(),
		blocks.NewBlock([]byte("missing")).Cid(),
	}) {
		got++
	}
	require.Equal(t, 2, got)
}
