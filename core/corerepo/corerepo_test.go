package corerepo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/core"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/pin/gc"
	"github.com/ipfs/kubo-core/repo"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

// sizedRepo reports a storage usage set by the test.
type sizedRepo struct {
	*repo.Mock
	usage atomic.Uint64
}

func (r *sizedRepo) GetStorageUsage(context.Context) (uint64, error) {
	return r.usage.Load(), nil
}

func newNode(t *testing.T, edit func(*config.Config)) (*core.IpfsNode, *sizedRepo) {
	t.Helper()
	conf, err := config.Init("test")
	require.NoError(t, err)
	conf.Datastore.StorageMax = config.NewOptionalBytes("1KB")
	if edit != nil {
		edit(conf)
	}
	r := &sizedRepo{Mock: repo.NewMock(*conf)}

	n, err := core.NewNode(context.Background(), &core.BuildCfg{Repo: r})
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n, r
}

// addBlocks stores a pinned and an unpinned block.
func addBlocks(t *testing.T, n *core.IpfsNode) (kept, dropped cid.Cid) {
	t.Helper()
	ctx := context.Background()
	keep := blocks.NewBlock([]byte("keep me"))
	drop := blocks.NewBlock([]byte("drop me"))
	require.NoError(t, n.Blocks.AddBlock(ctx, keep))
	require.NoError(t, n.Blocks.AddBlock(ctx, drop))
	require.NoError(t, n.Pinning.PinWithMode(ctx, keep.Cid(), pin.Direct, ""))
	require.NoError(t, n.Pinning.Flush(ctx))
	return keep.Cid(), drop.Cid()
}

func has(t *testing.T, n *core.IpfsNode, c cid.Cid) bool {
	t.Helper()
	ok, err := n.Blockstore.Has(context.Background(), c)
	require.NoError(t, err)
	return ok
}

func TestGarbageCollect(t *testing.T) {
	n, _ := newNode(t, nil)
	kept, dropped := addBlocks(t, n)

	require.NoError(t, GarbageCollect(n, context.Background()))
	require.True(t, has(t, n, kept))
	require.False(t, has(t, n, dropped))
}

func TestCollectResult(t *testing.T) {
	ctx := context.Background()
	c1 := blocks.NewBlock([]byte("one")).Cid()
	c2 := blocks.NewBlock([]byte("two")).Cid()
	errA := errors.New("a")

	out := make(chan gc.Result, 4)
	out <- gc.Result{KeyRemoved: c1}
	out <- gc.Result{Error: errA}
	out <- gc.Result{KeyRemoved: c2}
	out <- gc.Result{Error: gc.ErrCannotDeleteSomeBlocks}
	close(out)

	var removed []cid.Cid
	err := CollectResult(ctx, out, func(c cid.Cid) { removed = append(removed, c) })
	require.Equal(t, []cid.Cid{c1, c2}, removed)

	var merr *MultiError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, gc.ErrCannotDeleteSomeBlocks, merr.Summary)
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, gc.ErrCannotDeleteSomeBlocks)

	empty := make(chan gc.Result)
	close(empty)
	require.NoError(t, CollectResult(ctx, empty, nil))
}

func TestCollectResultCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CollectResult(ctx, make(chan gc.Result), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConditionalGC(t *testing.T) {
	ctx := context.Background()
	n, r := newNode(t, nil)
	kept, dropped := addBlocks(t, n)

	// 1KB with a 90% watermark collects above 900 bytes
	r.usage.Store(500)
	require.NoError(t, ConditionalGC(ctx, n, 100))
	require.True(t, has(t, n, dropped))

	require.NoError(t, ConditionalGC(ctx, n, 401))
	require.True(t, has(t, n, kept))
	require.False(t, has(t, n, dropped))
}

func TestNewGCBadWatermark(t *testing.T) {
	n, _ := newNode(t, func(c *config.Config) {
		c.Datastore.StorageGCWatermark = config.NewOptionalInteger(150)
	})
	_, err := NewGC(n)
	require.Error(t, err)
}

func TestPeriodicGC(t *testing.T) {
	n, r := newNode(t, func(c *config.Config) {
		c.Datastore.GCPeriod = config.NewOptionalDuration(10 * time.Millisecond)
	})
	kept, dropped := addBlocks(t, n)
	r.usage.Store(2000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- PeriodicGC(ctx, n)
	}()

	require.Eventually(t, func() bool {
		return !has(t, n, dropped)
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, has(t, n, kept))

	cancel()
	require.NoError(t, <-done)
}

func TestPeriodicGCDisabled(t *testing.T) {
	n, _ := newNode(t, func(c *config.Config) {
		c.Datastore.GCPeriod = config.NewOptionalDuration(0)
	})
	require.NoError(t, PeriodicGC(context.Background(), n))
}

func TestPinUnpinPaths(t *testing.T) {
	ctx := context.Background()
	n, _ := newNode(t, nil)

	child := dag.NodeWithData([]byte("child"))
	parent := dag.NodeWithData([]byte("parent"))
	require.NoError(t, parent.AddNodeLink("c", child))
	require.NoError(t, n.DAG.AddMany(ctx, []ipld.Node{child, parent}))

	pinned, err := Pin(ctx, n, []string{path.FromCid(parent.Cid()).String()}, true, "mine")
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{parent.Cid()}, pinned)

	how, ok, err := n.Pinning.IsPinned(ctx, child.Cid())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, parent.Cid().String(), how)

	names, err := n.Pinning.Names(ctx, parent.Cid())
	require.NoError(t, err)
	require.Equal(t, []string{"mine"}, names)

	// the child path resolves through the parent
	_, err = Pin(ctx, n, []string{path.FromCid(parent.Cid()).String() + "/c"}, false, "")
	require.NoError(t, err)

	_, err = Pin(ctx, n, []string{"/ipfs/not-a-cid"}, true, "")
	require.Error(t, err)

	unpinned, err := Unpin(ctx, n, []string{parent.Cid().String()}, true)
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{parent.Cid()}, unpinned)

	_, ok, err = n.Pinning.IsPinned(ctx, parent.Cid())
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Unpin(ctx, n, []string{parent.Cid().String()}, true)
	require.ErrorIs(t, err, pin.ErrNotPinned)
}

func TestRepoStat(t *testing.T) {
	ctx := context.Background()
	n, r := newNode(t, nil)
	addBlocks(t, n)
	r.usage.Store(2048)

	st, err := RepoStat(ctx, n)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.NumObjects)
	require.EqualValues(t, 2048, st.RepoSize)
	require.EqualValues(t, 1000, st.StorageMax)
	require.Equal(t, "fs-repo@1", st.Version)
	require.Equal(t, "2.0 kB / 1.0 kB", st.HumanSize())
}
