package tests

import (
	"context"
	"testing"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	opt "github.com/ipfs/kubo-core/core/coreiface/options"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"

	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func (tp *TestSuite) TestDag(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Dag() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestDagPut", tp.TestDagPut)
	t.Run("TestDagPutPinned", tp.TestDagPutPinned)
	t.Run("TestDagPinningAdder", tp.TestDagPinningAdder)
	t.Run("TestDagPath", tp.TestDagPath)
	t.Run("TestDagTree", tp.TestDagTree)
	t.Run("TestDagTreeDepth", tp.TestDagTreeDepth)
	t.Run("TestDagBatch", tp.TestDagBatch)
}

// threeLevels builds root -> {a -> {leaf}, b} and returns all nodes, root
// last.
func threeLevels(t *testing.T) []ipld.Node {
	leaf := dag.NewRawNode([]byte("leaf"))
	a := dag.NodeWithData([]byte("a"))
	require.NoError(t, a.AddNodeLink("leaf", leaf))
	b := dag.NodeWithData([]byte("b"))
	root := dag.NodeWithData([]byte("root"))
	require.NoError(t, root.AddNodeLink("a", a))
	require.NoError(t, root.AddNodeLink("b", b))
	return []ipld.Node{leaf, a, b, root}
}

func (tp *TestSuite) TestDagPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nd := dag.NodeWithData([]byte("stored"))
	p, err := api.Dag().Put(ctx, nd)
	require.NoError(t, err)
	require.Equal(t, path.FromCid(nd.Cid()), p)

	got, err := api.Dag().Get(ctx, nd.Cid())
	require.NoError(t, err)
	require.Equal(t, nd.RawData(), got.RawData())

	_, pinned, err := api.Pin().IsPinned(ctx, p)
	require.NoError(t, err)
	require.False(t, pinned)
}

func (tp *TestSuite) TestDagPutPinned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	require.NoError(t, api.Dag().AddMany(ctx, nds[:3]))

	p, err := api.Dag().Put(ctx, nds[3], opt.Dag.Pin(true))
	require.NoError(t, err)

	how, pinned, err := api.Pin().IsPinned(ctx, p)
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, "recursive", how)
}

func (tp *TestSuite) TestDagPinningAdder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	require.NoError(t, api.Dag().Pinning().AddMany(ctx, nds))

	list, err := accPins(ctx, api, opt.Pin.Ls.Recursive())
	require.NoError(t, err)
	require.Len(t, list, len(nds))
}

func (tp *TestSuite) TestDagPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	require.NoError(t, api.Dag().AddMany(ctx, nds))
	root := nds[3]

	p, err := path.Join(path.FromCid(root.Cid()), "a", "leaf")
	require.NoError(t, err)

	nd, err := api.ResolveNode(ctx, p)
	require.NoError(t, err)
	require.Equal(t, nds[0].Cid(), nd.Cid())

	rp, err := api.ResolvePath(ctx, p)
	require.NoError(t, err)
	require.Equal(t, path.FromCid(nds[0].Cid()), rp)
}

func (tp *TestSuite) TestDagTree(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	require.NoError(t, api.Dag().AddMany(ctx, nds))
	base := path.FromCid(nds[3].Cid())

	paths, err := api.Dag().Tree(ctx, base)
	require.NoError(t, err)

	want := []path.Path{
		base + "/a",
		base + "/a/leaf",
		base + "/b",
	}
	require.Equal(t, want, paths)
}

func (tp *TestSuite) TestDagTreeDepth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	require.NoError(t, api.Dag().AddMany(ctx, nds))
	base := path.FromCid(nds[3].Cid())

	paths, err := api.Dag().Tree(ctx, base, opt.Dag.Depth(1))
	require.NoError(t, err)
	require.Equal(t, []path.Path{base + "/a", base + "/b"}, paths)

	paths, err = api.Dag().Tree(ctx, base, opt.Dag.Depth(0))
	require.NoError(t, err)
	require.Empty(t, paths)
}

func (tp *TestSuite) TestDagBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	nds := threeLevels(t)
	batch := ipld.NewBatch(ctx, api.Dag())
	for _, nd := range nds {
		require.NoError(t, batch.Add(ctx, nd))
	}
	require.NoError(t, batch.Commit())

	for _, nd := range nds {
		_, err := api.Dag().Get(ctx, nd.Cid())
		require.NoError(t, err)
	}

	require.NoError(t, api.Dag().RemoveMany(ctx, []cid.Cid{nds[0].Cid()}))
	_, err := api.Dag().Get(ctx, nds[0].Cid())
	require.True(t, ipld.IsNotFound(err), "unexpected error: %v", err)
}
