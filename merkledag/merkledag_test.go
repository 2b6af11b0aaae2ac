package merkledag_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ipfs/kubo-core/cidutil"
	. "github.com/ipfs/kubo-core/merkledag"
	dstest "github.com/ipfs/kubo-core/merkledag/test"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func TestNode(t *testing.T) {
	n1 := NodeWithData([]byte("beep"))
	n2 := NodeWithData([]byte("boop"))
	n3 := NodeWithData([]byte("beep boop"))
	require.NoError(t, n3.AddNodeLink("beep-link", n1))
	require.NoError(t, n3.AddNodeLink("boop-link", n2))

	for _, n := range []*ProtoNode{n1, n2, n3} {
		subtestNodeStat(t, n)
	}
}

func subtestNodeStat(t *testing.T, n *ProtoNode) {
	enc, err := n.EncodeProtobuf(true)
	require.NoError(t, err)

	cumSize, err := n.Size()
	require.NoError(t, err)

	expected := format.NodeStat{
		NumLinks:       len(n.Links()),
		BlockSize:      len(enc),
		LinksSize:      len(enc) - len(n.Data()), // includes framing.
		DataSize:       len(n.Data()),
		CumulativeSize: int(cumSize),
		Hash:           n.Cid().String(),
	}

	actual, err := n.Stat()
	require.NoError(t, err)
	require.Equal(t, expected, *actual)
}

func TestWellKnownCids(t *testing.T) {
	require.Equal(t, "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n", new(ProtoNode).Cid().String())

	dir := NodeWithData([]byte{0x08, 0x01})
	require.Equal(t, []byte{0x0a, 0x02, 0x08, 0x01}, dir.RawData())
	require.Equal(t, "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn", dir.Cid().String())
}

func TestLinkOrderPreserved(t *testing.T) {
	a := NodeWithData([]byte("a"))
	b := NodeWithData([]byte("b"))

	nd := NodeWithData([]byte("dir"))
	require.NoError(t, nd.AddNodeLink("zeta", a))
	require.NoError(t, nd.AddNodeLink("alpha", b))

	dec, err := DecodeProtobuf(nd.RawData())
	require.NoError(t, err)
	require.Equal(t, []string{"zeta", "alpha"}, dec.Tree("", -1))
	require.Equal(t, nd.RawData(), dec.RawData())
	require.True(t, nd.Cid().Equals(dec.Cid()))

	swapped := NodeWithData([]byte("dir"))
	require.NoError(t, swapped.AddNodeLink("alpha", b))
	require.NoError(t, swapped.AddNodeLink("zeta", a))
	require.False(t, nd.Cid().Equals(swapped.Cid()))
}

func TestEmptyDataRoundtrip(t *testing.T) {
	withEmpty := NodeWithData([]byte{})
	withNil := NodeWithData(nil)
	require.NotEqual(t, withEmpty.RawData(), withNil.RawData())

	dec, err := DecodeProtobuf(withEmpty.RawData())
	require.NoError(t, err)
	require.NotNil(t, dec.Data())
	require.True(t, dec.Cid().Equals(withEmpty.Cid()))

	dec, err = DecodeProtobuf(withNil.RawData())
	require.NoError(t, err)
	require.Nil(t, dec.Data())
}

func TestUnmarshalFailure(t *testing.T) {
	_, err := DecodeProtobuf([]byte("hello world"))
	require.Error(t, err)

	// field 3 does not exist in dag-pb
	_, err = DecodeProtobuf([]byte{0x1a, 0x00})
	require.Error(t, err)

	// Links must not be split around Data
	nd := NodeWithData([]byte("x"))
	lnk := NodeWithData([]byte("child"))
	parent := new(ProtoNode)
	require.NoError(t, parent.AddNodeLink("c", lnk))
	var enc []byte
	enc = append(enc, parent.RawData()...)
	enc = append(enc, nd.RawData()...)
	enc = append(enc, parent.RawData()...)
	_, err = DecodeProtobuf(enc)
	require.Error(t, err)

	// a link without a Hash
	_, err = DecodeProtobuf([]byte{0x12, 0x03, 0x12, 0x01, 'a'})
	require.Error(t, err)

	_, err = DecodeProtobufBlock(NewRawNode([]byte("raw")))
	require.ErrorIs(t, err, ErrNotProtobuf)
}

func TestDecodeNonCanonical(t *testing.T) {
	child := NodeWithData([]byte("child"))
	parent := new(ProtoNode)
	require.NoError(t, parent.AddNodeLink("c", child))

	// Data ahead of Links is accepted and re-encoded with Links first
	var enc []byte
	enc = append(enc, NodeWithData([]byte("x")).RawData()...)
	enc = append(enc, parent.RawData()...)
	dec, err := DecodeProtobuf(enc)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), dec.Data())
	require.Len(t, dec.Links(), 1)
	require.Equal(t, "c", dec.Links()[0].Name)
	require.True(t, dec.Links()[0].Cid.Equals(child.Cid()))

	canon := NodeWithData([]byte("x"))
	require.NoError(t, canon.AddNodeLink("c", child))
	require.Equal(t, canon.RawData(), dec.RawData())
}

func TestDecodeKeepsLinkOrder(t *testing.T) {
	nd := new(ProtoNode)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, nd.AddNodeLink(name, NodeWithData([]byte(name))))
	}

	dec, err := DecodeProtobuf(nd.RawData())
	require.NoError(t, err)
	var names []string
	for _, l := range dec.Links() {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	require.True(t, nd.Cid().Equals(dec.Cid()))
}

func TestBasicAddGet(t *testing.T) {
	ctx := context.Background()

	ds := dstest.Mock()
	nd := new(ProtoNode)

	require.NoError(t, ds.Add(ctx, nd))

	out, err := ds.Get(ctx, nd.Cid())
	require.NoError(t, err)
	require.True(t, nd.Cid().Equals(out.Cid()))
}

func TestCantGet(t *testing.T) {
	ds := dstest.Mock()
	a := NodeWithData([]byte("A"))

	_, err := ds.Get(context.Background(), a.Cid())
	require.True(t, format.IsNotFound(err), "expected not found, got: %v", err)

	var nf format.ErrNotFound
	require.True(t, errors.As(err, &nf))
	require.True(t, nf.Cid.Equals(a.Cid()))
}

func TestGetRawNodes(t *testing.T) {
	ctx := context.Background()

	rn := NewRawNode([]byte("test"))
	ds := dstest.Mock()

	require.NoError(t, ds.Add(ctx, rn))
	require.Equal(t, uint64(cid.Raw), rn.Cid().Type())
	require.Equal(t, uint64(1), rn.Cid().Version())

	out, err := ds.Get(ctx, rn.Cid())
	require.NoError(t, err)

	raw, ok := out.(*RawNode)
	require.True(t, ok, "expected raw node")
	require.Equal(t, []byte("test"), raw.RawData())

	size, err := raw.Size()
	require.NoError(t, err)
	require.Equal(t, uint64(4), size)

	st, err := raw.Stat()
	require.NoError(t, err)
	require.Equal(t, 4, st.CumulativeSize)
	require.Empty(t, raw.Links())

	_, _, err = raw.ResolveLink([]string{"foo"})
	require.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRawNodeWithBuilder(t *testing.T) {
	b, err := cidutil.NewBuilder("blake2b-256", 1, cid.DagProtobuf)
	require.NoError(t, err)

	rn, err := NewRawNodeWPrefix([]byte("leaf"), b)
	require.NoError(t, err)
	require.Equal(t, uint64(cid.Raw), rn.Cid().Type())
	require.Equal(t, b.HashFunc, rn.Cid().Prefix().MhType)

	// a v0 builder is upgraded since raw cids cannot be v0
	rn, err = NewRawNodeWPrefix([]byte("leaf"), cidutil.V0Builder)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rn.Cid().Version())
	require.True(t, rn.Cid().Equals(NewRawNode([]byte("leaf")).Cid()))
}

func TestProtoNodeResolve(t *testing.T) {
	nd := new(ProtoNode)
	require.NoError(t, nd.SetLinks([]*format.Link{{Name: "foo", Cid: NewRawNode([]byte("x")).Cid()}}))

	lnk, left, err := nd.ResolveLink([]string{"foo", "bar"})
	require.NoError(t, err)
	require.Equal(t, []string{"bar"}, left)
	require.Equal(t, "foo", lnk.Name)

	require.Equal(t, []string{"foo"}, nd.Tree("", -1))
	require.Nil(t, nd.Tree("foo", -1))

	_, _, err = nd.ResolveLink([]string{"nope"})
	require.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRemoveNodeLink(t *testing.T) {
	a := NodeWithData([]byte("a"))
	nd := new(ProtoNode)
	require.NoError(t, nd.AddNodeLink("a", a))
	before := nd.Cid()

	require.ErrorIs(t, nd.RemoveNodeLink("b"), ErrLinkNotFound)
	require.True(t, before.Equals(nd.Cid()))

	require.NoError(t, nd.RemoveNodeLink("a"))
	require.Empty(t, nd.Links())
	require.False(t, before.Equals(nd.Cid()))
}

func TestCopyIsIndependent(t *testing.T) {
	a := NodeWithData([]byte("a"))
	nd := NodeWithData([]byte("data"))
	require.NoError(t, nd.AddNodeLink("a", a))
	orig := nd.Cid()

	cp := nd.Copy().(*ProtoNode)
	cp.SetData([]byte("changed"))
	require.NoError(t, cp.RemoveNodeLink("a"))

	require.True(t, orig.Equals(nd.Cid()))
	require.Equal(t, []byte("data"), nd.Data())
	require.Len(t, nd.Links(), 1)
}

func TestUpdateNodeLinkKeepsPosition(t *testing.T) {
	a := NodeWithData([]byte("a"))
	b := NodeWithData([]byte("b"))
	c := NodeWithData([]byte("c"))

	nd := new(ProtoNode)
	require.NoError(t, nd.AddNodeLink("first", a))
	require.NoError(t, nd.AddNodeLink("second", b))

	updated, err := nd.UpdateNodeLink("first", c)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, updated.Tree("", -1))
	require.True(t, updated.Links()[0].Cid.Equals(c.Cid()))

	// the original is untouched
	require.True(t, nd.Links()[0].Cid.Equals(a.Cid()))
}

func TestCidRetention(t *testing.T) {
	ctx := context.Background()

	nd := new(ProtoNode)
	nd.SetData([]byte("fooooo"))

	pref := nd.Cid().Prefix()
	pref.Version = 1

	c2, err := pref.Sum(nd.RawData())
	require.NoError(t, err)

	blk, err := blocks.NewBlockWithCid(nd.RawData(), c2)
	require.NoError(t, err)

	bs := dstest.Bserv()
	require.NoError(t, bs.AddBlock(ctx, blk))

	ds := NewDAGService(bs)
	out, err := ds.Get(ctx, c2)
	require.NoError(t, err)
	require.True(t, out.Cid().Equals(c2), "output cid didnt match")

	// mutating a decoded node keeps its cid version
	pn := out.(*ProtoNode)
	pn.SetData([]byte("bar"))
	require.Equal(t, uint64(1), pn.Cid().Version())
}

func TestSetCidBuilder(t *testing.T) {
	nd := NodeWithData([]byte("x"))
	b, err := cidutil.NewBuilder("sha3-256", 1, cid.Raw)
	require.NoError(t, err)

	require.NoError(t, nd.SetCidBuilder(b))
	require.Equal(t, uint64(cid.DagProtobuf), nd.Cid().Type())
	require.Equal(t, b.HashFunc, nd.Cid().Prefix().MhType)

	require.NoError(t, nd.SetCidBuilder(nil))
	require.Equal(t, uint64(0), nd.Cid().Version())
}

func TestCidRawDoesnNeedData(t *testing.T) {
	srv := NewDAGService(dstest.Bserv())
	nd := NewRawNode([]byte("somedata"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// there is no data for this node in the blockservice
	// so dag service can't load it
	links, err := srv.GetLinks(ctx, nd.Cid())
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestGetMany(t *testing.T) {
	ctx := context.Background()
	ds := dstest.Mock()

	var keys []cid.Cid
	for i := 0; i < 5; i++ {
		nd := NodeWithData([]byte{byte(i)})
		require.NoError(t, ds.Add(ctx, nd))
		keys = append(keys, nd.Cid())
	}
	missing := NodeWithData([]byte("missing")).Cid()
	keys = append(keys, missing)

	var found, failed int
	for opt := range ds.GetMany(ctx, keys) {
		if opt.Err != nil {
			require.True(t, format.IsNotFound(opt.Err))
			failed++
			continue
		}
		found++
	}
	require.Equal(t, 5, found)
	require.Equal(t, 1, failed)
}

func TestRemoveMany(t *testing.T) {
	ctx := context.Background()
	ds := dstest.Mock()

	a := NodeWithData([]byte("a"))
	b := NewRawNode([]byte("b"))
	require.NoError(t, ds.AddMany(ctx, []format.Node{a, b}))

	require.NoError(t, ds.RemoveMany(ctx, []cid.Cid{a.Cid(), b.Cid()}))
	_, err := ds.Get(ctx, a.Cid())
	require.True(t, format.IsNotFound(err))
	_, err = ds.Get(ctx, b.Cid())
	require.True(t, format.IsNotFound(err))
}

// makeTree stores a tree of the given depth and fanout and returns its root.
func makeTree(t *testing.T, ds format.DAGService, depth, fanout int, prefix string) *ProtoNode {
	ctx := context.Background()
	nd := NodeWithData([]byte(prefix))
	for i := 0; i < fanout; i++ {
		name := fmt.Sprintf("%s-%d", prefix, i)
		var child format.Node
		if depth == 1 {
			child = NewRawNode([]byte(name))
			require.NoError(t, ds.Add(ctx, child))
		} else {
			child = makeTree(t, ds, depth-1, fanout, name)
		}
		require.NoError(t, nd.AddNodeLink(name, child))
	}
	require.NoError(t, ds.Add(ctx, nd))
	return nd
}

func TestEnumerateChildren(t *testing.T) {
	ctx := context.Background()
	ds := dstest.Mock()
	root := makeTree(t, ds, 3, 4, "root")

	for _, enumerate := range []func(context.Context, GetLinks, cid.Cid, func(cid.Cid) bool) error{
		EnumerateChildren,
		EnumerateChildrenAsync,
	} {
		set := cid.NewSet()
		require.NoError(t, enumerate(ctx, GetLinksWithDAG(ds), root.Cid(), set.Visit))
		require.Equal(t, 4+16+64, set.Len())

		var traverse func(n format.Node)
		traverse = func(n format.Node) {
			for _, lnk := range n.Links() {
				require.True(t, set.Has(lnk.Cid), "missing key in set: %s", lnk.Cid)
				child, err := ds.Get(ctx, lnk.Cid)
				require.NoError(t, err)
				traverse(child)
			}
		}
		traverse(root)
	}
}

func TestEnumerateAsyncFailsNotFound(t *testing.T) {
	ctx := context.Background()

	a := NodeWithData([]byte("foo1"))
	b := NodeWithData([]byte("foo2"))
	c := NodeWithData([]byte("foo3"))
	d := NodeWithData([]byte("foo4"))

	ds := dstest.Mock()
	for _, n := range []format.Node{a, b, c} {
		require.NoError(t, ds.Add(ctx, n))
	}

	parent := new(ProtoNode)
	for name, n := range map[string]*ProtoNode{"a": a, "b": b, "c": c, "d": d} {
		require.NoError(t, parent.AddNodeLink(name, n))
	}
	require.NoError(t, ds.Add(ctx, parent))

	err := EnumerateChildrenAsync(ctx, GetLinksWithDAG(ds), parent.Cid(), cid.NewSet().Visit)
	require.True(t, format.IsNotFound(err), "expected not found, got %v", err)

	err = EnumerateChildren(ctx, GetLinksWithDAG(ds), parent.Cid(), cid.NewSet().Visit)
	require.True(t, format.IsNotFound(err))
}

func TestEnumerateCancelled(t *testing.T) {
	ds := dstest.Mock()
	root := makeTree(t, ds, 2, 3, "root")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := EnumerateChildren(ctx, GetLinksWithDAG(ds), root.Cid(), cid.NewSet().Visit)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchGraph(t *testing.T) {
	ctx := context.Background()
	ds := dstest.Mock()
	root := makeTree(t, ds, 2, 5, "graph")
	require.NoError(t, FetchGraph(ctx, root.Cid(), ds))

	// removing an inner node makes the walk fail
	require.NoError(t, ds.Remove(ctx, root.Links()[2].Cid))
	err := FetchGraph(ctx, root.Cid(), ds)
	require.True(t, format.IsNotFound(err))
}

func TestLinkSizes(t *testing.T) {
	leaf := NewRawNode(bytes.Repeat([]byte("x"), 100))
	mid := NodeWithData([]byte("mid"))
	require.NoError(t, mid.AddNodeLink("leaf", leaf))
	top := new(ProtoNode)
	require.NoError(t, top.AddNodeLink("mid", mid))

	midSize, err := mid.Size()
	require.NoError(t, err)
	require.Equal(t, uint64(len(mid.RawData()))+100, midSize)
	require.Equal(t, midSize, top.Links()[0].Size)
}
