package pin

import (
	"context"
	"testing"

	"github.com/ipfs/kubo-core/blocks/blockstore"
	bs "github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/exchange/offline"
	mdag "github.com/ipfs/kubo-core/merkledag"

	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	format "github.com/ipfs/go-ipld-format"
	"github.com/ipfs/go-test/random"
	"github.com/stretchr/testify/require"
)

func randNode() (*mdag.ProtoNode, cid.Cid) {
	nd := mdag.NodeWithData(random.Bytes(32))
	return nd, nd.Cid()
}

type env struct {
	dstore ds.Batching
	dserv  format.DAGService
	bstore blockstore.Blockstore
}

func newEnv() env {
	dstore := dssync.MutexWrap(ds.NewMapDatastore())
	bstore := blockstore.NewBlockstore(dstore)
	bserv := bs.New(bstore, offline.Exchange())
	return env{dstore: dstore, dserv: mdag.NewDAGService(bserv), bstore: bstore}
}

func newPinner(t *testing.T, e env) *DSPinner {
	t.Helper()
	p, err := New(context.Background(), e.dstore, e.dserv)
	require.NoError(t, err)
	return p
}

func assertPinned(t *testing.T, p Pinner, c cid.Cid, failmsg string) {
	t.Helper()
	_, pinned, err := p.IsPinned(context.Background(), c)
	require.NoError(t, err)
	require.True(t, pinned, failmsg)
}

func assertUnpinned(t *testing.T, p Pinner, c cid.Cid, failmsg string) {
	t.Helper()
	_, pinned, err := p.IsPinned(context.Background(), c)
	require.NoError(t, err)
	require.False(t, pinned, failmsg)
}

func TestPinnerBasic(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, ak := randNode()
	require.NoError(t, e.dserv.Add(ctx, a))

	// Pin A{}
	require.NoError(t, p.Pin(ctx, a, false, ""))
	assertPinned(t, p, ak, "Failed to find key")

	// create new node c, to be indirectly pinned through b
	c, ck := randNode()
	require.NoError(t, e.dserv.Add(ctx, c))

	// Create new node b, to be parent to a and c
	b, _ := randNode()
	require.NoError(t, b.AddNodeLink("child", a))
	require.NoError(t, b.AddNodeLink("otherchild", c))
	require.NoError(t, e.dserv.Add(ctx, b))

	// recursively pin B{A,C}
	require.NoError(t, p.Pin(ctx, b, true, ""))
	assertPinned(t, p, ck, "child of recursively pinned node not found")

	bk := b.Cid()
	assertPinned(t, p, bk, "Recursively pinned node not found..")

	reason, pinned, err := p.IsPinnedWithType(ctx, ck, Indirect)
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, bk.String(), reason)

	d, _ := randNode()
	require.NoError(t, d.AddNodeLink("a", a))
	require.NoError(t, d.AddNodeLink("c", c))
	e2, _ := randNode()
	require.NoError(t, d.AddNodeLink("e", e2))
	require.NoError(t, e.dserv.Add(ctx, e2))
	require.NoError(t, e.dserv.Add(ctx, d))

	// Add D{A,C,E}
	require.NoError(t, p.Pin(ctx, d, true, ""))
	dk := d.Cid()
	assertPinned(t, p, dk, "pinned node not found.")

	// Test recursive unpin
	require.NoError(t, p.Unpin(ctx, dk, true))
	assertUnpinned(t, p, dk, "unpinned node still pinned")
	assertUnpinned(t, p, e2.Cid(), "child of unpinned node still pinned")

	require.NoError(t, p.Flush(ctx))

	np := newPinner(t, e)

	// Test directly pinned
	assertPinned(t, np, ak, "Could not find pinned node!")

	// Test recursively pinned
	assertPinned(t, np, bk, "could not find recursively pinned node")

	direct, err := np.DirectKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{ak}, direct)

	recursive, err := np.RecursiveKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{bk}, recursive)
}

func TestDuplicateSemantics(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, ak := randNode()
	require.NoError(t, e.dserv.Add(ctx, a))

	// pin is recursively
	require.NoError(t, p.Pin(ctx, a, true, ""))

	// pinning directly should fail
	err := p.Pin(ctx, a, false, "")
	require.ErrorIs(t, err, ErrAlreadyPinnedRecursive)

	// pinning recursively again should succeed
	require.NoError(t, p.Pin(ctx, a, true, ""))

	_, pinned, err := p.IsPinnedWithType(ctx, ak, Recursive)
	require.NoError(t, err)
	require.True(t, pinned)
	_, pinned, err = p.IsPinnedWithType(ctx, ak, Direct)
	require.NoError(t, err)
	require.False(t, pinned)
}

func TestDirectUpgradedToRecursive(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, ak := randNode()
	require.NoError(t, p.Pin(ctx, a, false, "first"))
	require.NoError(t, p.Pin(ctx, a, true, "second"))

	direct, err := p.DirectKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, direct)

	names, err := p.Names(ctx, ak)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, names)

	// non-recursive unpin refuses to touch a recursive pin
	require.Error(t, p.Unpin(ctx, ak, false))
	assertPinned(t, p, ak, "recursive pin removed by direct unpin")
}

func TestPinNames(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, ak := randNode()
	require.NoError(t, p.Pin(ctx, a, true, "alice"))
	require.NoError(t, p.Pin(ctx, a, true, "bob"))
	require.NoError(t, p.Pin(ctx, a, true, "alice"))

	names, err := p.Names(ctx, ak)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, names)

	require.ErrorIs(t, p.UnpinName(ctx, ak, "carol"), ErrNameNotFound)

	require.NoError(t, p.UnpinName(ctx, ak, "alice"))
	assertPinned(t, p, ak, "pin removed while an owner remains")

	require.NoError(t, p.UnpinName(ctx, ak, "bob"))
	assertUnpinned(t, p, ak, "pin kept without owners")

	require.ErrorIs(t, p.UnpinName(ctx, ak, "bob"), ErrNotPinned)
	require.ErrorIs(t, p.Unpin(ctx, ak, true), ErrNotPinned)
}

func TestPinRecursiveFail(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, _ := randNode()
	b, _ := randNode()
	require.NoError(t, a.AddNodeLink("child", b))

	// NOTE: This isnt a time based test, we expect the pin to fail
	mctx, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, p.Pin(mctx, a, true, ""), "should have failed to pin here")

	require.NoError(t, e.dserv.Add(ctx, b))
	require.NoError(t, e.dserv.Add(ctx, a))

	// this one is time based... but shouldnt cause any issues
	require.NoError(t, p.Pin(ctx, a, true, ""))
}

func TestPinMissingChild(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	a, ak := randNode()
	b, _ := randNode()
	require.NoError(t, a.AddNodeLink("child", b))

	err := p.Pin(ctx, a, true, "")
	require.True(t, format.IsNotFound(err))
	assertUnpinned(t, p, ak, "incomplete graph was pinned")
}

func TestCheckIfPinned(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	leaf, lk := randNode()
	root, _ := randNode()
	require.NoError(t, root.AddNodeLink("leaf", leaf))
	rk := root.Cid()
	require.NoError(t, e.dserv.Add(ctx, leaf))
	require.NoError(t, e.dserv.Add(ctx, root))
	require.NoError(t, p.Pin(ctx, root, true, ""))

	direct, dk := randNode()
	require.NoError(t, p.Pin(ctx, direct, false, ""))

	_, loose := randNode()

	res, err := p.CheckIfPinned(ctx, lk, rk, dk, loose)
	require.NoError(t, err)

	got := make(map[cid.Cid]Pinned)
	for _, r := range res {
		got[r.Key] = r
	}
	require.Len(t, got, 4)
	require.Equal(t, Recursive, got[rk].Mode)
	require.Equal(t, Direct, got[dk].Mode)
	require.Equal(t, Indirect, got[lk].Mode)
	require.Equal(t, rk, got[lk].Via)
	require.Equal(t, NotPinned, got[loose].Mode)
	require.False(t, got[loose].Pinned())
	require.Equal(t, "pinned via "+rk.String(), got[lk].String())
}

func TestPinUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	shared, _ := randNode()
	n1, _ := randNode()
	require.NoError(t, n1.AddNodeLink("shared", shared))
	c1 := n1.Cid()
	n2 := n1.Copy().(*mdag.ProtoNode)
	extra, extraKey := randNode()
	require.NoError(t, n2.AddNodeLink("extra", extra))
	c2 := n2.Cid()

	for _, nd := range []format.Node{shared, n1, extra, n2} {
		require.NoError(t, e.dserv.Add(ctx, nd))
	}

	require.Error(t, p.Update(ctx, c1, c2, true), "from is not pinned")

	require.NoError(t, p.Pin(ctx, n1, true, "owner"))
	require.NoError(t, p.Update(ctx, c1, c2, false))
	assertPinned(t, p, c1, "c1 should still be pinned")
	assertPinned(t, p, c2, "c2 should be pinned")

	require.NoError(t, p.Unpin(ctx, c2, true))
	require.NoError(t, p.Update(ctx, c1, c2, true))
	assertUnpinned(t, p, c1, "c1 should no longer be pinned")
	assertPinned(t, p, c2, "c2 should be pinned")
	assertPinned(t, p, extraKey, "new child should be pinned indirectly")

	names, err := p.Names(ctx, c2)
	require.NoError(t, err)
	require.Equal(t, []string{"owner"}, names)
}

func TestPinWithModeDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	_, missing := randNode()
	require.NoError(t, p.PinWithMode(ctx, missing, Recursive, ""))
	assertPinned(t, p, missing, "pin record not written")

	require.Error(t, p.PinWithMode(ctx, missing, Indirect, ""))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	p := newPinner(t, e)

	good, gk := randNode()
	require.NoError(t, p.Pin(ctx, good, true, ""))

	leaf, lk := randNode()
	broken, _ := randNode()
	require.NoError(t, broken.AddNodeLink("leaf", leaf))
	bk := broken.Cid()
	require.NoError(t, e.dserv.Add(ctx, leaf))
	require.NoError(t, p.Pin(ctx, broken, true, ""))
	require.NoError(t, e.bstore.DeleteBlock(ctx, lk))

	res, err := Verify(ctx, p, e.dserv)
	require.NoError(t, err)
	require.Len(t, res, 2)

	byCid := make(map[cid.Cid]PinStatus)
	for _, r := range res {
		byCid[r.Cid] = r
	}
	require.True(t, byCid[gk].Ok)
	require.False(t, byCid[bk].Ok)
	require.Len(t, byCid[bk].BadNodes, 1)
	require.Equal(t, lk, byCid[bk].BadNodes[0].Cid)
	require.True(t, format.IsNotFound(byCid[bk].BadNodes[0].Err))
}

func TestModeStrings(t *testing.T) {
	for _, m := range []Mode{Recursive, Direct, Indirect, Internal, NotPinned, Any} {
		s, ok := ModeToString(m)
		require.True(t, ok)
		back, ok := StringToMode(s)
		require.True(t, ok)
		require.Equal(t, m, back)
	}
	m, ok := StringToMode("all")
	require.True(t, ok)
	require.Equal(t, Any, m)
}
