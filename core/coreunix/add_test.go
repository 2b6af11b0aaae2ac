package coreunix

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/blockservice"
	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	"github.com/ipfs/kubo-core/exchange/offline"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/pin/gc"
	ft "github.com/ipfs/kubo-core/unixfs"
	uio "github.com/ipfs/kubo-core/unixfs/io"

	"github.com/ipfs/boxo/files"
	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/ipfs/go-test/random"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dstore ds.Batching
	bs     bstore.GCBlockstore
	dserv  ipld.DAGService
	pinner pin.Pinner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d := dssync.MutexWrap(ds.NewMapDatastore())
	bs := bstore.NewGCBlockstore(bstore.NewBlockstore(d), bstore.NewGCLocker())
	dserv := dag.NewDAGService(blockservice.New(bs, offline.Exchange()))
	pinner, err := pin.New(context.Background(), d, dserv)
	require.NoError(t, err)
	return &testEnv{dstore: d, bs: bs, dserv: dserv, pinner: pinner}
}

func (e *testEnv) adder(t *testing.T, ctx context.Context) *Adder {
	t.Helper()
	adder, err := NewAdder(ctx, e.pinner, e.bs, e.dserv)
	require.NoError(t, err)
	return adder
}

func collect(out chan interface{}) func() []*coreiface.AddEvent {
	done := make(chan []*coreiface.AddEvent)
	go func() {
		var evs []*coreiface.AddEvent
		for o := range out {
			evs = append(evs, o.(*coreiface.AddEvent))
		}
		done <- evs
	}()
	return func() []*coreiface.AddEvent {
		close(out)
		return <-done
	}
}

func TestAddFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)

	nd, err := adder.AddAllAndPin(files.NewBytesFile([]byte("hello, world!")))
	require.NoError(t, err)
	require.Equal(t, "QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk", nd.Cid().String())

	_, pinned, err := env.pinner.IsPinnedWithType(ctx, nd.Cid(), pin.Recursive)
	require.NoError(t, err)
	require.True(t, pinned)

	root, err := adder.RootNode()
	require.NoError(t, err)
	require.True(t, root.Cid().Equals(nd.Cid()))
}

func TestAddDirectoryEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	out := make(chan interface{}, 16)
	adder.Out = out
	wait := collect(out)

	dir := files.NewMapDirectory(map[string]files.Node{
		"foo": files.NewBytesFile([]byte("hello1")),
		"bar": files.NewBytesFile([]byte("hello2")),
	})
	nd, err := adder.AddAllAndPin(dir)
	require.NoError(t, err)
	require.Equal(t, "QmRKGpFfR32FVXdvJiHfo4WJ5TDYBsM1P9raAp1p6APWSp", nd.Cid().String())

	evs := wait()
	require.Len(t, evs, 3)
	require.Equal(t, "bar", evs[0].Name)
	require.Equal(t, "/ipfs/QmS21GuXiRMvJKHos4ZkEmQDmRBqRaF5tQS2CQCu2ne9sY", evs[0].Path.String())
	require.Equal(t, "14", evs[0].Size)
	require.Equal(t, "foo", evs[1].Name)
	require.Equal(t, "/ipfs/QmfAjGiVpTN56TXi6SBQtstit5BEw3sijKj1Qkxn6EXKzJ", evs[1].Path.String())
	require.Equal(t, nd.Cid().String(), evs[2].Name)
}

func TestAddSilent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Silent = true
	out := make(chan interface{}, 16)
	adder.Out = out
	wait := collect(out)

	dir := files.NewMapDirectory(map[string]files.Node{
		"foo": files.NewBytesFile([]byte("hello1")),
		"bar": files.NewBytesFile([]byte("hello2")),
	})
	nd, err := adder.AddAllAndPin(dir)
	require.NoError(t, err)

	evs := wait()
	require.Len(t, evs, 1)
	require.Equal(t, nd.Cid().String(), evs[0].Name)
}

func TestAddWrapped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Wrap = true
	adder.Name = "foo"

	nd, err := adder.AddAllAndPin(files.NewBytesFile([]byte("hello, world!")))
	require.NoError(t, err)
	require.Equal(t, "QmVE9rNpj5doj7XHzp5zMUxD7BJgXEqx4pe3xZ3JBReWHE", nd.Cid().String())

	lnk, err := nd.(*dag.ProtoNode).GetNodeLink("foo")
	require.NoError(t, err)
	require.Equal(t, "QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk", lnk.Cid.String())
}

func TestAddHidden(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Hidden = false

	dir := files.NewMapDirectory(map[string]files.Node{
		".hidden": files.NewBytesFile([]byte("secret")),
		"visible": files.NewBytesFile([]byte("hello")),
	})
	nd, err := adder.AddAllAndPin(dir)
	require.NoError(t, err)
	require.Len(t, nd.Links(), 1)
	require.Equal(t, "visible", nd.Links()[0].Name)
}

func TestAddNoPin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Pin = false

	nd, err := adder.AddAllAndPin(files.NewBytesFile([]byte("not pinned")))
	require.NoError(t, err)

	_, pinned, err := env.pinner.IsPinned(ctx, nd.Cid())
	require.NoError(t, err)
	require.False(t, pinned)

	has, err := env.bs.Has(ctx, nd.Cid())
	require.NoError(t, err)
	require.True(t, has)
}

func TestAddProgress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Progress = true
	out := make(chan interface{}, 16)
	adder.Out = out
	wait := collect(out)

	nd, err := adder.AddAllAndPin(files.NewBytesFile(make([]byte, 1000000)))
	require.NoError(t, err)
	require.Equal(t, "QmXXNNbwe4zzpdMg62ZXvnX1oU7MwSrQ3vAEtuwFKCm1oD", nd.Cid().String())

	var progress []int64
	for _, ev := range wait() {
		if ev.Bytes != 0 {
			progress = append(progress, ev.Bytes)
		}
	}
	require.Equal(t, []int64{262144, 524288, 786432, 1000000}, progress)
}

func TestAddPreserveMetadata(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.RawLeaves = true
	adder.FileMode = 0o640
	adder.FileMtime = time.Unix(1700000000, 0)

	data := []byte("metadata lives on the root")
	nd, err := adder.AddAllAndPin(files.NewBytesFile(data))
	require.NoError(t, err)

	fsn, err := ft.ExtractFSNode(nd)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), fsn.Mode())
	require.Equal(t, int64(1700000000), fsn.ModTime().Unix())

	// the leaf stays a plain raw block
	require.Len(t, nd.Links(), 1)
	require.Equal(t, uint64(cid.Raw), nd.Links()[0].Cid.Prefix().Codec)

	dr, err := uio.NewDagReader(ctx, nd, env.dserv)
	require.NoError(t, err)
	got, err := io.ReadAll(dr)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestAddLargeRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	adder.Chunker = "size-4096"

	data := random.Bytes(1 << 20)
	nd, err := adder.AddAllAndPin(files.NewBytesFile(data))
	require.NoError(t, err)

	dr, err := uio.NewDagReader(ctx, nd, env.dserv)
	require.NoError(t, err)
	got, err := io.ReadAll(dr)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))
}

func TestAddGCLive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	adder := env.adder(t, ctx)

	// make a file with a pipe so we can 'pause' the add for timing of the test
	piper, pipew := io.Pipe()
	slf := files.NewMapDirectory(map[string]files.Node{
		"a": files.NewBytesFile([]byte("testfileA")),
		"b": files.NewReaderFile(piper),
		"d": files.NewBytesFile([]byte("testfileD")),
	})

	var root ipld.Node
	addDone := make(chan error, 1)
	go func() {
		var err error
		root, err = adder.AddAllAndPin(slf)
		addDone <- err
	}()

	// wait for the adder to take the pin lock
	time.Sleep(50 * time.Millisecond)

	var gcout <-chan gc.Result
	gcstarted := make(chan struct{})
	go func() {
		defer close(gcstarted)
		gcout = gc.GC(ctx, env.bs, env.dstore, env.pinner, nil)
	}()

	_, err := pipew.Write([]byte("some data for file b"))
	require.NoError(t, err)

	select {
	case <-gcstarted:
		t.Fatal("gc shouldnt have started yet")
	case <-time.After(100 * time.Millisecond):
	}

	// finish write and unblock gc
	require.NoError(t, pipew.Close())
	require.NoError(t, <-addDone)
	<-gcstarted

	for r := range gcout {
		require.NoError(t, r.Error)
	}

	set := cid.NewSet()
	err = dag.EnumerateChildren(ctx, dag.GetLinksWithDAG(env.dserv), root.Cid(), set.Visit)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
}

func TestAddCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv(t)
	adder := env.adder(t, ctx)
	cancel()

	_, err := adder.AddAllAndPin(files.NewBytesFile([]byte("never")))
	require.ErrorIs(t, err, coreiface.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
}
