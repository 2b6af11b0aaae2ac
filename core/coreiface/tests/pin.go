package tests

import (
	"context"
	"testing"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	opt "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	"github.com/ipfs/boxo/files"
	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func (tp *TestSuite) TestPin(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Pin() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestPinAdd", tp.TestPinAdd)
	t.Run("TestPinSimple", tp.TestPinSimple)
	t.Run("TestPinRecursive", tp.TestPinRecursive)
	t.Run("TestPinDirectThenRecursive", tp.TestPinDirectThenRecursive)
	t.Run("TestPinNames", tp.TestPinNames)
	t.Run("TestPinIsPinned", tp.TestPinIsPinned)
	t.Run("TestPinUpdate", tp.TestPinUpdate)
	t.Run("TestPinVerify", tp.TestPinVerify)
	t.Run("TestPinLsBadType", tp.TestPinLsBadType)
}

// accPins drains Pin().Ls.
func accPins(ctx context.Context, api coreiface.CoreAPI, opts ...opt.PinLsOption) ([]coreiface.Pin, error) {
	var pins []coreiface.Pin
	out := make(chan coreiface.Pin)
	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Pin().Ls(ctx, out, opts...)
	}()
	for p := range out {
		if err := p.Err(); err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, <-errCh
}

func pinsByPath(pins []coreiface.Pin) map[path.Path]coreiface.Pin {
	m := make(map[path.Path]coreiface.Pin, len(pins))
	for _, p := range pins {
		m[p.Path()] = p
	}
	return m
}

func (tp *TestSuite) TestPinAdd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile("foo")())
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p))
}

func (tp *TestSuite) TestPinSimple(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile("foo")())
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p))

	list, err := accPins(ctx, api)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p, list[0].Path())
	require.Equal(t, "recursive", list[0].Type())

	require.NoError(t, api.Pin().Rm(ctx, p))

	list, err = accPins(ctx, api)
	require.NoError(t, err)
	require.Empty(t, list)

	// removing a pin that does not exist fails
	require.Error(t, api.Pin().Rm(ctx, p))
}

func (tp *TestSuite) TestPinRecursive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p0, err := api.Unixfs().Add(ctx, strFile("foo")())
	require.NoError(t, err)
	p1, err := api.Unixfs().Add(ctx, strFile("bar")())
	require.NoError(t, err)

	dir, err := api.Object().New(ctx, opt.Object.Type("unixfs-dir"))
	require.NoError(t, err)
	p2, err := api.Object().AddLink(ctx, path.FromCid(dir.Cid()), "foo", p0)
	require.NoError(t, err)
	p3, err := api.Object().AddLink(ctx, p2, "bar", p1)
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p2))
	require.NoError(t, api.Pin().Add(ctx, p3, opt.Pin.Recursive(false)))

	list, err := accPins(ctx, api)
	require.NoError(t, err)
	require.Len(t, list, 3)

	list, err = accPins(ctx, api, opt.Pin.Ls.Direct())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p3, list[0].Path())

	list, err = accPins(ctx, api, opt.Pin.Ls.Recursive())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p2, list[0].Path())

	list, err = accPins(ctx, api, opt.Pin.Ls.Indirect())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p0, list[0].Path())
	require.Equal(t, "indirect", list[0].Type())

	// a recursive pin is only removed when asked for
	require.Error(t, api.Pin().Rm(ctx, p2, opt.Pin.RmRecursive(false)))
	require.NoError(t, api.Pin().Rm(ctx, p2))

	list, err = accPins(ctx, api)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p3, list[0].Path())
}

func (tp *TestSuite) TestPinDirectThenRecursive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile("upgrade me")())
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p, opt.Pin.Recursive(false)))
	require.NoError(t, api.Pin().Add(ctx, p))

	list, err := accPins(ctx, api)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "recursive", list[0].Type())

	// never downgraded
	require.Error(t, api.Pin().Add(ctx, p, opt.Pin.Recursive(false)))
}

func (tp *TestSuite) TestPinNames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile("shared")())
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p, opt.Pin.Name("alice")))
	require.NoError(t, api.Pin().Add(ctx, p, opt.Pin.Name("bob")))

	list, err := accPins(ctx, api, opt.Pin.Ls.Detailed(true))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"alice", "bob"}, list[0].Names())

	// undetailed listings leave names out
	list, err = accPins(ctx, api)
	require.NoError(t, err)
	require.Empty(t, list[0].Names())

	require.NoError(t, api.Pin().Rm(ctx, p, opt.Pin.RmName("alice")))
	_, pinned, err := api.Pin().IsPinned(ctx, p)
	require.NoError(t, err)
	require.True(t, pinned)

	require.Error(t, api.Pin().Rm(ctx, p, opt.Pin.RmName("alice")))

	require.NoError(t, api.Pin().Rm(ctx, p, opt.Pin.RmName("bob")))
	_, pinned, err = api.Pin().IsPinned(ctx, p)
	require.NoError(t, err)
	require.False(t, pinned)
}

func (tp *TestSuite) TestPinIsPinned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	leaf, err := api.Unixfs().Add(ctx, strFile("leaf")())
	require.NoError(t, err)
	dir, err := api.Unixfs().Add(ctx, files.NewMapDirectory(map[string]files.Node{
		"leaf": strFile("leaf")(),
	}))
	require.NoError(t, err)

	_, pinned, err := api.Pin().IsPinned(ctx, dir)
	require.NoError(t, err)
	require.False(t, pinned)

	require.NoError(t, api.Pin().Add(ctx, dir))

	how, pinned, err := api.Pin().IsPinned(ctx, dir)
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, "recursive", how)

	dirCid, _, err := path.SplitAbsPath(dir)
	require.NoError(t, err)

	how, pinned, err = api.Pin().IsPinned(ctx, leaf)
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, dirCid.String(), how)

	_, pinned, err = api.Pin().IsPinned(ctx, leaf, opt.Pin.IsPinned.Direct())
	require.NoError(t, err)
	require.False(t, pinned)

	_, pinned, err = api.Pin().IsPinned(ctx, leaf, opt.Pin.IsPinned.Indirect())
	require.NoError(t, err)
	require.True(t, pinned)
}

func (tp *TestSuite) TestPinUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Unixfs().Add(ctx, strFile("foo")())
	require.NoError(t, err)
	p2, err := api.Unixfs().Add(ctx, strFile("bar")())
	require.NoError(t, err)

	require.NoError(t, api.Pin().Add(ctx, p1, opt.Pin.Name("owner")))
	require.NoError(t, api.Pin().Update(ctx, p1, p2))

	list, err := accPins(ctx, api, opt.Pin.Ls.Detailed(true))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p2, list[0].Path())
	require.Equal(t, []string{"owner"}, list[0].Names())

	// updating from something that is not pinned fails
	require.Error(t, api.Pin().Update(ctx, p1, p2))

	require.NoError(t, api.Pin().Update(ctx, p2, p1, opt.Pin.Unpin(false)))
	list, err = accPins(ctx, api, opt.Pin.Ls.Recursive())
	require.NoError(t, err)
	require.Len(t, list, 2)
	byPath := pinsByPath(list)
	require.Contains(t, byPath, p1)
	require.Contains(t, byPath, p2)
}

func (tp *TestSuite) TestPinVerify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, files.NewMapDirectory(map[string]files.Node{
		"a": strFile("first file")(),
		"b": strFile("second file")(),
	}), opt.Unixfs.Pin(true))
	require.NoError(t, err)

	statuses, err := api.Pin().Verify(ctx)
	require.NoError(t, err)
	var n int
	for st := range statuses {
		require.NoError(t, st.Err())
		require.True(t, st.Ok())
		n++
	}
	require.Equal(t, 1, n)

	// drop a child block behind the pin's back
	nd, err := api.ResolveNode(ctx, dir)
	require.NoError(t, err)
	missing := nd.Links()[0].Cid
	require.NoError(t, deleteBlock(ctx, api, missing))

	statuses, err = api.Pin().Verify(ctx)
	require.NoError(t, err)
	var bad []coreiface.BadPinNode
	for st := range statuses {
		require.NoError(t, st.Err())
		require.False(t, st.Ok())
		bad = append(bad, st.BadNodes()...)
	}
	require.Len(t, bad, 1)
	require.Equal(t, path.FromCid(missing), bad[0].Path())
	require.True(t, ipld.IsNotFound(bad[0].Err()), "unexpected error: %v", bad[0].Err())
}

// deleteBlock removes c from the store even though a pin covers it.
func deleteBlock(ctx context.Context, api coreiface.CoreAPI, c cid.Cid) error {
	dserv := api.Dag()
	return dserv.Remove(ctx, c)
}

func (tp *TestSuite) TestPinLsBadType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := accPins(ctx, api, opt.Pin.Ls.Type("sideways"))
	require.Error(t, err)
}
