package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	"github.com/stretchr/testify/require"
)

func (tp *TestSuite) TestPath(t *testing.T) {
	t.Run("TestMutablePath", tp.TestMutablePath)
	t.Run("TestPathRemainder", tp.TestPathRemainder)
	t.Run("TestBareCidPath", tp.TestBareCidPath)
	t.Run("TestMissingSegment", tp.TestMissingSegment)
	t.Run("TestThroughFile", tp.TestThroughFile)
	t.Run("TestNoComponents", tp.TestNoComponents)
	t.Run("TestPathRoot", tp.TestPathRoot)
	t.Run("TestPathJoin", tp.TestPathJoin)
}

func (tp *TestSuite) TestMutablePath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	blk, err := api.Block().Put(ctx, strings.NewReader(`foo`))
	require.NoError(t, err)

	_, err = api.Name().Publish(ctx, blk.Path(), options.Name.Key("mutable"))
	require.NoError(t, err)

	p, err := api.ResolvePath(ctx, path.FromString("/ipns/mutable"))
	require.NoError(t, err)
	require.Equal(t, blk.Path(), p)
}

func (tp *TestSuite) TestPathRemainder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, twoLevelDir()())
	require.NoError(t, err)

	p, err := path.Join(dir, "abc", "def")
	require.NoError(t, err)
	resolved, err := api.ResolvePath(ctx, p)
	require.NoError(t, err)
	requireCid(t, "QmNyJpQkU1cEkBwMDhDNFstr42q55mqG5GE5Mgwug4xyGk", resolved)

	nd, err := api.ResolveNode(ctx, p)
	require.NoError(t, err)
	require.Equal(t, resolved, path.FromCid(nd.Cid()))
}

func (tp *TestSuite) TestBareCidPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)
	c, _, err := path.SplitAbsPath(p)
	require.NoError(t, err)

	resolved, err := api.ResolvePath(ctx, path.FromString(c.String()))
	require.NoError(t, err)
	require.Equal(t, path.FromString(hello), resolved)
}

func (tp *TestSuite) TestMissingSegment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, flatDir())
	require.NoError(t, err)

	_, err = api.ResolvePath(ctx, dir+"/missing")
	require.ErrorIs(t, err, path.ErrPathNotFound)

	var noLink *path.ErrNoLink
	require.ErrorAs(t, err, &noLink)
	require.Equal(t, "missing", noLink.Name)
}

func (tp *TestSuite) TestThroughFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, flatDir())
	require.NoError(t, err)

	_, err = api.ResolvePath(ctx, dir+"/foo/bar")
	require.ErrorIs(t, err, path.ErrNotADirectory)
}

func (tp *TestSuite) TestNoComponents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := api.ResolvePath(ctx, path.FromString("/ipfs/"))
	require.ErrorIs(t, err, path.ErrNoComponents)

	_, err = api.ResolvePath(ctx, path.FromString("/ipld/foo"))
	require.Error(t, err)
}

func (tp *TestSuite) TestPathRoot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	blk, err := api.Block().Put(ctx, strings.NewReader(`foo`), options.Block.Format("raw"))
	require.NoError(t, err)

	obj, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo", "Links":[{"Name":"foo", "Hash":"`+blk.Path().Segments()[1]+`"}]}`))
	require.NoError(t, err)

	resolved, err := api.ResolvePath(ctx, obj+"/foo")
	require.NoError(t, err)
	require.Equal(t, blk.Path(), resolved)

	// raw blocks have no links to follow
	_, err = api.ResolvePath(ctx, blk.Path()+"/foo")
	require.Error(t, err)
}

func (tp *TestSuite) TestPathJoin(t *testing.T) {
	p1 := path.FromString("/ipfs/QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk/abc/def")

	p2, err := path.Join(path.FromString("/ipfs/QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk"), "abc", "def")
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	_, err = path.Join(path.FromString("/ipfs/"), "abc")
	require.Error(t, err)
}
