package tests

import (
	"context"
	"testing"
	"time"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	opt "github.com/ipfs/kubo-core/core/coreiface/options"
	nsopts "github.com/ipfs/kubo-core/core/coreiface/options/namesys"
	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/path"

	"github.com/stretchr/testify/require"
)

func (tp *TestSuite) TestName(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Name() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestPublishResolve", tp.TestPublishResolve)
	t.Run("TestPublishSubpath", tp.TestPublishSubpath)
	t.Run("TestResolveAcrossNodes", tp.TestResolveAcrossNodes)
	t.Run("TestResolveRecursion", tp.TestResolveRecursion)
	t.Run("TestResolveExpired", tp.TestResolveExpired)
	t.Run("TestResolveUnknown", tp.TestResolveUnknown)
}

func (tp *TestSuite) TestPublishResolve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)

	e, err := api.Name().Publish(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "self", e.Name())
	require.Equal(t, p, e.Value())

	resPath, err := api.Name().Resolve(ctx, e.Name())
	require.NoError(t, err)
	require.Equal(t, p, resPath)

	// republishing replaces the value
	p2, err := api.Unixfs().Add(ctx, strFile("other")())
	require.NoError(t, err)
	_, err = api.Name().Publish(ctx, p2)
	require.NoError(t, err)

	resPath, err = api.Name().Resolve(ctx, "/ipns/self", opt.Name.Cache(false))
	require.NoError(t, err)
	require.Equal(t, p2, resPath)
}

func (tp *TestSuite) TestPublishSubpath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, flatDir())
	require.NoError(t, err)

	_, err = api.Name().Publish(ctx, dir, opt.Name.Key("site"))
	require.NoError(t, err)

	resPath, err := api.Name().Resolve(ctx, "/ipns/site/foo")
	require.NoError(t, err)
	require.Equal(t, dir+"/foo", resPath)

	nd, err := api.ResolveNode(ctx, "/ipns/site/foo")
	require.NoError(t, err)
	foo, err := api.ResolvePath(ctx, dir+"/foo")
	require.NoError(t, err)
	require.Equal(t, path.FromCid(nd.Cid()), foo)
}

func (tp *TestSuite) TestResolveAcrossNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	apis, err := tp.MakeAPISwarm(t, ctx, 2)
	require.NoError(t, err)

	p, err := apis[0].Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)

	_, err = apis[0].Name().Publish(ctx, p, opt.Name.Key("shared"))
	require.NoError(t, err)

	resPath, err := apis[1].Name().Resolve(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, p, resPath)
}

func (tp *TestSuite) TestResolveRecursion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)

	_, err = api.Name().Publish(ctx, p, opt.Name.Key("a"))
	require.NoError(t, err)
	_, err = api.Name().Publish(ctx, "/ipns/a", opt.Name.Key("b"))
	require.NoError(t, err)

	resPath, err := api.Name().Resolve(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, p, resPath)

	resPath, err = api.Name().Resolve(ctx, "b", opt.Name.ResolveOption(nsopts.Depth(1)))
	require.ErrorIs(t, err, namesys.ErrResolveRecursion)
	require.Equal(t, path.Path("/ipns/a"), resPath)

	var results []coreiface.IpnsResult
	ch, err := api.Name().Search(ctx, "b")
	require.NoError(t, err)
	for res := range ch {
		results = append(results, res)
	}
	require.NotEmpty(t, results)
	require.NoError(t, results[len(results)-1].Err)
	require.Equal(t, p, results[len(results)-1].Path)
}

func (tp *TestSuite) TestResolveExpired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)

	_, err = api.Name().Publish(ctx, p, opt.Name.Key("brief"), opt.Name.ValidTime(50*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := api.Name().Resolve(ctx, "brief", opt.Name.Cache(false))
		return err != nil
	}, defaultWait, pollInterval)

	_, err = api.Name().Resolve(ctx, "brief", opt.Name.Cache(false))
	require.ErrorIs(t, err, coreiface.ErrResolveFailed)
}

func (tp *TestSuite) TestResolveUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := api.Name().Resolve(ctx, "nobody-published-this")
	require.ErrorIs(t, err, coreiface.ErrResolveFailed)

	_, err = api.ResolveNode(ctx, "/ipns/nobody-published-this")
	require.Error(t, err)
}
