package namesys

import (
	"context"
	"errors"
	"testing"
	"time"

	opts "github.com/ipfs/kubo-core/core/coreiface/options/namesys"
	path "github.com/ipfs/kubo-core/path"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

const (
	emptyDir  = "/ipfs/QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"
	emptyFile = "/ipfs/QmbFMke1KXqnYyBBWxB74N4c5SBnJMVAiMNRcGu6x1AwQH"
)

func publish(t *testing.T, ns NameSystem, name, value string, options ...opts.PublishOption) {
	t.Helper()
	require.NoError(t, ns.Publish(context.Background(), name, path.FromString(value), options...))
}

func testResolution(t *testing.T, resolver Resolver, name string, depth uint, expected string, expError error) {
	t.Helper()
	p, err := resolver.Resolve(context.Background(), name, opts.Depth(depth))
	require.ErrorIs(t, err, expError, "resolving %s with depth %d", name, depth)
	require.Equal(t, expected, p.String(), "resolving %s with depth %d", name, depth)
}

func TestPublishResolve(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "site", emptyDir)

	testResolution(t, ns, "/ipns/site", opts.DefaultDepthLimit, emptyDir, nil)
	testResolution(t, ns, "site", opts.DefaultDepthLimit, emptyDir, nil)
}

func TestRecursiveResolution(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "release", emptyFile)
	publish(t, ns, "latest", "/ipns/release")
	publish(t, ns, "site", "/ipns/latest")

	testResolution(t, ns, "/ipns/site", opts.DefaultDepthLimit, emptyFile, nil)
	testResolution(t, ns, "/ipns/site", opts.UnlimitedDepth, emptyFile, nil)
	testResolution(t, ns, "/ipns/site", 1, "/ipns/latest", ErrResolveRecursion)
	testResolution(t, ns, "/ipns/site", 2, "/ipns/release", ErrResolveRecursion)
	testResolution(t, ns, "/ipns/site", 3, emptyFile, nil)
}

func TestResolveWithSubpath(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "a", emptyDir+"/docs")
	publish(t, ns, "b", "/ipns/a")

	testResolution(t, ns, "/ipns/b/readme.md", opts.DefaultDepthLimit, emptyDir+"/docs/readme.md", nil)
}

func TestResolveContentPaths(t *testing.T) {
	ns := NewMemory()
	testResolution(t, ns, emptyDir, opts.DefaultDepthLimit, emptyDir, nil)
	testResolution(t, ns, "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn/a", opts.DefaultDepthLimit, emptyDir+"/a", nil)
}

func TestResolveUnknown(t *testing.T) {
	ns := NewMemory()
	_, err := ns.Resolve(context.Background(), "/ipns/nobody")
	require.ErrorIs(t, err, ErrResolveFailed)
}

func TestResolveCycle(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "a", "/ipns/b")
	publish(t, ns, "b", "/ipns/a")

	_, err := ns.Resolve(context.Background(), "/ipns/a")
	require.ErrorIs(t, err, ErrResolveRecursion)
}

func TestExpiredRecord(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "old", emptyDir, opts.PublishWithEOL(time.Now().Add(-time.Second)))

	_, err := ns.Resolve(context.Background(), "/ipns/old")
	require.ErrorIs(t, err, ErrResolveFailed)
	require.ErrorIs(t, err, ErrExpiredRecord)
}

func TestRepublishBypassesCache(t *testing.T) {
	ns := NewMemory()
	ctx := context.Background()

	publish(t, ns, "site", emptyDir)
	p, err := ns.Resolve(ctx, "/ipns/site")
	require.NoError(t, err)
	require.Equal(t, emptyDir, p.String())

	publish(t, ns, "site", emptyFile)
	p, err = ns.Resolve(ctx, "/ipns/site")
	require.NoError(t, err)
	require.Equal(t, emptyFile, p.String())
}

func TestRecordsPersistInDatastore(t *testing.T) {
	ctx := context.Background()
	dstore := dssync.MutexWrap(ds.NewMapDatastore())

	first, err := NewNameSystem(dstore, 0)
	require.NoError(t, err)
	publish(t, first, "site", emptyDir)
	publish(t, first, "site", emptyFile)

	second, err := NewNameSystem(dstore, 0)
	require.NoError(t, err)
	p, err := second.Resolve(ctx, "/ipns/site", opts.Cache(false))
	require.NoError(t, err)
	require.Equal(t, emptyFile, p.String())

	raw, err := dstore.Get(ctx, recordKey("site"))
	require.NoError(t, err)
	rec, err := decodeRecord(raw)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.Seq)
}

func TestPublishInvalid(t *testing.T) {
	ns := NewMemory()
	ctx := context.Background()

	require.ErrorIs(t, ns.Publish(ctx, "", path.FromString(emptyDir)), ErrInvalidName)
	require.ErrorIs(t, ns.Publish(ctx, "a/b", path.FromString(emptyDir)), ErrInvalidName)
	require.Error(t, ns.Publish(ctx, "a", path.FromString("/nope/x")))
}

func TestResolveAsyncSteps(t *testing.T) {
	ns := NewMemory()
	publish(t, ns, "release", emptyFile)
	publish(t, ns, "site", "/ipns/release")

	var got []string
	for res := range ns.ResolveAsync(context.Background(), "/ipns/site") {
		require.NoError(t, res.Err)
		got = append(got, res.Path.String())
	}
	require.Equal(t, []string{emptyFile}, got)
}

// stepResolver answers "front" with a redirect to /ipns/back followed by an
// error, and never answers "back".
type stepResolver struct {
	failure error
	backCtx chan context.Context
}

func (r *stepResolver) resolveOnceAsync(ctx context.Context, name string, _ opts.ResolveOpts) <-chan onceResult {
	out := make(chan onceResult, 2)
	switch name {
	case "front":
		out <- onceResult{value: path.FromString("/ipns/back")}
		out <- onceResult{err: r.failure}
		close(out)
	case "back":
		r.backCtx <- ctx
	}
	return out
}

func TestResolveAsyncStopsSubLookup(t *testing.T) {
	failure := errors.New("record expired")
	r := &stepResolver{failure: failure, backCtx: make(chan context.Context, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var errs []error
	for res := range resolveAsync(ctx, r, "front", opts.DefaultResolveOpts()) {
		errs = append(errs, res.Err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], failure)

	// the caller's context is still live, only the nested lookup ended
	require.NoError(t, ctx.Err())
	var backCtx context.Context
	select {
	case backCtx = <-r.backCtx:
	case <-time.After(time.Second):
		t.Fatal("nested lookup never started")
	}
	require.ErrorIs(t, backCtx.Err(), context.Canceled)
}
