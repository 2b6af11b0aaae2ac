package tests

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	opt "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	ipld "github.com/ipfs/go-ipld-format"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

var (
	pbCidV0 = "QmZULkCELmmk5XNfCgTnCyFgAVxBRBXyDHGGMVoLFLiXEN"              // dag-pb
	pbCid   = "bafybeiffndsajwhk3lwjewwdxqntmjm4b5wxaaanokonsggenkbw6slwk4" // dag-pb
	rawCid  = "bafkreiffndsajwhk3lwjewwdxqntmjm4b5wxaaanokonsggenkbw6slwk4" // raw bytes
)

// dag-pb
func pbBlock() io.Reader {
	return bytes.NewReader([]byte{10, 12, 8, 2, 18, 6, 104, 101, 108, 108, 111, 10, 24, 6})
}

func (tp *TestSuite) TestBlock(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Block() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestBlockPut (get raw CIDv1)", tp.TestBlockPut)
	t.Run("TestBlockPutFormat: dag-pb → CIDv0", tp.TestBlockPutFormatV0)
	t.Run("TestBlockPutFormat: dag-pb CIDv1", tp.TestBlockPutFormatDagPb)
	t.Run("TestBlockPutInvalidV0", tp.TestBlockPutInvalidV0)
	t.Run("TestBlockPutHash", tp.TestBlockPutHash)
	t.Run("TestBlockGet", tp.TestBlockGet)
	t.Run("TestBlockRm", tp.TestBlockRm)
	t.Run("TestBlockRmPinned", tp.TestBlockRmPinned)
	t.Run("TestBlockStat", tp.TestBlockStat)
	t.Run("TestBlockPin", tp.TestBlockPin)
}

// when no opts are passed, produced CID has 'raw' codec
func (tp *TestSuite) TestBlockPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, pbBlock())
	require.NoError(t, err)
	requireCid(t, rawCid, res.Path())
}

func (tp *TestSuite) TestBlockPutFormatV0(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, pbBlock(), opt.Block.Format("dag-pb"))
	require.NoError(t, err)
	require.Equal(t, "/ipfs/"+pbCidV0, res.Path().String())
}

func (tp *TestSuite) TestBlockPutFormatDagPb(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, pbBlock(), opt.Block.Format("dag-pb"), opt.Block.CidVersion(1))
	require.NoError(t, err)
	requireCid(t, pbCid, res.Path())
}

func (tp *TestSuite) TestBlockPutInvalidV0(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := api.Block().Put(ctx, pbBlock(), opt.Block.CidVersion(0))
	require.Error(t, err)
}

func (tp *TestSuite) TestBlockPutHash(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, pbBlock(), opt.Block.Hash("sha2-512"))
	require.NoError(t, err)

	c, _, err := path.SplitAbsPath(res.Path())
	require.NoError(t, err)
	require.EqualValues(t, 1, c.Prefix().Version)
	require.EqualValues(t, mh.SHA2_512, c.Prefix().MhType)

	_, err = api.Block().Put(ctx, pbBlock(), opt.Block.Hash("no-such-hash"))
	require.Error(t, err)
}

func (tp *TestSuite) TestBlockGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, strings.NewReader(`Hello`), opt.Block.Format("raw"))
	require.NoError(t, err)

	r, err := api.Block().Get(ctx, res.Path())
	require.NoError(t, err)

	d, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Hello", string(d))

	rp, err := api.ResolvePath(ctx, res.Path())
	require.NoError(t, err)
	require.Equal(t, res.Path(), rp)
}

func (tp *TestSuite) TestBlockRm(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, strings.NewReader(`Hello`), opt.Block.Format("raw"))
	require.NoError(t, err)

	_, err = api.Block().Get(ctx, res.Path())
	require.NoError(t, err)

	require.NoError(t, api.Block().Rm(ctx, res.Path()))

	_, err = api.Block().Get(ctx, res.Path())
	require.True(t, ipld.IsNotFound(err), "unexpected error: %v", err)

	err = api.Block().Rm(ctx, res.Path())
	require.True(t, ipld.IsNotFound(err), "unexpected error: %v", err)

	require.NoError(t, api.Block().Rm(ctx, res.Path(), opt.Block.Force(true)))
}

func (tp *TestSuite) TestBlockRmPinned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, strings.NewReader(`pinned`), opt.Block.Pin(true))
	require.NoError(t, err)

	err = api.Block().Rm(ctx, res.Path())
	require.ErrorContains(t, err, "pinned")

	// force does not override a pin
	err = api.Block().Rm(ctx, res.Path(), opt.Block.Force(true))
	require.ErrorContains(t, err, "pinned")

	_, err = api.Block().Get(ctx, res.Path())
	require.NoError(t, err)
}

func (tp *TestSuite) TestBlockStat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	res, err := api.Block().Put(ctx, strings.NewReader(`Hello`), opt.Block.Format("raw"))
	require.NoError(t, err)

	stat, err := api.Block().Stat(ctx, res.Path())
	require.NoError(t, err)
	require.Equal(t, res.Path(), stat.Path())
	require.Equal(t, len("Hello"), stat.Size())
}

func (tp *TestSuite) TestBlockPin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := api.Block().Put(ctx, strings.NewReader(`Hello`), opt.Block.Format("raw"))
	require.NoError(t, err)

	pins, err := accPins(ctx, api)
	require.NoError(t, err)
	require.Empty(t, pins)

	res, err := api.Block().Put(
		ctx,
		strings.NewReader(`Hello`),
		opt.Block.Pin(true),
		opt.Block.Format("raw"),
	)
	require.NoError(t, err)

	pins, err = accPins(ctx, api)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	require.Equal(t, "recursive", pins[0].Type())
	require.Equal(t, res.Path(), pins[0].Path())
}
