package helpers

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/ipfs/kubo-core/importer/chunk"
	dag "github.com/ipfs/kubo-core/merkledag"
	mdtest "github.com/ipfs/kubo-core/merkledag/test"
	ft "github.com/ipfs/kubo-core/unixfs"

	humanize "github.com/dustin/go-humanize"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestCalculateSizes(t *testing.T) {
	increments := func(a, b int) []int {
		ints := []int{}
		for ; a <= b; a *= 2 {
			ints = append(ints, a)
		}
		return ints
	}

	layers := 7
	dataBlockSizes := increments(1<<12, 1<<18)
	linkBlockSizes := increments(1<<12, 1<<14)

	t.Logf("rough link size:  %d", roughLinkSize)
	for _, dbs := range dataBlockSizes {
		for _, lbs := range linkBlockSizes {
			lpb := lbs / roughLinkSize
			for l := 1; l < layers; l++ {
				total := uint64(math.Pow(float64(lpb), float64(l))) * uint64(dbs)
				t.Logf("data %s, links %d per block, layer %d: %s",
					humanize.IBytes(uint64(dbs)), lpb, l, humanize.Bytes(total))
			}
		}
	}

	require.Equal(t, 174, DefaultLinksPerBlock)
}

func newHelper(t *testing.T, ctx context.Context, data []byte, params DagBuilderParams) *DagBuilderHelper {
	if params.Dagserv == nil {
		params.Dagserv = mdtest.Mock()
	}
	db, err := params.New(ctx, chunk.NewSizeSplitter(bytes.NewReader(data), 4))
	require.NoError(t, err)
	return db
}

func TestMaxlinksDefault(t *testing.T) {
	db := newHelper(t, context.Background(), nil, DagBuilderParams{})
	require.Equal(t, DefaultLinksPerBlock, db.Maxlinks())
}

func TestFillNodeLayer(t *testing.T) {
	db := newHelper(t, context.Background(), []byte("0123456789"), DagBuilderParams{Maxlinks: 2})

	node := db.NewFSNodeOverDag(ft.TFile)
	require.NoError(t, db.FillNodeLayer(node))
	require.Equal(t, 2, node.NumChildren())
	require.Equal(t, uint64(8), node.FileSize())
	require.False(t, db.Done())

	rest := db.NewFSNodeOverDag(ft.TFile)
	require.NoError(t, db.FillNodeLayer(rest))
	require.Equal(t, 1, rest.NumChildren())
	require.True(t, db.Done())
}

func TestRemoveChild(t *testing.T) {
	db := newHelper(t, context.Background(), []byte("aaaabbbbcc"), DagBuilderParams{})

	node := db.NewFSNodeOverDag(ft.TFile)
	require.NoError(t, db.FillNodeLayer(node))
	require.Equal(t, uint64(10), node.FileSize())

	node.RemoveChild(1, db)
	nd, err := node.Commit()
	require.NoError(t, err)
	require.Len(t, nd.Links(), 2)
	require.Equal(t, uint64(6), node.FileSize())
}

func TestCancelledBuilder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := newHelper(t, ctx, []byte("some data"), DagBuilderParams{})
	cancel()

	require.False(t, db.Done())
	_, err := db.Next()
	require.ErrorIs(t, err, context.Canceled)
}

func TestRawLeafBuilder(t *testing.T) {
	db := newHelper(t, context.Background(), nil, DagBuilderParams{RawLeaves: true})
	nd, err := db.NewLeafNode([]byte("leaf"), ft.TRaw)
	require.NoError(t, err)
	require.IsType(t, &dag.RawNode{}, nd)
	require.Equal(t, uint64(cid.Raw), nd.Cid().Type())
}

func TestLeafSizeLimit(t *testing.T) {
	db := newHelper(t, context.Background(), nil, DagBuilderParams{})
	_, err := db.NewLeafNode(make([]byte, BlockSizeLimit+1), ft.TRaw)
	require.ErrorIs(t, err, ErrSizeLimitExceeded)
}

func TestAttachFileAttributes(t *testing.T) {
	mtime := time.Unix(1234, 0)
	db := newHelper(t, context.Background(), nil, DagBuilderParams{RawLeaves: true, FileMode: 0o600, FileModTime: mtime})
	require.True(t, db.HasFileAttributes())

	leaf, err := db.NewLeafNode([]byte("data"), ft.TFile)
	require.NoError(t, err)

	root, err := db.AttachFileAttributes(leaf, 4)
	require.NoError(t, err)
	require.Len(t, root.Links(), 1)
	require.Equal(t, leaf.Cid(), root.Links()[0].Cid)

	fsn, err := ft.ExtractFSNode(root)
	require.NoError(t, err)
	require.Equal(t, uint64(4), fsn.FileSize())
	require.True(t, mtime.Equal(fsn.ModTime()))
}
