// Package testu builds small unixfs DAGs for tests.
package testu

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/kubo-core/importer/chunk"
	h "github.com/ipfs/kubo-core/importer/helpers"
	"github.com/ipfs/kubo-core/importer/trickle"
	mdagmock "github.com/ipfs/kubo-core/merkledag/test"

	format "github.com/ipfs/go-ipld-format"
	"github.com/ipfs/go-test/random"
	"github.com/stretchr/testify/require"
)

// GetDAGServ returns a mock DAGService.
func GetDAGServ() format.DAGService {
	return mdagmock.Mock()
}

// UseRawLeaves selects the leaf format of the built DAG.
type UseRawLeaves bool

const (
	ProtoBufLeaves UseRawLeaves = false
	RawLeaves      UseRawLeaves = true
)

// NodeOpts is used by GetNode, GetEmptyNode and GetRandomNode
type NodeOpts struct {
	ChunkSize int64
	RawLeaves UseRawLeaves
	Maxlinks  int
}

// UseProtoBufLeaves is the default NodeOpts: 500 byte protobuf leaves.
var UseProtoBufLeaves = NodeOpts{ChunkSize: 500}

// UseRawLeavesOpts builds with 500 byte raw leaves.
var UseRawLeavesOpts = NodeOpts{ChunkSize: 500, RawLeaves: RawLeaves}

// GetNode returns a unixfs file node with the specified data, using the
// trickle layout.
func GetNode(t testing.TB, dserv format.DAGService, data []byte, opts NodeOpts) format.Node {
	t.Helper()
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 500
	}
	dbp := h.DagBuilderParams{
		Dagserv:   dserv,
		Maxlinks:  opts.Maxlinks,
		RawLeaves: bool(opts.RawLeaves),
	}

	db, err := dbp.New(context.Background(), chunk.NewSizeSplitter(bytes.NewReader(data), opts.ChunkSize))
	require.NoError(t, err)

	node, err := trickle.Layout(db)
	require.NoError(t, err)
	return node
}

// GetEmptyNode returns an empty unixfs file node.
func GetEmptyNode(t testing.TB, dserv format.DAGService, opts NodeOpts) format.Node {
	return GetNode(t, dserv, []byte{}, opts)
}

// GetRandomNode returns a random unixfs file node along with its content.
func GetRandomNode(t testing.TB, dserv format.DAGService, size int64, opts NodeOpts) ([]byte, format.Node) {
	buf := random.Bytes(int(size))
	node := GetNode(t, dserv, buf, opts)
	return buf, node
}
