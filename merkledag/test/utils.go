// Package mdutils provides in-memory DAG services for tests.
package mdutils

import (
	"context"
	"strconv"

	"github.com/ipfs/kubo-core/blocks/blockstore"
	bsrv "github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/exchange/offline"
	dag "github.com/ipfs/kubo-core/merkledag"

	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	format "github.com/ipfs/go-ipld-format"
)

// Mock returns a new thread-safe, mock DAGService.
func Mock() format.DAGService {
	return dag.NewDAGService(Bserv())
}

// Bserv returns a new, thread-safe, mock BlockService.
func Bserv() bsrv.BlockService {
	bstore := blockstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	return bsrv.New(bstore, offline.Exchange())
}

// DAGGenerator generates BasicBlocks on demand.
// For each instance of DAGGenerator, each new DAG is different from the
// previous ones.
type DAGGenerator struct {
	seq  int
	last *dag.ProtoNode
}

// NewDAGGenerator returns an object capable of
// producing IPLD DAGs.
func NewDAGGenerator() *DAGGenerator {
	return &DAGGenerator{}
}

// MakeDagNode generate a balanced DAG with the given fanout and depth, and add the blocks to the adder.
// This adder can be for example a DAGService.Add.
func (dg *DAGGenerator) MakeDagNode(adder func(ctx context.Context, node format.Node) error, fanout uint, depth uint) (c cid.Cid, allCids []cid.Cid, err error) {
	c, _, allCids, err = dg.generate(adder, fanout, depth)
	return c, allCids, err
}

func (dg *DAGGenerator) generate(adder func(ctx context.Context, node format.Node) error, fanout uint, depth uint) (c cid.Cid, size uint64, allCids []cid.Cid, err error) {
	if depth == 0 {
		panic("depth should be at least 1")
	}
	if depth == 1 {
		c, size, err = dg.encodeBlock(nil)
		if err != nil {
			return cid.Undef, 0, nil, err
		}
		if err := adder(context.Background(), dg.last); err != nil {
			return cid.Undef, 0, nil, err
		}
		return c, size, []cid.Cid{c}, nil
	}

	links := make([]*format.Link, 0, fanout)
	for i := uint(0); i < fanout; i++ {
		childCid, childSize, childCids, err := dg.generate(adder, fanout, depth-1)
		if err != nil {
			return cid.Undef, 0, nil, err
		}
		links = append(links, &format.Link{Cid: childCid, Size: childSize})
		allCids = append(allCids, childCids...)
	}

	c, size, err = dg.encodeBlock(links)
	if err != nil {
		return cid.Undef, 0, nil, err
	}
	if err := adder(context.Background(), dg.last); err != nil {
		return cid.Undef, 0, nil, err
	}
	allCids = append(allCids, c)
	return c, size, allCids, nil
}

func (dg *DAGGenerator) encodeBlock(links []*format.Link) (cid.Cid, uint64, error) {
	nd := dag.NodeWithData([]byte(strconv.Itoa(dg.seq)))
	dg.seq++
	if err := nd.SetLinks(links); err != nil {
		return cid.Undef, 0, err
	}
	size, err := nd.Size()
	if err != nil {
		return cid.Undef, 0, err
	}
	dg.last = nd
	return nd.Cid(), size, nil
}
