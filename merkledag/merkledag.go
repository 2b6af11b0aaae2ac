// Package merkledag implements the IPFS Merkle DAG data structures.
package merkledag

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/kubo-core/blockservice"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("merkledag")

// FetchGraphConcurrency is total number of concurrent fetches that
// EnumerateChildrenAsync will start at a time.
var FetchGraphConcurrency = 32

// NewDAGService constructs a new DAGService (using the default implementation).
// Note that the default implementation is also an ipld.LinkGetter.
func NewDAGService(bs blockservice.BlockService) *dagService {
	return &dagService{Blocks: bs}
}

// dagService is an IPFS Merkle DAG service.
//   - the root is virtual (like a forest)
//   - stores nodes' data in a BlockService
type dagService struct {
	Blocks blockservice.BlockService
}

var (
	_ format.DAGService = (*dagService)(nil)
	_ format.LinkGetter = (*dagService)(nil)
)

// Add adds a node to the dagService, storing the block in the BlockService
func (n *dagService) Add(ctx context.Context, nd format.Node) error {
	if n == nil {
		return fmt.Errorf("dagService is nil")
	}

	return n.Blocks.AddBlock(ctx, nd)
}

func (n *dagService) AddMany(ctx context.Context, nds []format.Node) error {
	blks := make([]blocks.Block, len(nds))
	for i, nd := range nds {
		blks[i] = nd
	}
	return n.Blocks.AddBlocks(ctx, blks)
}

// Get retrieves a node from the dagService, fetching the block in the BlockService
func (n *dagService) Get(ctx context.Context, c cid.Cid) (format.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("dagService is nil")
	}

	b, err := n.Blocks.GetBlock(ctx, c)
	if err != nil {
		if format.IsNotFound(err) {
			return nil, format.ErrNotFound{Cid: c}
		}
		return nil, fmt.Errorf("failed to get block for %s: %w", c, err)
	}

	return DecodeBlock(b)
}

// GetLinks return the links for the node, the node doesn't necessarily have
// to exist locally.
func (n *dagService) GetLinks(ctx context.Context, c cid.Cid) ([]*format.Link, error) {
	if c.Type() == cid.Raw {
		return nil, nil
	}
	node, err := n.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	return node.Links(), nil
}

func (n *dagService) Remove(ctx context.Context, c cid.Cid) error {
	return n.Blocks.DeleteBlock(ctx, c)
}

// RemoveMany removes multiple nodes from the DAG. It will likely be faster than
// removing them individually.
//
// This operation is not atomic. If it returns an error, some nodes may or may
// not have been removed.
func (n *dagService) RemoveMany(ctx context.Context, cids []cid.Cid) error {
	for _, c := range cids {
		if err := n.Blocks.DeleteBlock(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// GetMany gets many nodes from the DAG at once.
//
// This method may not return all requested nodes (and may or may not return an
// error indicating that it failed to do so. It is up to the caller to verify
// that it received all nodes.
func (n *dagService) GetMany(ctx context.Context, keys []cid.Cid) <-chan *format.NodeOption {
	out := make(chan *format.NodeOption, len(keys))
	go func() {
		defer close(out)
		for _, c := range keys {
			nd, err := n.Get(ctx, c)
			select {
			case out <- &format.NodeOption{Node: nd, Err: err}:
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

// GetLinks is the type of function passed to the EnumerateChildren function(s)
// for getting the children of an IPLD node.
type GetLinks func(context.Context, cid.Cid) ([]*format.Link, error)

// GetLinksWithDAG returns a GetLinks function that tries to use the given
// NodeGetter as a LinkGetter to get the children of a given IPLD node. This may
// allow us to traverse the DAG without actually loading and parsing the node in
// question (if we already have the links cached).
func GetLinksWithDAG(ng format.NodeGetter) GetLinks {
	return func(ctx context.Context, c cid.Cid) ([]*format.Link, error) {
		return format.GetLinks(ctx, ng, c)
	}
}

// FetchGraph fetches all nodes that are children of the given node.
func FetchGraph(ctx context.Context, root cid.Cid, serv format.DAGService) error {
	visit := cid.NewSet().Visit
	visit(root)
	return EnumerateChildrenAsync(ctx, GetLinksWithDAG(serv), root, visit)
}

// EnumerateChildren will walk the dag below the given root node and add all
// unseen children to the passed in set.
func EnumerateChildren(ctx context.Context, getLinks GetLinks, root cid.Cid, visit func(cid.Cid) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	links, err := getLinks(ctx, root)
	if err != nil {
		return err
	}
	for _, lnk := range links {
		c := lnk.Cid
		if visit(c) {
			if err := EnumerateChildren(ctx, getLinks, c, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnumerateChildrenAsync is equivalent to EnumerateChildren *except* that it
// fetches children in parallel, at most FetchGraphConcurrency at a time.
//
// NOTE: It *does not* make multiple concurrent calls to the passed `visit` function.
func EnumerateChildrenAsync(ctx context.Context, getLinks GetLinks, c cid.Cid, visit func(cid.Cid) bool) error {
	var visitlk sync.Mutex
	visitOnce := func(c cid.Cid) bool {
		visitlk.Lock()
		defer visitlk.Unlock()
		return visit(c)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(FetchGraphConcurrency)

	var walk func(cid.Cid) error
	walk = func(c cid.Cid) error {
		links, err := getLinks(gctx, c)
		if err != nil {
			return err
		}
		for _, lnk := range links {
			child := lnk.Cid
			if !visitOnce(child) {
				continue
			}
			// run inline when the group is saturated, a blocked Go call
			// from inside a worker could deadlock.
			if !g.TryGo(func() error { return walk(child) }) {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}

	g.Go(func() error { return walk(c) })
	if err := g.Wait(); err != nil {
		log.Debugf("enumerate children of %s: %s", c, err)
		return err
	}
	return nil
}
