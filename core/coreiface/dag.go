package iface

import (
	"context"

	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	ipld "github.com/ipfs/go-ipld-format"
)

// APIDagService extends ipld.DAGService
type APIDagService interface {
	ipld.DAGService

	// Pinning returns special NodeAdder which recursively pins added nodes
	Pinning() ipld.NodeAdder

	// Put stores nd and returns its path.
	Put(ctx context.Context, nd ipld.Node, opts ...options.DagPutOption) (path.Path, error)

	// Tree returns the paths below p, depth first in link order, up to the
	// given depth. Named links extend the parent path; an unnamed link
	// restarts at /ipfs/<cid> of the child.
	Tree(ctx context.Context, p path.Path, opts ...options.DagTreeOption) ([]path.Path, error)
}
