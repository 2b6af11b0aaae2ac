/*
Package core implements the IpfsNode object and related methods.

Packages underneath core/ provide a (relatively) stable, low-level API
to carry out most IPFS-related tasks. The typed, user-facing API lives in
core/coreapi, declared by the interfaces in core/coreiface.
*/
package core

import (
	"context"
	"io"

	ipld "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	bserv "github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/core/node"
	"github.com/ipfs/kubo-core/exchange"
	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/repo"
)

var log = logging.Logger("core")

// IpfsNode is IPFS Core module. It represents an IPFS instance.
type IpfsNode struct {
	// Self
	Repo repo.Repo

	// Local node
	Pinning    pin.Pinner         // the pinning manager
	Blockstore bstore.GCBlockstore // the block store (lower level)
	BaseBlocks node.BaseBlocks     // the raw blockstore, no GC locking
	GCLocker   bstore.GCLocker     // the locker used to protect the blockstore during gc
	Blocks     bserv.BlockService  // the block service, get/add blocks.
	DAG        ipld.DAGService     // the merkle dag service, get/add objects.
	Resolver   *path.Resolver      // the path resolution system

	Exchange exchange.Interface  // the block exchange
	Namesys  namesys.NameSystem // the name system, resolves paths from public keys.

	ctx context.Context

	stop func() error
}

var _ io.Closer = (*IpfsNode)(nil)

// Close calls Close() on the App object
func (n *IpfsNode) Close() error {
	return n.stop()
}

// Context returns the IpfsNode context
func (n *IpfsNode) Context() context.Context {
	if n.ctx == nil {
		n.ctx = context.TODO()
	}
	return n.ctx
}

// nodeParams lists what the fx graph hands over to the IpfsNode.
type nodeParams struct {
	fx.In

	Repo       repo.Repo
	Pinning    pin.Pinner
	Blockstore bstore.GCBlockstore
	BaseBlocks node.BaseBlocks
	GCLocker   bstore.GCLocker
	Blocks     bserv.BlockService
	DAG        ipld.DAGService
	Resolver   *path.Resolver
	Exchange   exchange.Interface
	Namesys    namesys.NameSystem
}

func (n *IpfsNode) populate(p nodeParams) {
	n.Repo = p.Repo
	n.Pinning = p.Pinning
	n.Blockstore = p.Blockstore
	n.BaseBlocks = p.BaseBlocks
	n.GCLocker = p.GCLocker
	n.Blocks = p.Blocks
	n.DAG = p.DAG
	n.Resolver = p.Resolver
	n.Exchange = p.Exchange
	n.Namesys = p.Namesys
}
