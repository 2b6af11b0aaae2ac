/*
Package coreapi provides direct access to the core commands in IPFS. If you are
embedding IPFS directly in your Go program, this package is the public
interface you should use to read and write files or otherwise control IPFS.

The interfaces implemented here are declared in core/coreiface; the
behaviour every implementation must show is exercised by
core/coreiface/tests.
*/
package coreapi

import (
	"context"
	"errors"

	ipld "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	bserv "github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/core"
	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/exchange"
	"github.com/ipfs/kubo-core/exchange/offline"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/repo"
)

var log = logging.Logger("coreapi")

type CoreAPI struct {
	nctx context.Context

	repo       repo.Repo
	blockstore bstore.GCBlockstore
	baseBlocks bstore.Blockstore
	pinning    pin.Pinner

	blocks   bserv.BlockService
	dag      ipld.DAGService
	exchange exchange.Interface

	namesys namesys.NameSystem

	// ONLY for re-applying options in WithOptions, DO NOT USE ANYWHERE ELSE
	nd         *core.IpfsNode
	parentOpts options.ApiSettings
}

// NewCoreAPI creates new instance of IPFS CoreAPI backed by an IpfsNode.
func NewCoreAPI(n *core.IpfsNode, opts ...options.ApiOption) (coreiface.CoreAPI, error) {
	parentOpts, err := options.ApiOptions()
	if err != nil {
		return nil, err
	}

	return (&CoreAPI{nd: n, parentOpts: *parentOpts}).WithOptions(opts...)
}

// Unixfs returns the UnixfsAPI interface implementation backed by the node
func (api *CoreAPI) Unixfs() coreiface.UnixfsAPI {
	return (*UnixfsAPI)(api)
}

// Block returns the BlockAPI interface implementation backed by the node
func (api *CoreAPI) Block() coreiface.BlockAPI {
	return (*BlockAPI)(api)
}

// Dag returns the DagAPI interface implementation backed by the node
func (api *CoreAPI) Dag() coreiface.APIDagService {
	return &dagAPI{
		api.dag,
		api,
	}
}

// Name returns the NameAPI interface implementation backed by the node
func (api *CoreAPI) Name() coreiface.NameAPI {
	return (*NameAPI)(api)
}

// Object returns the ObjectAPI interface implementation backed by the node
func (api *CoreAPI) Object() coreiface.ObjectAPI {
	return (*ObjectAPI)(api)
}

// Pin returns the PinAPI interface implementation backed by the node
func (api *CoreAPI) Pin() coreiface.PinAPI {
	return (*PinAPI)(api)
}

// WithOptions returns api with global options applied
func (api *CoreAPI) WithOptions(opts ...options.ApiOption) (coreiface.CoreAPI, error) {
	settings := api.parentOpts // make sure to copy
	_, err := options.ApiOptionsTo(&settings, opts...)
	if err != nil {
		return nil, err
	}

	if api.nd == nil {
		return nil, errors.New("cannot apply options to api without node")
	}

	n := api.nd

	subAPI := &CoreAPI{
		nctx: n.Context(),

		repo:       n.Repo,
		blockstore: n.Blockstore,
		baseBlocks: n.BaseBlocks,
		pinning:    n.Pinning,

		blocks:   n.Blocks,
		dag:      n.DAG,
		exchange: n.Exchange,

		namesys: n.Namesys,

		nd:         n,
		parentOpts: settings,
	}

	if settings.Offline {
		subAPI.exchange = offline.Exchange()
		subAPI.blocks = bserv.New(subAPI.blockstore, subAPI.exchange)
		subAPI.dag = dag.NewDAGService(subAPI.blocks)
	}

	return subAPI, nil
}
