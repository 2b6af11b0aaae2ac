package node

import (
	"context"
	"fmt"

	"github.com/ipfs/go-datastore"
	format "github.com/ipfs/go-ipld-format"
	"go.uber.org/fx"

	blockstore "github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/exchange"
	"github.com/ipfs/kubo-core/exchange/offline"
	"github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
)

// BlockService creates new blockservice which provides an interface to fetch content-addressable blocks
func BlockService(lc fx.Lifecycle, bs blockstore.Blockstore, rem exchange.Interface) blockservice.BlockService {
	bsvc := blockservice.New(bs, rem)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return bsvc.Close()
		},
	})

	return bsvc
}

// Pinning creates new pinner which tells GC which blocks should be kept
func Pinning(mctx MetricsCtx, lc fx.Lifecycle, bstore blockstore.Blockstore, dstore datastore.Datastore) (pin.Pinner, error) {
	// pin bookkeeping only reads local blocks
	internalDag := merkledag.NewDAGService(blockservice.New(bstore, offline.Exchange()))
	ctx := lifecycleCtx(mctx, lc)
	pinning, err := pin.New(ctx, dstore, internalDag)
	if err != nil {
		return nil, fmt.Errorf("loading pins: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pinning.Flush(ctx)
		},
	})

	return pinning, nil
}

// Dag creates new DAGService
func Dag(bs blockservice.BlockService) format.DAGService {
	return merkledag.NewDAGService(bs)
}

// Resolver walks paths through the dag service
func Resolver(ds format.DAGService) *path.Resolver {
	return path.NewBasicResolver(ds)
}

// Exchange returns the injected exchange, or an offline one
func Exchange(cfg *BuildCfg) exchange.Interface {
	if cfg.Exchange != nil {
		return cfg.Exchange
	}
	return offline.Exchange()
}

// Namesys returns the injected name system, or one keeping its records in
// the repo datastore
func Namesys(cfg *BuildCfg, dstore datastore.Datastore) (namesys.NameSystem, error) {
	if cfg.NameSystem != nil {
		return cfg.NameSystem, nil
	}
	return namesys.NewNameSystem(dstore, namesys.DefaultResolverCacheSize)
}
