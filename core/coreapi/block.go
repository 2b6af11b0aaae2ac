package coreapi

import (
	"bytes"
	"context"
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	ipld "github.com/ipfs/go-ipld-format"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	caopts "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/tracing"
)

type BlockAPI CoreAPI

type BlockStat struct {
	path path.Path
	size int
}

func (api *BlockAPI) Put(ctx context.Context, src io.Reader, opts ...caopts.BlockPutOption) (coreiface.BlockStat, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.BlockAPI", "Put")
	defer span.End()

	defaults, err := api.core().blockPutDefaults()
	if err != nil {
		return nil, err
	}
	settings, builder, err := caopts.BlockPutOptions(append(defaults, opts...)...)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	bcid, err := builder.Sum(data)
	if err != nil {
		return nil, err
	}

	b, err := blocks.NewBlockWithCid(data, bcid)
	if err != nil {
		return nil, err
	}

	if settings.Pin {
		defer api.blockstore.PinLock(ctx).Unlock(ctx)
	}

	err = api.blocks.AddBlock(ctx, b)
	if err != nil {
		return nil, err
	}

	if settings.Pin {
		if err = api.pinning.PinWithMode(ctx, b.Cid(), pin.Recursive, ""); err != nil {
			return nil, err
		}
		if err := api.pinning.Flush(ctx); err != nil {
			return nil, err
		}
	}

	return &BlockStat{path: path.FromCid(b.Cid()), size: len(data)}, nil
}

func (api *BlockAPI) Get(ctx context.Context, p path.Path) (io.Reader, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.BlockAPI", "Get", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.core().resolveCid(ctx, p)
	if err != nil {
		return nil, err
	}

	b, err := api.blocks.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(b.RawData()), nil
}

// Rm deletes the block under the GC lock so it cannot race with an add
// that is about to pin it.
func (api *BlockAPI) Rm(ctx context.Context, p path.Path, opts ...caopts.BlockRmOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.BlockAPI", "Rm", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.core().resolveCid(ctx, p)
	if err != nil {
		return err
	}

	settings, err := caopts.BlockRmOptions(opts...)
	if err != nil {
		return err
	}

	defer api.blockstore.GCLock(ctx).Unlock(ctx)

	pinned, err := api.pinning.CheckIfPinned(ctx, c)
	if err != nil {
		return err
	}
	for _, pn := range pinned {
		if pn.Pinned() {
			return fmt.Errorf("cannot remove %s: %s", c, pn)
		}
	}

	has, err := api.blockstore.Has(ctx, c)
	if err != nil {
		return err
	}
	if !has {
		if settings.Force {
			return nil
		}
		return ipld.ErrNotFound{Cid: c}
	}

	return api.blockstore.DeleteBlock(ctx, c)
}

func (api *BlockAPI) Stat(ctx context.Context, p path.Path) (coreiface.BlockStat, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.BlockAPI", "Stat", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.core().resolveCid(ctx, p)
	if err != nil {
		return nil, err
	}

	b, err := api.blocks.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}

	return &BlockStat{
		path: path.FromCid(b.Cid()),
		size: len(b.RawData()),
	}, nil
}

func (bs *BlockStat) Size() int {
	return bs.size
}

func (bs *BlockStat) Path() path.Path {
	return bs.path
}

func (api *BlockAPI) core() *CoreAPI {
	return (*CoreAPI)(api)
}
