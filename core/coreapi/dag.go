package coreapi

import (
	"context"

	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	caopts "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/tracing"
)

type dagAPI struct {
	ipld.DAGService

	core *CoreAPI
}

type pinningAdder CoreAPI

func (adder *pinningAdder) Add(ctx context.Context, nd ipld.Node) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinningAdder", "Add", trace.WithAttributes(attribute.String("node", nd.String())))
	defer span.End()
	defer adder.blockstore.PinLock(ctx).Unlock(ctx)

	if err := adder.dag.Add(ctx, nd); err != nil {
		return err
	}

	if err := adder.pinning.PinWithMode(ctx, nd.Cid(), pin.Recursive, ""); err != nil {
		return err
	}

	return adder.pinning.Flush(ctx)
}

func (adder *pinningAdder) AddMany(ctx context.Context, nds []ipld.Node) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinningAdder", "AddMany", trace.WithAttributes(attribute.Int("nodes.count", len(nds))))
	defer span.End()
	defer adder.blockstore.PinLock(ctx).Unlock(ctx)

	if err := adder.dag.AddMany(ctx, nds); err != nil {
		return err
	}

	cids := cid.NewSet()

	for _, nd := range nds {
		c := nd.Cid()
		if cids.Visit(c) {
			if err := adder.pinning.PinWithMode(ctx, c, pin.Recursive, ""); err != nil {
				return err
			}
		}
	}

	return adder.pinning.Flush(ctx)
}

func (api *dagAPI) Pinning() ipld.NodeAdder {
	return (*pinningAdder)(api.core)
}

func (api *dagAPI) Put(ctx context.Context, nd ipld.Node, opts ...caopts.DagPutOption) (path.Path, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.DagAPI", "Put", trace.WithAttributes(attribute.String("node", nd.Cid().String())))
	defer span.End()

	settings, err := caopts.DagPutOptions(opts...)
	if err != nil {
		return "", err
	}

	var adder ipld.NodeAdder = api.DAGService
	if settings.Pin {
		adder = api.Pinning()
	}
	if err := adder.Add(ctx, nd); err != nil {
		return "", err
	}
	return path.FromCid(nd.Cid()), nil
}

func (api *dagAPI) Tree(ctx context.Context, p path.Path, opts ...caopts.DagTreeOption) ([]path.Path, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.DagAPI", "Tree", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	settings, err := caopts.DagTreeOptions(opts...)
	if err != nil {
		return nil, err
	}

	root, err := api.core.ResolveNode(ctx, p)
	if err != nil {
		return nil, err
	}

	var out []path.Path
	var walk func(nd ipld.Node, base path.Path, depth int) error
	walk = func(nd ipld.Node, base path.Path, depth int) error {
		if settings.Depth >= 0 && depth >= settings.Depth {
			return nil
		}
		for _, lnk := range nd.Links() {
			child := path.FromCid(lnk.Cid)
			if lnk.Name != "" {
				child, err = path.Join(base, lnk.Name)
				if err != nil {
					return err
				}
			}
			out = append(out, child)

			cnd, err := lnk.GetNode(ctx, api.DAGService)
			if err != nil {
				return err
			}
			if err := walk(cnd, child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, path.FromCid(root.Cid()), 0); err != nil {
		return nil, err
	}
	return out, nil
}
