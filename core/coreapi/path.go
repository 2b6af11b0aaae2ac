package coreapi

import (
	"context"

	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ipfs/kubo-core/core"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/tracing"
)

// ResolveNode resolves the path `p` using Unixfs resolver, gets and returns the
// resolved Node.
func (api *CoreAPI) ResolveNode(ctx context.Context, p path.Path) (ipld.Node, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI", "ResolveNode", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.resolveCid(ctx, p)
	if err != nil {
		return nil, err
	}

	node, err := api.dag.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ResolvePath resolves the path `p` using Unixfs resolver, returns the
// resolved path.
func (api *CoreAPI) ResolvePath(ctx context.Context, p path.Path) (path.Path, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI", "ResolvePath", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.resolveCid(ctx, p)
	if err != nil {
		return "", err
	}
	return path.FromCid(c), nil
}

// resolveCid returns the cid the path ends at. A path that is just a key
// is answered without touching the blockstore.
func (api *CoreAPI) resolveCid(ctx context.Context, p path.Path) (cid.Cid, error) {
	ipath, err := path.ParsePath(p.String())
	if err != nil {
		return cid.Undef, err
	}

	ipath, err = core.ResolveIPNS(ctx, api.namesys, ipath)
	if err != nil {
		return cid.Undef, err
	}

	if ipath.IsJustAKey() {
		root, _, err := path.SplitAbsPath(ipath)
		return root, err
	}

	r := path.NewBasicResolver(api.dag)
	return r.ResolveToLastNode(ctx, ipath)
}
