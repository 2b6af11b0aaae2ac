package core

import (
	"context"
	"fmt"

	ipld "github.com/ipfs/go-ipld-format"

	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/tracing"
)

// ResolveIPNS resolves /ipns paths. If the path is not an /ipns path it is
// returned unchanged once validated; otherwise the name is resolved through
// nsys and the remaining segments are appended to the result.
func ResolveIPNS(ctx context.Context, nsys namesys.NameSystem, p path.Path) (path.Path, error) {
	ctx, span := tracing.Span(ctx, "Core", "ResolveIPNS")
	defer span.End()

	if err := p.IsValid(); err != nil {
		return "", err
	}
	if p.Namespace() != path.IPNSNamespace {
		return p, nil
	}
	if nsys == nil {
		return "", fmt.Errorf("%w: no name system to resolve %s", namesys.ErrResolveFailed, p)
	}

	resolved, err := nsys.Resolve(ctx, p.String())
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Resolve resolves the given path by parsing out /ipns/ entries and then
// going through the /ipfs/ entries and returning the final node.
func Resolve(ctx context.Context, nsys namesys.NameSystem, r *path.Resolver, p path.Path) (ipld.Node, error) {
	ctx, span := tracing.Span(ctx, "Core", "Resolve")
	defer span.End()

	p, err := ResolveIPNS(ctx, nsys, p)
	if err != nil {
		return nil, err
	}

	// ok, we have an IPFS path now (or what we'll treat as one)
	return r.ResolvePath(ctx, p)
}
