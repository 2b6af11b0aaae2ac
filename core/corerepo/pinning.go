/*
Package corerepo provides pinning and garbage collection for local
IPFS block services.

IPFS nodes will keep local copies of any object that have either been
added or requested locally.  Not all of these objects are worth
preserving forever though, so the node adminstrator can pin objects
they want to keep and unpin objects that they don't care about.

Garbage collection sweeps iterate through the local block store
removing objects that aren't pinned, which frees storage space for new
objects.
*/
package corerepo

import (
	"context"
	"fmt"

	"github.com/ipfs/kubo-core/core"
	"github.com/ipfs/kubo-core/path"

	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
)

// Pin resolves every path and pins the nodes they end at under name. The
// pin set is flushed once all of them are pinned.
func Pin(ctx context.Context, n *core.IpfsNode, paths []string, recursive bool, name string) ([]cid.Cid, error) {
	dagnodes := make([]ipld.Node, 0, len(paths))
	for _, fpath := range paths {
		p, err := path.ParsePath(fpath)
		if err != nil {
			return nil, err
		}
		dagnode, err := core.Resolve(ctx, n.Namesys, n.Resolver, p)
		if err != nil {
			return nil, fmt.Errorf("pin: %w", err)
		}
		dagnodes = append(dagnodes, dagnode)
	}

	defer n.Blockstore.PinLock(ctx).Unlock(ctx)

	out := make([]cid.Cid, 0, len(dagnodes))
	for _, dagnode := range dagnodes {
		if err := n.Pinning.Pin(ctx, dagnode, recursive, name); err != nil {
			return nil, fmt.Errorf("pin: %w", err)
		}
		out = append(out, dagnode.Cid())
	}

	if err := n.Pinning.Flush(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Unpin removes the pins on the nodes the paths end at.
func Unpin(ctx context.Context, n *core.IpfsNode, paths []string, recursive bool) ([]cid.Cid, error) {
	unpinned := make([]cid.Cid, 0, len(paths))
	for _, fpath := range paths {
		p, err := path.ParsePath(fpath)
		if err != nil {
			return nil, err
		}

		p, err = core.ResolveIPNS(ctx, n.Namesys, p)
		if err != nil {
			return nil, err
		}
		k, err := n.Resolver.ResolveToLastNode(ctx, p)
		if err != nil {
			return nil, err
		}

		if err := n.Pinning.Unpin(ctx, k, recursive); err != nil {
			return nil, err
		}
		unpinned = append(unpinned, k)
	}

	if err := n.Pinning.Flush(ctx); err != nil {
		return nil, err
	}
	return unpinned, nil
}
