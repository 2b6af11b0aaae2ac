package io

import (
	"context"

	mdag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	format "github.com/ipfs/go-ipld-format"
)

// ResolveUnixfsOnce resolves a single hop of a path through a graph in a
// unixfs context. Non-unixfs nodes fall back to plain link lookup.
func ResolveUnixfsOnce(ctx context.Context, ds format.NodeGetter, nd format.Node, names []string) (*format.Link, []string, error) {
	var pbnd *mdag.ProtoNode
	switch n := nd.(type) {
	case *mdag.RawNode:
		return nil, nil, ErrNotADir
	case *mdag.ProtoNode:
		pbnd = n
	default:
		return nd.ResolveLink(names)
	}

	fsn, err := ft.FSNodeFromBytes(pbnd.Data())
	if err != nil {
		// Not a unixfs node, use standard object traversal code
		return nd.ResolveLink(names)
	}

	if !fsn.IsDir() {
		return nil, nil, ErrNotADir
	}

	return nd.ResolveLink(names)
}
