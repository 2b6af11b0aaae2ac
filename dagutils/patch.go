package dagutils

import (
	"context"
	"errors"
	"fmt"

	dag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// ErrNodeNotFound is returned when the node a patch applies to is not
// available. It wraps the underlying format.ErrNotFound.
var ErrNodeNotFound = errors.New("node not found")

func getProto(ctx context.Context, ds format.NodeGetter, c cid.Cid) (*dag.ProtoNode, error) {
	nd, err := ds.Get(ctx, c)
	if err != nil {
		if format.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", ErrNodeNotFound, err)
		}
		return nil, err
	}
	pn, ok := nd.(*dag.ProtoNode)
	if !ok {
		return nil, dag.ErrNotProtobuf
	}
	return pn, nil
}

// AddLink links child under name in base and returns the new root. name may
// be a slash separated path; with create set, missing intermediate nodes
// are created as empty unixfs directories. An existing link of the same
// name is replaced.
func AddLink(ctx context.Context, ds format.DAGService, base cid.Cid, name string, child cid.Cid, create bool) (cid.Cid, error) {
	root, err := getProto(ctx, ds, base)
	if err != nil {
		return cid.Undef, err
	}

	childnd, err := ds.Get(ctx, child)
	if err != nil {
		if format.IsNotFound(err) {
			return cid.Undef, fmt.Errorf("%w: %w", ErrNodeNotFound, err)
		}
		return cid.Undef, err
	}

	var createfunc func() *dag.ProtoNode
	if create {
		createfunc = ft.EmptyDirNode
	}

	e := NewDagEditor(root, ds)
	if err := e.InsertNodeAtPath(ctx, name, childnd, createfunc); err != nil {
		return cid.Undef, err
	}

	nnode, err := e.Finalize(ctx, ds)
	if err != nil {
		return cid.Undef, err
	}
	return nnode.Cid(), nil
}

// RmLink removes the link called name from base and returns the new root.
func RmLink(ctx context.Context, ds format.DAGService, base cid.Cid, name string) (cid.Cid, error) {
	root, err := getProto(ctx, ds, base)
	if err != nil {
		return cid.Undef, err
	}

	e := NewDagEditor(root, ds)
	if err := e.RmLink(ctx, name); err != nil {
		return cid.Undef, err
	}

	nnode, err := e.Finalize(ctx, ds)
	if err != nil {
		return cid.Undef, err
	}
	return nnode.Cid(), nil
}

// AppendData appends data to the data field of base and returns the new
// root.
func AppendData(ctx context.Context, ds format.DAGService, base cid.Cid, data []byte) (cid.Cid, error) {
	return patchData(ctx, ds, base, func(old []byte) []byte {
		out := make([]byte, 0, len(old)+len(data))
		out = append(out, old...)
		return append(out, data...)
	})
}

// SetData replaces the data field of base and returns the new root.
func SetData(ctx context.Context, ds format.DAGService, base cid.Cid, data []byte) (cid.Cid, error) {
	return patchData(ctx, ds, base, func([]byte) []byte {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	})
}

func patchData(ctx context.Context, ds format.DAGService, base cid.Cid, f func([]byte) []byte) (cid.Cid, error) {
	root, err := getProto(ctx, ds, base)
	if err != nil {
		return cid.Undef, err
	}

	nnode := root.Copy().(*dag.ProtoNode)
	nnode.SetData(f(root.Data()))
	if err := ds.Add(ctx, nnode); err != nil {
		return cid.Undef, err
	}
	return nnode.Cid(), nil
}
