// Package dagutils edits and compares dag-pb graphs.
package dagutils

import (
	"context"
	"errors"
	"strings"

	bserv "github.com/ipfs/kubo-core/blockservice"
	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	offline "github.com/ipfs/kubo-core/exchange/offline"
	dag "github.com/ipfs/kubo-core/merkledag"

	ds "github.com/ipfs/go-datastore"
	syncds "github.com/ipfs/go-datastore/sync"
	format "github.com/ipfs/go-ipld-format"
)

// Editor represents a ProtoNode tree editor and provides methods to
// modify it.
type Editor struct {
	root *dag.ProtoNode

	// tmp is a temporary in memory (for now) dagstore for all of the
	// intermediary nodes to be stored in
	tmp format.DAGService

	// src is the dagstore with *all* of the data on it, it is used to pull
	// nodes from for modification (nil is a valid value)
	src format.DAGService
}

// NewMemoryDagService returns a new, thread-safe in-memory DAGService.
func NewMemoryDagService() format.DAGService {
	// build mem-datastore for editor's intermediary nodes
	bs := bstore.NewBlockstore(syncds.MutexWrap(ds.NewMapDatastore()))
	bsrv := bserv.New(bs, offline.Exchange())
	return dag.NewDAGService(bsrv)
}

// NewDagEditor returns an ProtoNode editor.
//
// * root is the node to be modified; it is copied, never mutated
// * source is the dagstore to pull nodes from (optional)
func NewDagEditor(root *dag.ProtoNode, source format.DAGService) *Editor {
	return &Editor{
		root: root.Copy().(*dag.ProtoNode),
		tmp:  NewMemoryDagService(),
		src:  source,
	}
}

// GetNode returns the a copy of the root node being edited.
func (e *Editor) GetNode() *dag.ProtoNode {
	return e.root.Copy().(*dag.ProtoNode)
}

// GetDagService returns the DAGService used by this editor.
func (e *Editor) GetDagService() format.DAGService {
	return e.tmp
}

func addLink(ctx context.Context, ds format.DAGService, root *dag.ProtoNode, childname string, childnd format.Node) (*dag.ProtoNode, error) {
	if childname == "" {
		return nil, errors.New("cannot create link with no name")
	}

	// ensure that the node we are adding is in the dagservice
	if err := ds.Add(ctx, childnd); err != nil {
		return nil, err
	}

	lnk, err := format.MakeLink(childnd)
	if err != nil {
		return nil, err
	}

	// an existing link of that name is replaced where it stands
	root.SetLinkInPlace(childname, lnk)

	if err := ds.Add(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// InsertNodeAtPath inserts a new node in the tree and replaces the current root with the new one.
func (e *Editor) InsertNodeAtPath(ctx context.Context, pth string, toinsert format.Node, create func() *dag.ProtoNode) error {
	splpath := strings.Split(pth, "/")
	nd, err := e.insertNodeAtPath(ctx, e.root, splpath, toinsert, create)
	if err != nil {
		return err
	}
	e.root = nd
	return nil
}

func (e *Editor) insertNodeAtPath(ctx context.Context, root *dag.ProtoNode, path []string, toinsert format.Node, create func() *dag.ProtoNode) (*dag.ProtoNode, error) {
	if len(path) == 1 {
		return addLink(ctx, e.tmp, root, path[0], toinsert)
	}

	nd, err := e.getLinked(ctx, root, path[0])
	if err != nil {
		// if 'create' is true, we create directories on the way down as needed
		if errors.Is(err, dag.ErrLinkNotFound) && create != nil {
			nd = create()
		} else {
			return nil, err
		}
	}

	ndprime, err := e.insertNodeAtPath(ctx, nd, path[1:], toinsert, create)
	if err != nil {
		return nil, err
	}

	return addLink(ctx, e.tmp, root, path[0], ndprime)
}

// getLinked prefers nodes already rewritten by this editor.
func (e *Editor) getLinked(ctx context.Context, root *dag.ProtoNode, name string) (*dag.ProtoNode, error) {
	nd, err := root.GetLinkedProtoNode(ctx, e.tmp, name)
	if err == nil || !format.IsNotFound(err) || e.src == nil {
		return nd, err
	}
	return root.GetLinkedProtoNode(ctx, e.src, name)
}

// RmLink removes the link with the given name and updates the root node of
// the editor.
func (e *Editor) RmLink(ctx context.Context, pth string) error {
	splpath := strings.Split(pth, "/")
	nd, err := e.rmLink(ctx, e.root, splpath)
	if err != nil {
		return err
	}
	e.root = nd
	return nil
}

func (e *Editor) rmLink(ctx context.Context, root *dag.ProtoNode, path []string) (*dag.ProtoNode, error) {
	if len(path) == 1 {
		// base case, remove node in question
		if err := root.RemoveNodeLink(path[0]); err != nil {
			return nil, err
		}

		if err := e.tmp.Add(ctx, root); err != nil {
			return nil, err
		}

		return root, nil
	}

	nd, err := e.getLinked(ctx, root, path[0])
	if err != nil {
		return nil, err
	}

	nnode, err := e.rmLink(ctx, nd, path[1:])
	if err != nil {
		return nil, err
	}

	return addLink(ctx, e.tmp, root, path[0], nnode)
}

// Finalize writes the new DAG to the given DAGService and returns the modified
// root node.
func (e *Editor) Finalize(ctx context.Context, ds format.DAGService) (*dag.ProtoNode, error) {
	nd := e.GetNode()
	err := copyDag(ctx, nd, e.tmp, ds)
	return nd, err
}

// copyDag copies the nodes rewritten by the editor. Anything missing from
// the temporary store was not modified and is assumed present in the target.
func copyDag(ctx context.Context, nd format.Node, from, to format.DAGService) error {
	err := to.Add(ctx, nd)
	if err != nil {
		return err
	}

	for _, lnk := range nd.Links() {
		child, err := lnk.GetNode(ctx, from)
		if err != nil {
			if format.IsNotFound(err) {
				continue
			}
			return err
		}

		err = copyDag(ctx, child, from, to)
		if err != nil {
			return err
		}
	}
	return nil
}
