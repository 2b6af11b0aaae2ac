// Package balanced builds balanced DAGs: every leaf (a chunk of file data)
// sits at the same distance from the root, and each internal node holds at
// most Maxlinks children. More data is accommodated by growing the depth.
//
// Internal nodes are UnixFS File nodes. Leaves are either UnixFS nodes or raw
// nodes. A file that fits in a single chunk is that single leaf, which is the
// only case where the root is not a UnixFS File node with links.
//
//	                                                +-------------+
//	                                                |   Root 4    |
//	                                                +-------------+
//	                                                      |
//	                           +--------------------------+----------------------------+
//	                           |                                                       |
//	                     +-------------+                                         +-------------+
//	                     |   Node 2    |                                         |   Node 5    |
//	                     +-------------+                                         +-------------+
//	                           |                                                       |
//	             +-------------+-------------+                           +-------------+
//	             |                           |                           |
//	      +-------------+             +-------------+             +-------------+
//	      |   Node 1    |             |   Node 3    |             |   Node 6    |
//	      +-------------+             +-------------+             +-------------+
//	             |                           |                           |
//	      +------+------+             +------+------+             +------+
//	      |             |             |             |             |
//	  +=========+   +=========+   +=========+   +=========+   +=========+
//	  | Chunk 1 |   | Chunk 2 |   | Chunk 3 |   | Chunk 4 |   | Chunk 5 |
//	  +=========+   +=========+   +=========+   +=========+   +=========+
package balanced

import (
	"errors"

	h "github.com/ipfs/kubo-core/importer/helpers"
	ft "github.com/ipfs/kubo-core/unixfs"

	format "github.com/ipfs/go-ipld-format"
)

// Layout builds a balanced DAG layout. Leaves are added to a root until it
// is full, then a new root is created with the old one as its first child and
// filled by fillNodeRec with subtrees of the old root's depth. This repeats
// until the splitter runs dry.
//
// Every node is added to the DAGService when its subtree is complete, a parent
// only after all of its children.
func Layout(db *h.DagBuilderHelper) (format.Node, error) {
	if db.Done() {
		// No data, return just an empty node.
		root, err := db.NewLeafNode(nil, ft.TFile)
		if err != nil {
			return nil, err
		}
		return finish(db, root, 0)
	}

	// The first `root` will be a single leaf node with data
	// (corner case), after that subsequent `root` nodes will
	// always be internal nodes (with a depth > 0) that can
	// be handled by the loop.
	root, fileSize, err := db.NewLeafDataNode(ft.TFile)
	if err != nil {
		return nil, err
	}

	// Each iteration of this loop creates a new `root` node, with
	// the previous `root` as the first child; the rest of its children
	// are filled by fillNodeRec.
	for depth := 1; !db.Done(); depth++ {
		// Add the old `root` as a child of the `newRoot`.
		newRoot := db.NewFSNodeOverDag(ft.TFile)
		if err := newRoot.AddChild(root, fileSize, db); err != nil {
			return nil, err
		}

		// Fill the `newRoot` (that has the old `root` already as child)
		// and make it the current `root` for the next iteration (when
		// it will become "old").
		root, fileSize, err = fillNodeRec(db, newRoot, depth)
		if err != nil {
			return nil, err
		}
	}

	return finish(db, root, fileSize)
}

func finish(db *h.DagBuilderHelper, root format.Node, fileSize uint64) (format.Node, error) {
	root, err := db.AttachFileAttributes(root, fileSize)
	if err != nil {
		return nil, err
	}
	return root, db.Add(root)
}

// fillNodeRec fills the internal node with children until it holds
// Maxlinks of them or data runs out: leaves when depth is 1, otherwise
// recursively filled internal nodes of depth-1. A nil node starts a fresh
// one. It returns the committed node and the file size it covers.
func fillNodeRec(db *h.DagBuilderHelper, node *h.FSNodeOverDag, depth int) (filledNode format.Node, nodeFileSize uint64, err error) {
	if depth < 1 {
		return nil, 0, errors.New("attempt to fillNode at depth < 1")
	}

	if node == nil {
		node = db.NewFSNodeOverDag(ft.TFile)
	}

	// Child node created on every iteration to add to parent `node`.
	// It can be a leaf node or another internal node.
	var childNode format.Node
	// File size from the child node needed to update the `FSNode`
	// in `node` when adding the child.
	var childFileSize uint64

	// While we have room and there is data available to be added.
	for node.NumChildren() < db.Maxlinks() && !db.Done() {
		if depth == 1 {
			// Base case: add leaf node with data.
			childNode, childFileSize, err = db.NewLeafDataNode(ft.TFile)
			if err != nil {
				return nil, 0, err
			}
		} else {
			// Recursion case: create an internal node to in turn keep
			// descending in the DAG and adding child nodes to it.
			childNode, childFileSize, err = fillNodeRec(db, nil, depth-1)
			if err != nil {
				return nil, 0, err
			}
		}

		if err = node.AddChild(childNode, childFileSize, db); err != nil {
			return nil, 0, err
		}
	}

	nodeFileSize = node.FileSize()

	// Get the final `dag.ProtoNode` with the `FSNode` data encoded inside.
	filledNode, err = node.Commit()
	if err != nil {
		return nil, 0, err
	}

	return filledNode, nodeFileSize, nil
}
