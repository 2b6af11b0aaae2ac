// Package trickle allows to build trickle DAGs.
// In this type of DAG, non-leave nodes are first filled
// with data leaves, and then incorporate "layers" of subtrees
// as additional links.
//
// Each layer is a trickle sub-tree and is limited by an increasing
// maximum depth. Thus, the nodes first layer
// can only hold leaves (depth 1) but subsequent layers can grow deeper.
// By default, this module places 4 nodes per layer (that is, 4 subtrees
// of the same maximum depth before increasing it).
//
// Trickle DAGs are very good for sequentially reading data, as the
// first data leaves are directly reachable from the root and those
// coming next are always nearby. They are
// suited for things like streaming applications.
package trickle

import (
	"context"
	"errors"
	"fmt"

	h "github.com/ipfs/kubo-core/importer/helpers"
	dag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	format "github.com/ipfs/go-ipld-format"
)

// layerRepeat specifies how many times to append a child tree of a
// given depth. Higher values increase the width of a given node, which
// improves seek speeds.
const layerRepeat = 4

// Layout builds a new DAG with the trickle format using the provided
// DagBuilderHelper. See the module's description for a more detailed
// explanation.
func Layout(db *h.DagBuilderHelper) (format.Node, error) {
	newRoot := db.NewFSNodeOverDag(ft.TFile)
	root, fileSize, err := fillTrickleRec(db, newRoot, -1)
	if err != nil {
		return nil, err
	}

	root, err = db.AttachFileAttributes(root, fileSize)
	if err != nil {
		return nil, err
	}
	return root, db.Add(root)
}

// fillTrickleRec creates a trickle (sub-)tree with an optional maximum specified depth
// in the case maxDepth is greater than zero, or with unlimited depth otherwise
// (where the DAG builder will signal the end of data to end the function).
func fillTrickleRec(db *h.DagBuilderHelper, node *h.FSNodeOverDag, maxDepth int) (filledNode format.Node, nodeFileSize uint64, err error) {
	// Always do this, even in the base case
	if err := db.FillNodeLayer(node); err != nil {
		return nil, 0, err
	}

	// For each depth in [1, `maxDepth`) (or without limit if `maxDepth` is -1,
	// initial call from `Layout`) add `layerRepeat` sub-graphs of that depth.
	for depth := 1; maxDepth == -1 || depth < maxDepth; depth++ {
		if db.Done() {
			break
		}

		for repeatIndex := 0; repeatIndex < layerRepeat && !db.Done(); repeatIndex++ {
			childNode, childFileSize, err := fillTrickleRec(db, db.NewFSNodeOverDag(ft.TFile), depth)
			if err != nil {
				return nil, 0, err
			}

			if err := node.AddChild(childNode, childFileSize, db); err != nil {
				return nil, 0, err
			}
		}
	}

	// Get the final `dag.ProtoNode` with the `FSNode` data encoded inside.
	filledNode, err = node.Commit()
	if err != nil {
		return nil, 0, err
	}

	return filledNode, node.FileSize(), nil
}

// Append appends the data in `db` to the dag, using the Trickledag format.
// Only the rightmost spine of base is rewritten; the new root is stored.
// Appending whole chunks yields the same DAG as building it in one go.
func Append(ctx context.Context, basen format.Node, db *h.DagBuilderHelper) (format.Node, error) {
	base, ok := basen.(*dag.ProtoNode)
	if !ok {
		return nil, dag.ErrNotProtobuf
	}

	fsn, err := h.NewFSNFromDag(base.Copy().(*dag.ProtoNode))
	if err != nil {
		return nil, err
	}

	if err := appendRec(ctx, fsn, db, -1); err != nil {
		return nil, err
	}

	root, err := fsn.Commit()
	if err != nil {
		return nil, err
	}
	return root, db.Add(root)
}

// appendRec resumes fillTrickleRec on a node it built earlier with the
// same maxDepth.
func appendRec(ctx context.Context, fsn *h.FSNodeOverDag, db *h.DagBuilderHelper, maxDepth int) error {
	depth, repeat := 1, 0

	if fsn.NumChildren() < db.Maxlinks() {
		// no subtrees yet, the leaf layer comes first
		if err := db.FillNodeLayer(fsn); err != nil {
			return err
		}
	} else if subtrees := fsn.NumChildren() - db.Maxlinks(); subtrees > 0 {
		depth, repeat = trickleDepthInfo(subtrees)

		// only the last subtree can be incomplete
		if err := appendLastChild(ctx, fsn, db, depth); err != nil {
			return err
		}

		repeat++
		if repeat == layerRepeat {
			depth++
			repeat = 0
		}
	}

	for ; (maxDepth == -1 || depth < maxDepth) && !db.Done(); depth++ {
		for ; repeat < layerRepeat && !db.Done(); repeat++ {
			childNode, childFileSize, err := fillTrickleRec(db, db.NewFSNodeOverDag(ft.TFile), depth)
			if err != nil {
				return err
			}

			if err := fsn.AddChild(childNode, childFileSize, db); err != nil {
				return err
			}
		}
		repeat = 0
	}

	_, err := fsn.Commit()
	return err
}

func appendLastChild(ctx context.Context, fsn *h.FSNodeOverDag, db *h.DagBuilderHelper, depth int) error {
	if db.Done() {
		return nil
	}

	last := fsn.NumChildren() - 1
	child, err := fsn.GetChild(ctx, last, db.GetDagServ())
	if err != nil {
		return err
	}

	if err := appendRec(ctx, child, db, depth); err != nil {
		return err
	}

	filled, err := child.Commit()
	if err != nil {
		return err
	}

	fsn.RemoveChild(last, db)
	return fsn.AddChild(filled, child.FileSize(), db)
}

// trickleDepthInfo returns the depth of the last of n subtrees added by
// fillTrickleRec and its index within that depth's layer.
func trickleDepthInfo(n int) (depth int, repeat int) {
	return (n-1)/layerRepeat + 1, (n - 1) % layerRepeat
}

// VerifyParams is used by VerifyTrickleDagStructure
type VerifyParams struct {
	Getter      format.NodeGetter
	Direct      int
	LayerRepeat int
	RawLeaves   bool
}

// VerifyTrickleDagStructure checks that the given dag matches exactly the trickle dag datastructure layout
func VerifyTrickleDagStructure(nd format.Node, p VerifyParams) error {
	return verifyTDagRec(nd, -1, p)
}

// Recursive call for verifying the structure of a trickledag
func verifyTDagRec(n format.Node, depth int, p VerifyParams) error {
	if depth == 0 {
		if len(n.Links()) > 0 {
			return errors.New("expected direct block")
		}
		// zero depth dag is raw data block
		switch nd := n.(type) {
		case *dag.ProtoNode:
			fsn, err := ft.FSNodeFromBytes(nd.Data())
			if err != nil {
				return err
			}

			if fsn.Type() != ft.TRaw {
				return errors.New("expected raw block")
			}

			if p.RawLeaves {
				return errors.New("expected raw leaf, got a protobuf node")
			}

			return nil
		case *dag.RawNode:
			if !p.RawLeaves {
				return errors.New("expected protobuf node as leaf")
			}

			return nil
		default:
			return errors.New("expected ProtoNode or RawNode")
		}
	}

	// Verify this is a branch node
	pbn, ok := n.(*dag.ProtoNode)
	if !ok {
		return dag.ErrNotProtobuf
	}

	fsn, err := ft.FSNodeFromBytes(pbn.Data())
	if err != nil {
		return err
	}

	if fsn.Type() != ft.TFile {
		return fmt.Errorf("expected file as branch node, got: %s", fsn.Type())
	}

	if len(fsn.Data()) > 0 {
		return errors.New("branch node should not have data")
	}

	for i, lnk := range pbn.Links() {
		child, err := lnk.GetNode(context.TODO(), p.Getter)
		if err != nil {
			return err
		}

		if i < p.Direct {
			// Direct blocks
			if err := verifyTDagRec(child, 0, p); err != nil {
				return err
			}
		} else {
			// Recursive trickle dags
			rdepth := ((i - p.Direct) / p.LayerRepeat) + 1
			if rdepth >= depth && depth > 0 {
				return errors.New("child dag was too deep")
			}
			if err := verifyTDagRec(child, rdepth, p); err != nil {
				return err
			}
		}
	}
	return nil
}
