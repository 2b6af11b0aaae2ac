package dagutils

import (
	"context"
	"fmt"
	"path"

	dag "github.com/ipfs/kubo-core/merkledag"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// ChangeType denotes type of change in Change
type ChangeType int

// These constants define the changes that can be applied to a DAG.
const (
	Add ChangeType = iota
	Remove
	Mod
)

func (t ChangeType) String() string {
	switch t {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Mod:
		return "mod"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// Change represents a change to a DAG and contains a reference to the old and
// new CIDs.
type Change struct {
	Type   ChangeType
	Path   string
	Before cid.Cid
	After  cid.Cid
}

// String prints a human-friendly line about a change.
func (c *Change) String() string {
	switch c.Type {
	case Add:
		return fmt.Sprintf("Added %s at %s", c.After, c.Path)
	case Remove:
		return fmt.Sprintf("Removed %s from %s", c.Before, c.Path)
	case Mod:
		return fmt.Sprintf("Changed %s to %s at %s", c.Before, c.After, c.Path)
	default:
		panic("nope")
	}
}

// ApplyChange applies the requested changes to the given node in the given dag.
func ApplyChange(ctx context.Context, ds format.DAGService, nd *dag.ProtoNode, cs []*Change) (*dag.ProtoNode, error) {
	e := NewDagEditor(nd, ds)
	for _, c := range cs {
		switch c.Type {
		case Add:
			child, err := ds.Get(ctx, c.After)
			if err != nil {
				return nil, err
			}
			if err := e.InsertNodeAtPath(ctx, c.Path, child, nil); err != nil {
				return nil, err
			}

		case Remove:
			if err := e.RmLink(ctx, c.Path); err != nil {
				return nil, err
			}

		case Mod:
			child, err := ds.Get(ctx, c.After)
			if err != nil {
				return nil, err
			}
			// InsertNodeAtPath replaces the existing link in place
			if err := e.InsertNodeAtPath(ctx, c.Path, child, nil); err != nil {
				return nil, err
			}
		}
	}

	return e.Finalize(ctx, ds)
}

// Diff returns a set of changes that transform node 'a' into node 'b'.
// It only traverses links in the following cases:
// 1. two node's links number are greater than 0.
// 2. both of two nodes are ProtoNode.
// Otherwise, it compares the cid and emits a Mod change object.
func Diff(ctx context.Context, ds format.DAGService, a, b format.Node) ([]*Change, error) {
	if a.Cid().Equals(b.Cid()) {
		return []*Change{}, nil
	}

	cleanA, okA := a.Copy().(*dag.ProtoNode)
	cleanB, okB := b.Copy().(*dag.ProtoNode)

	// Base case where both nodes are leaves, just compare their CIDs.
	if (len(a.Links()) == 0 && len(b.Links()) == 0) || !okA || !okB {
		return []*Change{
			{
				Type:   Mod,
				Before: a.Cid(),
				After:  b.Cid(),
			},
		}, nil
	}

	var out []*Change

	// strip out unchanged stuff
	for _, lnk := range a.Links() {
		l, _, err := b.ResolveLink([]string{lnk.Name})
		if err != nil {
			continue
		}
		if !l.Cid.Equals(lnk.Cid) {
			anode, err := lnk.GetNode(ctx, ds)
			if err != nil {
				return nil, err
			}

			bnode, err := l.GetNode(ctx, ds)
			if err != nil {
				return nil, err
			}

			sub, err := Diff(ctx, ds, anode, bnode)
			if err != nil {
				return nil, err
			}

			for _, subc := range sub {
				subc.Path = path.Join(lnk.Name, subc.Path)
				out = append(out, subc)
			}
		}
		_ = cleanA.RemoveNodeLink(l.Name)
		_ = cleanB.RemoveNodeLink(l.Name)
	}

	for _, lnk := range cleanA.Links() {
		out = append(out, &Change{
			Type:   Remove,
			Path:   lnk.Name,
			Before: lnk.Cid,
		})
	}
	for _, lnk := range cleanB.Links() {
		out = append(out, &Change{
			Type:  Add,
			Path:  lnk.Name,
			After: lnk.Cid,
		})
	}

	// same links, different data
	if len(out) == 0 {
		out = append(out, &Change{Type: Mod, Before: a.Cid(), After: b.Cid()})
	}

	return out, nil
}
