package dagutils

import (
	"context"
	"testing"

	dag "github.com/ipfs/kubo-core/merkledag"
	mdtest "github.com/ipfs/kubo-core/merkledag/test"
	ft "github.com/ipfs/kubo-core/unixfs"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func TestAddLink(t *testing.T) {
	ctx := context.Background()
	ds := mdtest.Mock()
	fishnode := dag.NodeWithData([]byte("fishcakes!"))
	require.NoError(t, ds.Add(ctx, fishnode))

	nd := new(dag.ProtoNode)
	nnode, err := addLink(ctx, ds, nd, "fish", fishnode)
	require.NoError(t, err)

	fnprime, err := nnode.GetLinkedNode(ctx, ds, "fish")
	require.NoError(t, err)
	require.Equal(t, fishnode.Cid(), fnprime.Cid())
}

func assertNodeAtPath(t *testing.T, ds format.DAGService, root *dag.ProtoNode, pth string, exp cid.Cid) {
	t.Helper()
	ctx := context.Background()
	var cur format.Node = root
	for _, e := range splitPath(pth) {
		nxt, err := cur.(*dag.ProtoNode).GetLinkedNode(ctx, ds, e)
		require.NoError(t, err)
		cur = nxt
	}
	require.Equal(t, exp, cur.Cid())
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	return out
}

func TestInsertNode(t *testing.T) {
	build := func() *Editor {
		e := NewDagEditor(new(dag.ProtoNode), nil)

		testInsert(t, e, "a", "anodefortesting", false, "")
		testInsert(t, e, "a/b", "data", false, "")
		testInsert(t, e, "a/b/c/d/e", "blah", false, "no link by that name")
		testInsert(t, e, "a/b/c/d/e", "foo", true, "")
		testInsert(t, e, "a/b/c/d/f", "baz", true, "")
		testInsert(t, e, "a/b/c/d/f", "bar", true, "")

		testInsert(t, e, "", "bar", true, "cannot create link with no name")
		testInsert(t, e, "////", "slashes", true, "cannot create link with no name")
		return e
	}

	e := build()
	require.Equal(t, build().GetNode().Cid(), e.GetNode().Cid(), "inserting nodes gives a stable root")

	// the replaced link keeps its position
	ctx := context.Background()
	d, err := e.GetNode().GetLinkedProtoNode(ctx, e.tmp, "a")
	require.NoError(t, err)
	for _, name := range []string{"b", "c", "d"} {
		d, err = d.GetLinkedProtoNode(ctx, e.tmp, name)
		require.NoError(t, err)
	}
	links := d.Links()
	require.Len(t, links, 2)
	require.Equal(t, "e", links[0].Name)
	require.Equal(t, "f", links[1].Name)
	require.Equal(t, dag.NodeWithData([]byte("bar")).Cid(), links[1].Cid)
}

func TestEditorLeavesOriginal(t *testing.T) {
	ctx := context.Background()
	ds := mdtest.Mock()

	root := new(dag.ProtoNode)
	before := root.Cid()

	child := dag.NodeWithData([]byte("child"))
	require.NoError(t, ds.Add(ctx, child))

	e := NewDagEditor(root, ds)
	require.NoError(t, e.InsertNodeAtPath(ctx, "x", child, nil))
	nnode, err := e.Finalize(ctx, ds)
	require.NoError(t, err)

	require.Equal(t, before, root.Cid())
	require.NotEqual(t, before, nnode.Cid())

	got, err := ds.Get(ctx, nnode.Cid())
	require.NoError(t, err)
	require.Len(t, got.Links(), 1)
}

func TestRmLinkPath(t *testing.T) {
	ctx := context.Background()
	ds := mdtest.Mock()
	e := NewDagEditor(new(dag.ProtoNode), ds)

	leaf := dag.NodeWithData([]byte("leaf"))
	require.NoError(t, e.InsertNodeAtPath(ctx, "a/b", leaf, ft.EmptyDirNode))
	require.NoError(t, e.InsertNodeAtPath(ctx, "a/c", leaf, ft.EmptyDirNode))
	require.NoError(t, e.RmLink(ctx, "a/b"))
	require.ErrorIs(t, e.RmLink(ctx, "a/b"), dag.ErrLinkNotFound)

	nnode, err := e.Finalize(ctx, ds)
	require.NoError(t, err)
	a, err := nnode.GetLinkedProtoNode(ctx, ds, "a")
	require.NoError(t, err)
	require.Len(t, a.Links(), 1)
	require.Equal(t, "c", a.Links()[0].Name)
}

func testInsert(t *testing.T, e *Editor, path, data string, create bool, experr string) {
	t.Helper()
	ctx := context.Background()
	child := dag.NodeWithData([]byte(data))
	require.NoError(t, e.tmp.Add(ctx, child))

	var c func() *dag.ProtoNode
	if create {
		c = func() *dag.ProtoNode {
			return &dag.ProtoNode{}
		}
	}

	err := e.InsertNodeAtPath(ctx, path, child, c)
	if experr != "" {
		require.EqualError(t, err, experr)
		return
	}
	require.NoError(t, err, "inserting %s", path)
	assertNodeAtPath(t, e.tmp, e.root, path, child.Cid())
}
