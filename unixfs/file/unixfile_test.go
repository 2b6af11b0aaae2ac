package unixfile

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	dag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"
	uio "github.com/ipfs/kubo-core/unixfs/io"
	testu "github.com/ipfs/kubo-core/unixfs/test"

	"github.com/ipfs/boxo/files"
	"github.com/stretchr/testify/require"
)

func TestFileNode(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	data, nd := testu.GetRandomNode(t, ds, 5000, testu.UseRawLeavesOpts)

	n, err := NewUnixfsFile(ctx, ds, nd)
	require.NoError(t, err)
	defer n.Close()

	f := files.ToFile(n)
	require.NotNil(t, f)

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, len(data), size)

	out, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDirectoryNode(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()

	a := testu.GetNode(t, ds, []byte("alpha"), testu.UseProtoBufLeaves)
	b := testu.GetNode(t, ds, []byte("beta"), testu.UseProtoBufLeaves)

	dir := uio.NewDirectory(ds)
	require.NoError(t, dir.AddChild(ctx, "b", b))
	require.NoError(t, dir.AddChild(ctx, "a", a))
	mtime := time.Unix(1700000000, 0)
	dir.SetStat(0o750, mtime)
	dnd, err := dir.GetNode()
	require.NoError(t, err)
	require.NoError(t, ds.Add(ctx, dnd))

	n, err := NewUnixfsFile(ctx, ds, dnd)
	require.NoError(t, err)
	d := files.ToDir(n)
	require.NotNil(t, d)
	require.Equal(t, os.FileMode(0o750), d.Mode())
	require.True(t, mtime.Equal(d.ModTime()))

	var names []string
	contents := map[string]string{}
	it := d.Entries()
	for it.Next() {
		names = append(names, it.Name())
		body, err := io.ReadAll(files.ToFile(it.Node()))
		require.NoError(t, err)
		contents[it.Name()] = string(body)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"b", "a"}, names)
	require.Equal(t, map[string]string{"a": "alpha", "b": "beta"}, contents)
}

func TestMissingChild(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	other := testu.GetDAGServ()

	child := testu.GetNode(t, other, []byte("elsewhere"), testu.UseProtoBufLeaves)
	dir := uio.NewDirectory(ds)
	require.NoError(t, dir.AddChild(ctx, "gone", child))
	dnd, err := dir.GetNode()
	require.NoError(t, err)

	n, err := NewUnixfsFile(ctx, ds, dnd)
	require.NoError(t, err)

	it := files.ToDir(n).Entries()
	require.False(t, it.Next())
	require.Error(t, it.Err())
}

func TestSymlinkNode(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	nd := dag.NodeWithData(ft.SymlinkData("../target"))

	n, err := NewUnixfsFile(ctx, ds, nd)
	require.NoError(t, err)
	sl, ok := n.(*files.Symlink)
	require.True(t, ok)
	require.Equal(t, "../target", sl.Target)
}
