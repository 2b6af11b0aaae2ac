package io

import (
	"context"
	"os"
	"testing"
	"time"

	mdag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"
	testu "github.com/ipfs/kubo-core/unixfs/test"

	"github.com/stretchr/testify/require"
)

func TestEmptyDirectory(t *testing.T) {
	dir := NewDirectory(testu.GetDAGServ())
	nd, err := dir.GetNode()
	require.NoError(t, err)
	require.Equal(t, "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn", nd.Cid().String())
}

func TestDirectoryLastWriteWins(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testu.GetDAGServ())

	a := mdag.NewRawNode([]byte("a"))
	b := mdag.NewRawNode([]byte("b"))
	c := mdag.NewRawNode([]byte("c"))

	require.NoError(t, dir.AddChild(ctx, "x", a))
	require.NoError(t, dir.AddChild(ctx, "y", b))
	require.NoError(t, dir.AddChild(ctx, "x", c))

	links := dir.Links()
	require.Len(t, links, 2)
	require.Equal(t, "x", links[0].Name)
	require.Equal(t, c.Cid(), links[0].Cid)
	require.Equal(t, "y", links[1].Name)
}

func TestDirectoryInsertionOrder(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testu.GetDAGServ())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, dir.AddChild(ctx, name, mdag.NewRawNode([]byte(name))))
	}

	nd, err := dir.GetNode()
	require.NoError(t, err)

	var names []string
	for _, l := range nd.Links() {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestDirectoryFindAndRemove(t *testing.T) {
	ctx := context.Background()
	dserv := testu.GetDAGServ()
	dir := NewDirectory(dserv)

	child := mdag.NewRawNode([]byte("child"))
	require.NoError(t, dserv.Add(ctx, child))
	require.NoError(t, dir.AddChild(ctx, "child", child))

	got, err := dir.Find(ctx, "child")
	require.NoError(t, err)
	require.Equal(t, child.Cid(), got.Cid())

	_, err = dir.Find(ctx, "missing")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, dir.RemoveChild(ctx, "child"))
	require.ErrorIs(t, dir.RemoveChild(ctx, "child"), os.ErrNotExist)
	require.Empty(t, dir.Links())
}

func TestDirectoryRoundtrip(t *testing.T) {
	ctx := context.Background()
	dserv := testu.GetDAGServ()
	dir := NewDirectory(dserv)
	dir.SetStat(0o755, time.Unix(1700000000, 5))
	require.NoError(t, dir.AddChild(ctx, "f", mdag.NewRawNode([]byte("f"))))

	nd, err := dir.GetNode()
	require.NoError(t, err)

	loaded, err := NewDirectoryFromNode(dserv, nd)
	require.NoError(t, err)
	again, err := loaded.GetNode()
	require.NoError(t, err)
	require.Equal(t, nd.Cid(), again.Cid())

	fsn, err := ft.ExtractFSNode(nd)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), fsn.Mode())

	plain, err := NewDirectory(dserv).GetNode()
	require.NoError(t, err)
	require.NotEqual(t, plain.Cid(), nd.Cid())
}

func TestDirectoryFromFile(t *testing.T) {
	_, err := NewDirectoryFromNode(testu.GetDAGServ(), ft.EmptyFileNode())
	require.ErrorIs(t, err, ErrNotADir)
}
