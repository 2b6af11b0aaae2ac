package io

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ipfs/kubo-core/importer/chunk"
	h "github.com/ipfs/kubo-core/importer/helpers"
	"github.com/ipfs/kubo-core/importer/balanced"
	mdag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"
	testu "github.com/ipfs/kubo-core/unixfs/test"

	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func TestBasicRead(t *testing.T) {
	dserv := testu.GetDAGServ()
	inbuf, node := testu.GetRandomNode(t, dserv, 1024, testu.UseProtoBufLeaves)
	ctx := context.Background()

	reader, err := NewDagReader(ctx, node, dserv)
	require.NoError(t, err)
	require.Equal(t, uint64(len(inbuf)), reader.Size())

	outbuf, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, inbuf, outbuf)
}

func TestReadRawLeaves(t *testing.T) {
	dserv := testu.GetDAGServ()
	inbuf, node := testu.GetRandomNode(t, dserv, 4096, testu.UseRawLeavesOpts)

	reader, err := NewDagReader(context.Background(), node, dserv)
	require.NoError(t, err)

	outbuf, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, inbuf, outbuf)
}

func TestReadSingleRawNode(t *testing.T) {
	dserv := testu.GetDAGServ()
	nd := mdag.NewRawNode([]byte("hello world"))
	require.NoError(t, dserv.Add(context.Background(), nd))

	reader, err := NewDagReader(context.Background(), nd, dserv)
	require.NoError(t, err)
	require.Equal(t, uint64(11), reader.Size())

	outbuf, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(outbuf))
}

func TestReadEmptyFile(t *testing.T) {
	dserv := testu.GetDAGServ()
	node := testu.GetEmptyNode(t, dserv, testu.UseProtoBufLeaves)

	reader, err := NewDagReader(context.Background(), node, dserv)
	require.NoError(t, err)
	require.Zero(t, reader.Size())

	n, err := reader.Read(make([]byte, 10))
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
}

func TestSeekAndRead(t *testing.T) {
	dserv := testu.GetDAGServ()
	opts := testu.NodeOpts{ChunkSize: 17, Maxlinks: 3}
	inbuf, node := testu.GetRandomNode(t, dserv, 1000, opts)
	ctx := context.Background()

	reader, err := NewDagReader(ctx, node, dserv)
	require.NoError(t, err)

	for _, off := range []int64{0, 1, 16, 17, 18, 255, 500, 999, 51, 0} {
		pos, err := reader.Seek(off, io.SeekStart)
		require.NoError(t, err)
		require.Equal(t, off, pos)

		out := make([]byte, 1)
		_, err = io.ReadFull(reader, out)
		require.NoError(t, err)
		require.Equal(t, inbuf[off], out[0], "offset %d", off)
	}

	// seeking to the end yields EOF
	_, err = reader.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = reader.Read(make([]byte, 1))
	require.Equal(t, io.EOF, err)
}

func TestSeekRelative(t *testing.T) {
	dserv := testu.GetDAGServ()
	inbuf, node := testu.GetRandomNode(t, dserv, 3000, testu.NodeOpts{ChunkSize: 100, Maxlinks: 4})

	reader, err := NewDagReader(context.Background(), node, dserv)
	require.NoError(t, err)

	head := make([]byte, 150)
	_, err = io.ReadFull(reader, head)
	require.NoError(t, err)
	require.Equal(t, inbuf[:150], head)

	pos, err := reader.Seek(250, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(400), pos)

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, inbuf[400:], rest)

	pos, err = reader.Seek(-10, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(2990), pos)
	tail, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, inbuf[2990:], tail)

	_, err = reader.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrSeekNegative)
}

func TestWriteTo(t *testing.T) {
	dserv := testu.GetDAGServ()
	inbuf, node := testu.GetRandomNode(t, dserv, 10000, testu.NodeOpts{ChunkSize: 256, Maxlinks: 5})

	reader, err := NewDagReader(context.Background(), node, dserv)
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := reader.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(len(inbuf)), n)
	require.Equal(t, inbuf, out.Bytes())
}

func TestReadCancelled(t *testing.T) {
	dserv := testu.GetDAGServ()
	inbuf, node := testu.GetRandomNode(t, dserv, 5000, testu.UseProtoBufLeaves)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader, err := NewDagReader(ctx, node, dserv)
	require.NoError(t, err)

	first := make([]byte, 500)
	n, err := reader.Read(first)
	require.NoError(t, err)
	require.Equal(t, 500, n)
	require.Equal(t, inbuf[:500], first)

	cancel()
	n, err = reader.Read(make([]byte, 500))
	require.Zero(t, n)
	require.ErrorIs(t, err, ErrCancelled)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestReadMissingBlock(t *testing.T) {
	dserv := testu.GetDAGServ()
	_, node := testu.GetRandomNode(t, dserv, 2000, testu.UseProtoBufLeaves)
	ctx := context.Background()
	require.NoError(t, dserv.Remove(ctx, node.Links()[1].Cid))

	reader, err := NewDagReader(ctx, node, dserv)
	require.NoError(t, err)
	_, err = io.ReadAll(reader)
	require.True(t, format.IsNotFound(err))
}

func TestDirectoryNotReadable(t *testing.T) {
	_, err := NewDagReader(context.Background(), ft.EmptyDirNode(), testu.GetDAGServ())
	require.ErrorIs(t, err, ErrIsDir)
}

func TestReaderMetadata(t *testing.T) {
	dserv := testu.GetDAGServ()
	mtime := time.Unix(1600000000, 0)
	dbp := h.DagBuilderParams{
		Dagserv:     dserv,
		FileMode:    0o644,
		FileModTime: mtime,
	}
	db, err := dbp.New(context.Background(), chunk.NewSizeSplitter(strings.NewReader("hello world"), 5))
	require.NoError(t, err)
	nd, err := balanced.Layout(db)
	require.NoError(t, err)

	reader, err := NewDagReader(context.Background(), nd, dserv)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), reader.Mode())
	require.True(t, mtime.Equal(reader.ModTime()))

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
}
