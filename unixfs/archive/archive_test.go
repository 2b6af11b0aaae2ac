package archive

import (
	"archive/tar"
	"context"
	"io"
	"strings"
	"testing"

	uio "github.com/ipfs/kubo-core/unixfs/io"
	testu "github.com/ipfs/kubo-core/unixfs/test"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	out := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		name := strings.TrimSuffix(hdr.Name, "/")
		if hdr.Typeflag == tar.TypeDir {
			out[name] = "<dir>"
			continue
		}
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[name] = string(body)
	}
}

func TestArchiveDirectory(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()

	payload, big := testu.GetRandomNode(t, ds, 3000, testu.UseRawLeavesOpts)
	small := testu.GetNode(t, ds, []byte("small"), testu.UseProtoBufLeaves)

	dir := uio.NewDirectory(ds)
	require.NoError(t, dir.AddChild(ctx, "big.bin", big))
	require.NoError(t, dir.AddChild(ctx, "small.txt", small))
	dnd, err := dir.GetNode()
	require.NoError(t, err)
	require.NoError(t, ds.Add(ctx, dnd))

	for _, level := range []int{gzip.NoCompression, gzip.DefaultCompression} {
		r, err := DagArchive(ctx, dnd, "/ipfs/root", ds, true, level)
		require.NoError(t, err)

		if level != gzip.NoCompression {
			gzr, err := gzip.NewReader(r)
			require.NoError(t, err)
			r = gzr
		}

		got := readTar(t, r)
		require.Equal(t, map[string]string{
			"root":           "<dir>",
			"root/big.bin":   string(payload),
			"root/small.txt": "small",
		}, got)
	}
}

func TestCompressedFileWithoutArchive(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	payload, nd := testu.GetRandomNode(t, ds, 10000, testu.UseProtoBufLeaves)

	r, err := DagArchive(ctx, nd, "file", ds, false, gzip.BestSpeed)
	require.NoError(t, err)

	gzr, err := gzip.NewReader(r)
	require.NoError(t, err)
	out, err := io.ReadAll(gzr)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestPlainFileIsTarred(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	nd := testu.GetNode(t, ds, []byte("hello"), testu.UseProtoBufLeaves)

	r, err := DagArchive(ctx, nd, "greeting.txt", ds, false, gzip.NoCompression)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"greeting.txt": "hello"}, readTar(t, r))
}

func TestArchiveMissingBlock(t *testing.T) {
	ctx := context.Background()
	ds := testu.GetDAGServ()
	other := testu.GetDAGServ()
	_, child := testu.GetRandomNode(t, other, 2000, testu.UseProtoBufLeaves)

	dir := uio.NewDirectory(ds)
	require.NoError(t, dir.AddChild(ctx, "lost", child))
	dnd, err := dir.GetNode()
	require.NoError(t, err)

	r, err := DagArchive(ctx, dnd, "root", ds, true, gzip.NoCompression)
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.Error(t, err)
}
