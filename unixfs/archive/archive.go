// Package archive streams unixfs DAGs as tar archives, optionally gzipped.
package archive

import (
	"bufio"
	"context"
	"io"
	"path"

	unixfile "github.com/ipfs/kubo-core/unixfs/file"
	uio "github.com/ipfs/kubo-core/unixfs/io"

	"github.com/ipfs/boxo/files"
	format "github.com/ipfs/go-ipld-format"
	"github.com/klauspost/compress/gzip"
)

// DefaultBufSize is the buffer size for gets. for now, 1MiB, which is ~4 blocks.
var DefaultBufSize = 1048576

type identityWriteCloser struct {
	w io.Writer
}

func (i *identityWriteCloser) Write(p []byte) (int, error) {
	return i.w.Write(p)
}

func (i *identityWriteCloser) Close() error {
	return nil
}

// DagArchive is equivalent to `ipfs getdag $hash | maybe_tar | maybe_gzip`.
// A file that is neither archived nor compressed is still wrapped in tar,
// which is then the transport format.
func DagArchive(ctx context.Context, nd format.Node, name string, dag format.DAGService, archive bool, compression int) (io.Reader, error) {
	cleaned := path.Clean(name)
	_, filename := path.Split(cleaned)

	// need to connect a writer to a reader
	piper, pipew := io.Pipe()
	checkErrAndClosePipe := func(err error) bool {
		if err != nil {
			_ = pipew.CloseWithError(err)
			return true
		}
		return false
	}

	// use a buffered writer to parallelize task
	bufw := bufio.NewWriterSize(pipew, DefaultBufSize)

	// compression determines whether to use gzip compression.
	maybeGzw, err := newMaybeGzWriter(bufw, compression)
	if checkErrAndClosePipe(err) {
		return nil, err
	}

	closeGzwAndPipe := func() {
		if err := maybeGzw.Close(); checkErrAndClosePipe(err) {
			return
		}
		if err := bufw.Flush(); checkErrAndClosePipe(err) {
			return
		}
		_ = pipew.Close() // everything seems to be ok.
	}

	if !archive && compression != gzip.NoCompression {
		// the case when the node is a file
		r, err := uio.NewDagReader(ctx, nd, dag)
		if checkErrAndClosePipe(err) {
			return nil, err
		}

		go func() {
			if _, err := r.WriteTo(maybeGzw); checkErrAndClosePipe(err) {
				return
			}
			closeGzwAndPipe() // everything seems to be ok
		}()
		return piper, nil
	}

	// the case for 1. archive, and 2. not archived and not compressed, in
	// which tar is used anyway as a transport format
	f, err := unixfile.NewUnixfsFile(ctx, dag, nd)
	if checkErrAndClosePipe(err) {
		return nil, err
	}

	w, err := files.NewTarWriter(maybeGzw)
	if checkErrAndClosePipe(err) {
		return nil, err
	}

	go func() {
		defer f.Close()
		// write all the nodes recursively
		if err := w.WriteFile(f, filename); checkErrAndClosePipe(err) {
			return
		}
		if err := w.Close(); checkErrAndClosePipe(err) {
			return
		}
		closeGzwAndPipe() // everything seems to be ok
	}()

	return piper, nil
}

func newMaybeGzWriter(w io.Writer, compression int) (io.WriteCloser, error) {
	if compression != gzip.NoCompression {
		return gzip.NewWriterLevel(w, compression)
	}
	return &identityWriteCloser{w}, nil
}
