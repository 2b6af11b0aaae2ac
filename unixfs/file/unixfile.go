// Package unixfile exposes unixfs DAGs as boxo files.Node trees.
package unixfile

import (
	"context"
	"errors"
	"os"
	"time"

	dag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"
	uio "github.com/ipfs/kubo-core/unixfs/io"

	"github.com/ipfs/boxo/files"
	format "github.com/ipfs/go-ipld-format"
)

// Number of directory entries fetched ahead of the consumer.
const prefetchFiles = 4

type ufsDirectory struct {
	ctx   context.Context
	dserv format.DAGService
	dir   *uio.Directory
	size  int64
}

type ufsIterator struct {
	ctx   context.Context
	files chan *format.Link
	dserv format.DAGService

	curName string
	curFile files.Node

	err   error
	errCh chan error
}

func (it *ufsIterator) Name() string {
	return it.curName
}

func (it *ufsIterator) Node() files.Node {
	return it.curFile
}

func (it *ufsIterator) Next() bool {
	if it.err != nil {
		return false
	}

	var l *format.Link
	var ok bool
	for !ok {
		if it.files == nil && it.errCh == nil {
			return false
		}
		select {
		case l, ok = <-it.files:
			if !ok {
				it.files = nil
			}
		case err := <-it.errCh:
			it.errCh = nil
			it.err = err

			if err != nil {
				return false
			}
		}
	}

	it.curFile = nil

	nd, err := l.GetNode(it.ctx, it.dserv)
	if err != nil {
		it.err = err
		return false
	}

	it.curName = l.Name
	it.curFile, it.err = NewUnixfsFile(it.ctx, it.dserv, nd)
	return it.err == nil
}

func (it *ufsIterator) Err() error {
	return it.err
}

func (d *ufsDirectory) Close() error {
	return nil
}

func (d *ufsDirectory) Entries() files.DirIterator {
	fileCh := make(chan *format.Link, prefetchFiles)
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.dir.ForEachLink(d.ctx, func(link *format.Link) error {
			select {
			case fileCh <- link:
			case <-d.ctx.Done():
				return d.ctx.Err()
			}
			return nil
		})

		close(errCh)
		close(fileCh)
	}()

	return &ufsIterator{
		ctx:   d.ctx,
		files: fileCh,
		errCh: errCh,
		dserv: d.dserv,
	}
}

func (d *ufsDirectory) Size() (int64, error) {
	return d.size, nil
}

func (d *ufsDirectory) Mode() os.FileMode {
	return d.dir.Mode()
}

func (d *ufsDirectory) ModTime() time.Time {
	return d.dir.ModTime()
}

type ufsFile struct {
	uio.DagReader
}

func (f *ufsFile) Size() (int64, error) {
	return int64(f.DagReader.Size()), nil
}

func newUnixfsDir(ctx context.Context, dserv format.DAGService, nd *dag.ProtoNode) (files.Directory, error) {
	dir, err := uio.NewDirectoryFromNode(dserv, nd)
	if err != nil {
		return nil, err
	}

	size, err := nd.Size()
	if err != nil {
		return nil, err
	}

	return &ufsDirectory{
		ctx:   ctx,
		dserv: dserv,
		dir:   dir,
		size:  int64(size),
	}, nil
}

// NewUnixfsFile returns a files.Node for nd: a files.Directory for unixfs
// directories, a symlink for unixfs symlinks and a files.File otherwise.
func NewUnixfsFile(ctx context.Context, dserv format.DAGService, nd format.Node) (files.Node, error) {
	switch dn := nd.(type) {
	case *dag.ProtoNode:
		fsn, err := ft.FSNodeFromBytes(dn.Data())
		if err != nil {
			return nil, err
		}
		switch fsn.Type() {
		case ft.TDirectory:
			return newUnixfsDir(ctx, dserv, dn)
		case ft.THAMTShard:
			return nil, errors.New("sharded directories are not supported")
		case ft.TSymlink:
			return files.NewLinkFile(string(fsn.Data()), nil), nil
		}
	case *dag.RawNode:
	default:
		return nil, errors.New("unknown node type")
	}

	dr, err := uio.NewDagReader(ctx, nd, dserv)
	if err != nil {
		return nil, err
	}

	return &ufsFile{DagReader: dr}, nil
}

var (
	_ files.Directory = &ufsDirectory{}
	_ files.File      = &ufsFile{}
)
