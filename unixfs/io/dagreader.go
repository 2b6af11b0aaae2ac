// Package io implements convenience objects for working with the ipfs
// unixfs data format.
package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mdag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	format "github.com/ipfs/go-ipld-format"
)

// Common errors
var (
	ErrIsDir            = errors.New("this dag node is a directory")
	ErrCantReadSymlinks = errors.New("cannot currently read symlinks")
	ErrUnkownNodeType   = errors.New("unknown node type")
	ErrSeekNegative     = errors.New("invalid offset")

	// ErrCancelled is returned by reads interrupted by their context. The
	// context error is wrapped alongside it.
	ErrCancelled = errors.New("operation cancelled")
)

// A DagReader provides read-only read and seek access to a unixfs file.
type DagReader interface {
	ReadSeekCloser
	Size() uint64
	Mode() os.FileMode
	ModTime() time.Time
}

// A ReadSeekCloser implements interfaces to read, copy, seek and close.
type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
	io.WriterTo
}

// NewDagReader creates a new reader object that reads the data represented by
// the given node, using the passed in DAGService for data retrieval.
func NewDagReader(ctx context.Context, n format.Node, serv format.NodeGetter) (DagReader, error) {
	var size uint64
	var fsn *ft.FSNode

	switch n := n.(type) {
	case *mdag.RawNode:
		size = uint64(len(n.RawData()))
	case *mdag.ProtoNode:
		var err error
		fsn, err = ft.FSNodeFromBytes(n.Data())
		if err != nil {
			return nil, err
		}

		switch fsn.Type() {
		case ft.TFile, ft.TRaw:
			size = fsn.FileSize()
		case ft.TDirectory, ft.THAMTShard:
			return nil, ErrIsDir
		case ft.TSymlink:
			return nil, ErrCantReadSymlinks
		default:
			return nil, ft.ErrUnrecognizedType
		}
	default:
		return nil, ErrUnkownNodeType
	}

	ctx, cancel := context.WithCancel(ctx)
	dr := &dagReader{
		ctx:    ctx,
		cancel: cancel,
		serv:   serv,
		root:   n,
		rootFS: fsn,
		size:   size,
	}
	if err := dr.descend(n); err != nil {
		cancel()
		return nil, err
	}
	return dr, nil
}

// frame is one level of the depth-first walk: the links of a node and
// the index of the next one to visit.
type frame struct {
	links []*format.Link
	fsn   *ft.FSNode
	next  int
}

// dagReader reads the leaves of a file DAG in link order. Internal nodes
// may carry data of their own, which comes before their children.
type dagReader struct {
	ctx    context.Context
	cancel context.CancelFunc
	serv   format.NodeGetter

	root   format.Node
	rootFS *ft.FSNode
	size   uint64

	stack []*frame
	cur   *bytes.Reader

	// current offset for the read head within the 'file'
	offset int64
}

var _ DagReader = (*dagReader)(nil)

// Size return the total length of the data from the DAG structured file.
func (dr *dagReader) Size() uint64 {
	return dr.size
}

// Mode returns the file mode recorded on the root, or zero.
func (dr *dagReader) Mode() os.FileMode {
	if dr.rootFS == nil {
		return 0
	}
	return dr.rootFS.Mode()
}

// ModTime returns the modification time recorded on the root, or zero.
func (dr *dagReader) ModTime() time.Time {
	if dr.rootFS == nil {
		return time.Time{}
	}
	return dr.rootFS.ModTime()
}

func (dr *dagReader) cancelled() error {
	if err := dr.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// load decodes a node of the file DAG into its own data and links.
func load(nd format.Node) ([]byte, *ft.FSNode, []*format.Link, error) {
	switch nd := nd.(type) {
	case *mdag.RawNode:
		return nd.RawData(), nil, nil, nil
	case *mdag.ProtoNode:
		fsn, err := ft.FSNodeFromBytes(nd.Data())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("incorrectly formatted protobuf: %w", err)
		}
		switch fsn.Type() {
		case ft.TFile, ft.TRaw:
			return fsn.Data(), fsn, nd.Links(), nil
		default:
			return nil, nil, nil, fmt.Errorf("found %s node in unexpected place", fsn.Type())
		}
	default:
		return nil, nil, nil, ErrUnkownNodeType
	}
}

// descend pushes nd onto the walk and loads its own data as the current
// buffer.
func (dr *dagReader) descend(nd format.Node) error {
	data, fsn, links, err := load(nd)
	if err != nil {
		return err
	}
	if len(links) > 0 {
		dr.stack = append(dr.stack, &frame{links: links, fsn: fsn})
	}
	if len(data) > 0 {
		dr.cur = bytes.NewReader(data)
	} else {
		dr.cur = nil
	}
	return nil
}

func (dr *dagReader) fetch(lnk *format.Link) (format.Node, error) {
	if err := dr.cancelled(); err != nil {
		return nil, err
	}
	nd, err := lnk.GetNode(dr.ctx, dr.serv)
	if err != nil {
		if cerr := dr.cancelled(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	return nd, nil
}

// advance moves to the next node holding data. It returns io.EOF once
// the walk is complete.
func (dr *dagReader) advance() error {
	for len(dr.stack) > 0 {
		top := dr.stack[len(dr.stack)-1]
		if top.next >= len(top.links) {
			dr.stack = dr.stack[:len(dr.stack)-1]
			continue
		}
		lnk := top.links[top.next]
		top.next++

		nd, err := dr.fetch(lnk)
		if err != nil {
			return err
		}
		if err := dr.descend(nd); err != nil {
			return err
		}
		if dr.cur != nil {
			return nil
		}
	}
	return io.EOF
}

// read fills out from the walk without touching the offset.
func (dr *dagReader) read(out []byte) (int, error) {
	var n int
	for n < len(out) {
		if dr.cur != nil && dr.cur.Len() > 0 {
			m, _ := dr.cur.Read(out[n:])
			n += m
			continue
		}
		dr.cur = nil
		if err := dr.cancelled(); err != nil {
			return n, err
		}
		if err := dr.advance(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Read reads data from the DAG structured file. It fills the buffer
// unless the end of the file is reached.
func (dr *dagReader) Read(out []byte) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	n, err := dr.read(out)
	dr.offset += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// WriteTo writes the remaining file data to w, one node at a time.
func (dr *dagReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if dr.cur != nil && dr.cur.Len() > 0 {
			n, err := dr.cur.WriteTo(w)
			total += n
			dr.offset += n
			if err != nil {
				return total, err
			}
		}
		dr.cur = nil
		if err := dr.cancelled(); err != nil {
			return total, err
		}
		if err := dr.advance(); err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}

// Close releases the reader's context.
func (dr *dagReader) Close() error {
	dr.cancel()
	return nil
}

// Seek implements io.Seeker. Seeking uses the block sizes recorded on
// internal nodes to skip whole subtrees without fetching them.
func (dr *dagReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += dr.offset
	case io.SeekEnd:
		offset += int64(dr.size)
	default:
		return 0, errors.New("invalid whence")
	}
	if offset < 0 {
		return dr.offset, ErrSeekNegative
	}
	if offset == dr.offset {
		return offset, nil
	}

	if err := dr.seekTo(uint64(offset)); err != nil {
		return 0, err
	}
	dr.offset = offset
	return offset, nil
}

func (dr *dagReader) seekTo(left uint64) error {
	dr.stack = dr.stack[:0]
	dr.cur = nil

	nd := dr.root
	for {
		data, fsn, links, err := load(nd)
		if err != nil {
			return err
		}
		if left < uint64(len(data)) {
			if len(links) > 0 {
				dr.stack = append(dr.stack, &frame{links: links, fsn: fsn})
			}
			dr.cur = bytes.NewReader(data[left:])
			return nil
		}
		left -= uint64(len(data))
		if len(links) == 0 {
			// past the end of the file
			return nil
		}

		fr := &frame{links: links, fsn: fsn}
		dr.stack = append(dr.stack, fr)

		if fsn.NumChildren() != len(links) {
			// no usable size hints, walk the data instead
			_, err := io.CopyN(io.Discard, readerFunc(dr.read), int64(left))
			if err == io.EOF {
				return nil
			}
			return err
		}

		i := 0
		for ; i < len(links); i++ {
			bs := fsn.BlockSize(i)
			if left < bs {
				break
			}
			left -= bs
		}
		if i == len(links) {
			fr.next = len(links)
			return nil
		}
		fr.next = i + 1

		nd, err = dr.fetch(links[i])
		if err != nil {
			return err
		}
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
