package io

import (
	"context"
	"errors"
	"os"
	"time"

	mdag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// ErrNotADir is returned when a node is expected to be a unixfs
// directory but is not.
var ErrNotADir = errors.New("merkledag node was not a directory")

// Directory is a unixfs directory under construction. Entries keep the
// position of their first insertion; adding an existing name replaces
// the earlier entry.
type Directory struct {
	dserv format.DAGService
	node  *mdag.ProtoNode

	mode  os.FileMode
	mtime time.Time
}

// NewDirectory returns an empty Directory. dserv is used to load children
// on Find.
func NewDirectory(dserv format.DAGService) *Directory {
	return &Directory{
		dserv: dserv,
		node:  ft.EmptyDirNode(),
	}
}

// NewDirectoryFromNode loads a Directory from an existing unixfs
// directory node.
func NewDirectoryFromNode(dserv format.DAGService, node format.Node) (*Directory, error) {
	pbn, ok := node.(*mdag.ProtoNode)
	if !ok {
		return nil, ErrNotADir
	}

	fsn, err := ft.FSNodeFromBytes(pbn.Data())
	if err != nil {
		return nil, err
	}
	if fsn.Type() != ft.TDirectory {
		return nil, ErrNotADir
	}

	return &Directory{
		dserv: dserv,
		node:  pbn.Copy().(*mdag.ProtoNode),
		mode:  fsn.Mode(),
		mtime: fsn.ModTime(),
	}, nil
}

// SetCidBuilder sets the CID builder of the directory node.
func (d *Directory) SetCidBuilder(b cid.Builder) error {
	return d.node.SetCidBuilder(b)
}

// SetStat records mode and mtime on the directory node. Zero values are
// left out.
func (d *Directory) SetStat(mode os.FileMode, mtime time.Time) {
	d.mode = mode
	d.mtime = mtime
}

// Mode returns the recorded permission bits, zero when unset.
func (d *Directory) Mode() os.FileMode {
	return d.mode
}

// ModTime returns the recorded modification time.
func (d *Directory) ModTime() time.Time {
	return d.mtime
}

// AddChild links node under name. The child itself is not stored.
func (d *Directory) AddChild(_ context.Context, name string, node format.Node) error {
	lnk, err := format.MakeLink(node)
	if err != nil {
		return err
	}
	return d.AddLink(name, lnk)
}

// AddLink links an already known CID under name.
func (d *Directory) AddLink(name string, lnk *format.Link) error {
	if name == "" {
		return errors.New("directory entry name cannot be empty")
	}
	if !lnk.Cid.Defined() {
		return errors.New("directory entry has undefined cid")
	}
	d.node.SetLinkInPlace(name, lnk)
	return nil
}

// Links returns the entries in insertion order.
func (d *Directory) Links() []*format.Link {
	return d.node.Links()
}

// ForEachLink calls f on every entry in order, stopping at the first error.
func (d *Directory) ForEachLink(_ context.Context, f func(*format.Link) error) error {
	for _, l := range d.node.Links() {
		if err := f(l); err != nil {
			return err
		}
	}
	return nil
}

// Find loads the child called name.
func (d *Directory) Find(ctx context.Context, name string) (format.Node, error) {
	lnk, err := d.node.GetNodeLink(name)
	if err != nil {
		if err == mdag.ErrLinkNotFound {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return d.dserv.Get(ctx, lnk.Cid)
}

// RemoveChild removes the entry called name.
func (d *Directory) RemoveChild(_ context.Context, name string) error {
	err := d.node.RemoveNodeLink(name)
	if err == mdag.ErrLinkNotFound {
		return os.ErrNotExist
	}
	return err
}

// GetNode returns the directory node with the current entries.
func (d *Directory) GetNode() (format.Node, error) {
	fsn := ft.NewFSNode(ft.TDirectory)
	if d.mode != 0 {
		fsn.SetMode(d.mode)
	}
	if !d.mtime.IsZero() {
		fsn.SetModTime(d.mtime)
	}
	data, err := fsn.GetBytes()
	if err != nil {
		return nil, err
	}

	nd := d.node.Copy().(*mdag.ProtoNode)
	nd.SetData(data)
	return nd, nil
}
