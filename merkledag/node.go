package merkledag

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/kubo-core/cidutil"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// Common errors
var (
	ErrNotProtobuf  = errors.New("expected protobuf dag node")
	ErrNotRawNode   = errors.New("expected raw block")
	ErrLinkNotFound = errors.New("no link by that name")
)

// ProtoNode represents a node in the IPFS Merkle DAG.
// nodes have opaque data and a set of navigable links.
// Links keep the order in which they were added.
type ProtoNode struct {
	links []*format.Link
	data  []byte

	// cache encoded/marshaled value
	encoded []byte
	cached  cid.Cid

	// builder specifies cid version and hashing function
	builder cid.Builder
}

// NodeWithData builds a new Protonode with the given data.
func NodeWithData(d []byte) *ProtoNode {
	return &ProtoNode{data: d}
}

func (n *ProtoNode) invalidate() {
	n.encoded = nil
	n.cached = cid.Undef
}

// CidBuilder returns the CID Builder for this ProtoNode, it is never nil
func (n *ProtoNode) CidBuilder() cid.Builder {
	if n.builder == nil {
		return cidutil.V0Builder
	}
	return n.builder
}

// SetCidBuilder sets the CID builder if it is non nil, if nil then it
// is reset to the default value. The codec is always forced to dag-pb.
func (n *ProtoNode) SetCidBuilder(builder cid.Builder) error {
	if builder == nil {
		n.builder = nil
	} else {
		b := builder.WithCodec(cid.DagProtobuf)
		if b.GetCodec() != cid.DagProtobuf {
			return fmt.Errorf("cid builder cannot produce dag-pb cids")
		}
		n.builder = b
	}
	n.invalidate()
	return nil
}

// AddNodeLink adds a link to another node.
func (n *ProtoNode) AddNodeLink(name string, that format.Node) error {
	lnk, err := format.MakeLink(that)
	if err != nil {
		return err
	}
	return n.AddRawLink(name, lnk)
}

// AddRawLink adds a copy of a link to this node
func (n *ProtoNode) AddRawLink(name string, l *format.Link) error {
	if !l.Cid.Defined() {
		return fmt.Errorf("link %q: undefined cid", name)
	}
	n.invalidate()
	n.links = append(n.links, &format.Link{
		Name: name,
		Size: l.Size,
		Cid:  l.Cid,
	})
	return nil
}

// RemoveNodeLink removes every link on this node with the given name.
func (n *ProtoNode) RemoveNodeLink(name string) error {
	good := make([]*format.Link, 0, len(n.links))
	var found bool
	for _, l := range n.links {
		if l.Name == name {
			found = true
			continue
		}
		good = append(good, l)
	}
	if !found {
		return ErrLinkNotFound
	}
	n.invalidate()
	n.links = good
	return nil
}

// GetNodeLink returns a copy of the link with the given name.
func (n *ProtoNode) GetNodeLink(name string) (*format.Link, error) {
	for _, l := range n.links {
		if l.Name == name {
			return &format.Link{
				Name: l.Name,
				Size: l.Size,
				Cid:  l.Cid,
			}, nil
		}
	}
	return nil, ErrLinkNotFound
}

// GetLinkedProtoNode returns a copy of the ProtoNode with the given name.
func (n *ProtoNode) GetLinkedProtoNode(ctx context.Context, ds format.NodeGetter, name string) (*ProtoNode, error) {
	nd, err := n.GetLinkedNode(ctx, ds, name)
	if err != nil {
		return nil, err
	}

	pbnd, ok := nd.(*ProtoNode)
	if !ok {
		return nil, ErrNotProtobuf
	}
	return pbnd, nil
}

// GetLinkedNode returns a copy of the IPLD Node with the given name.
func (n *ProtoNode) GetLinkedNode(ctx context.Context, ds format.NodeGetter, name string) (format.Node, error) {
	lnk, err := n.GetNodeLink(name)
	if err != nil {
		return nil, err
	}
	return lnk.GetNode(ctx, ds)
}

// Copy returns a copy of the node. The resulting node will have a new
// slice of links and a fresh copy of the data.
func (n *ProtoNode) Copy() format.Node {
	nnode := new(ProtoNode)
	if n.data != nil {
		nnode.data = make([]byte, len(n.data))
		copy(nnode.data, n.data)
	}

	if len(n.links) > 0 {
		nnode.links = make([]*format.Link, len(n.links))
		for i, l := range n.links {
			cl := *l
			nnode.links[i] = &cl
		}
	}

	nnode.builder = n.builder
	return nnode
}

// RawData returns the encoded protobuf bytes of the node.
func (n *ProtoNode) RawData() []byte {
	out, err := n.EncodeProtobuf(false)
	if err != nil {
		panic(err)
	}
	return out
}

// Data returns the data stored by this node.
func (n *ProtoNode) Data() []byte {
	return n.data
}

// SetData stores data in this node.
func (n *ProtoNode) SetData(d []byte) {
	n.invalidate()
	n.data = d
}

// UpdateNodeLink returns a copy of the node with the link name set to point
// to that. If a link of the same name existed, it is replaced in place.
func (n *ProtoNode) UpdateNodeLink(name string, that *ProtoNode) (*ProtoNode, error) {
	newnode := n.Copy().(*ProtoNode)
	lnk, err := format.MakeLink(that)
	if err != nil {
		return nil, err
	}
	newnode.SetLinkInPlace(name, lnk)
	return newnode, nil
}

// SetLinkInPlace points the link called name at l. An existing link keeps
// its position; a new one is appended.
func (n *ProtoNode) SetLinkInPlace(name string, l *format.Link) {
	n.invalidate()
	for i, ol := range n.links {
		if ol.Name == name {
			n.links[i] = &format.Link{Name: name, Size: l.Size, Cid: l.Cid}
			return
		}
	}
	n.links = append(n.links, &format.Link{Name: name, Size: l.Size, Cid: l.Cid})
}

// Size returns the total size of the data addressed by node,
// including the total sizes of references.
func (n *ProtoNode) Size() (uint64, error) {
	b, err := n.EncodeProtobuf(false)
	if err != nil {
		return 0, err
	}

	s := uint64(len(b))
	for _, l := range n.links {
		s += l.Size
	}
	return s, nil
}

// Stat returns statistics on the node.
func (n *ProtoNode) Stat() (*format.NodeStat, error) {
	enc, err := n.EncodeProtobuf(false)
	if err != nil {
		return nil, err
	}

	cumSize, err := n.Size()
	if err != nil {
		return nil, err
	}

	return &format.NodeStat{
		Hash:           n.Cid().String(),
		NumLinks:       len(n.links),
		BlockSize:      len(enc),
		LinksSize:      len(enc) - len(n.data), // includes framing.
		DataSize:       len(n.data),
		CumulativeSize: int(cumSize),
	}, nil
}

// Loggable implements the ipfs/go-log.Loggable interface.
func (n *ProtoNode) Loggable() map[string]interface{} {
	return map[string]interface{}{
		"node": n.String(),
	}
}

// Cid returns the node's Cid, calculated according to its builder.
func (n *ProtoNode) Cid() cid.Cid {
	if _, err := n.EncodeProtobuf(false); err != nil {
		panic(err)
	}
	return n.cached
}

// String prints the node's Cid.
func (n *ProtoNode) String() string {
	return n.Cid().String()
}

// Links returns a copy of the node's links.
func (n *ProtoNode) Links() []*format.Link {
	links := make([]*format.Link, len(n.links))
	copy(links, n.links)
	return links
}

// SetLinks replaces the node links with a copy of the provided links.
func (n *ProtoNode) SetLinks(links []*format.Link) error {
	for _, l := range links {
		if !l.Cid.Defined() {
			return fmt.Errorf("link %q: undefined cid", l.Name)
		}
	}
	n.invalidate()
	n.links = make([]*format.Link, len(links))
	copy(n.links, links)
	return nil
}

// Resolve is an alias for ResolveLink.
func (n *ProtoNode) Resolve(path []string) (interface{}, []string, error) {
	return n.ResolveLink(path)
}

// ResolveLink consumes the first element of the path and obtains the link
// corresponding to it from the node. It returns the link
// and the path without the consumed element.
func (n *ProtoNode) ResolveLink(path []string) (*format.Link, []string, error) {
	if len(path) == 0 {
		return nil, nil, errors.New("end of path, no more links to resolve")
	}

	lnk, err := n.GetNodeLink(path[0])
	if err != nil {
		return nil, nil, err
	}

	return lnk, path[1:], nil
}

// Tree returns the link names of the ProtoNode.
// ProtoNodes are only ever one path deep, so anything different than an empty
// string for p results in nothing. The depth parameter is ignored.
func (n *ProtoNode) Tree(p string, depth int) []string {
	if p != "" {
		return nil
	}

	out := make([]string, 0, len(n.links))
	for _, lnk := range n.links {
		out = append(out, lnk.Name)
	}
	return out
}
