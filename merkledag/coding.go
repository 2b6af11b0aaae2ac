package merkledag

import (
	"fmt"

	"github.com/ipfs/kubo-core/cidutil"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	dagpb "github.com/ipld/go-codec-dagpb"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"google.golang.org/protobuf/encoding/protowire"
)

// dag-pb field numbers
const (
	pbNodeData  = 1
	pbNodeLinks = 2

	pbLinkHash  = 1
	pbLinkName  = 2
	pbLinkTsize = 3
)

// marshal encodes a *Node instance into a new byte slice.
// Links are written before Data, in the order they appear on the node.
// dagpb.AppendEncode is not used here since it sorts links by name.
func (n *ProtoNode) marshal() []byte {
	var enc []byte
	for _, l := range n.links {
		var lb []byte
		lb = protowire.AppendTag(lb, pbLinkHash, protowire.BytesType)
		lb = protowire.AppendBytes(lb, l.Cid.Bytes())
		lb = protowire.AppendTag(lb, pbLinkName, protowire.BytesType)
		lb = protowire.AppendString(lb, l.Name)
		lb = protowire.AppendTag(lb, pbLinkTsize, protowire.VarintType)
		lb = protowire.AppendVarint(lb, l.Size)

		enc = protowire.AppendTag(enc, pbNodeLinks, protowire.BytesType)
		enc = protowire.AppendBytes(enc, lb)
	}
	if n.data != nil {
		enc = protowire.AppendTag(enc, pbNodeData, protowire.BytesType)
		enc = protowire.AppendBytes(enc, n.data)
	}
	return enc
}

// unmarshal decodes raw data into a *Node instance. Data may come before
// or after Links, but Links must be contiguous and every link needs a Hash.
func unmarshal(encoded []byte) (*ProtoNode, error) {
	nb := dagpb.Type.PBNode.NewBuilder()
	if err := dagpb.DecodeBytes(nb, encoded); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}
	pbn, ok := nb.Build().(dagpb.PBNode)
	if !ok {
		return nil, fmt.Errorf("unmarshal failed: expected a dag-pb node")
	}

	n := new(ProtoNode)
	if pbn.FieldData().Exists() {
		n.data = append([]byte{}, pbn.FieldData().Must().Bytes()...)
	}

	n.links = make([]*format.Link, 0, pbn.FieldLinks().Length())
	it := pbn.FieldLinks().Iterator()
	for !it.Done() {
		_, pbl := it.Next()
		lnk, err := fromPBLink(pbl)
		if err != nil {
			return nil, err
		}
		n.links = append(n.links, lnk)
	}
	return n, nil
}

func fromPBLink(pbl dagpb.PBLink) (*format.Link, error) {
	cl, ok := pbl.FieldHash().Link().(cidlink.Link)
	if !ok {
		return nil, fmt.Errorf("link: hash is not a CID")
	}
	lnk := &format.Link{Cid: cl.Cid}
	if pbl.FieldName().Exists() {
		lnk.Name = pbl.FieldName().Must().String()
	}
	if pbl.FieldTsize().Exists() {
		tsize := pbl.FieldTsize().Must().Int()
		if tsize < 0 {
			return nil, fmt.Errorf("link: negative Tsize %d", tsize)
		}
		lnk.Size = uint64(tsize)
	}
	return lnk, nil
}

// EncodeProtobuf returns the encoded raw data version of a Node instance.
// It may use a cached encoded version, unless the force flag is given.
func (n *ProtoNode) EncodeProtobuf(force bool) ([]byte, error) {
	if n.encoded == nil || force {
		n.cached = cid.Undef
		n.encoded = n.marshal()
	}

	if !n.cached.Defined() {
		c, err := n.CidBuilder().Sum(n.encoded)
		if err != nil {
			return nil, err
		}
		n.cached = c
	}

	return n.encoded, nil
}

// DecodeProtobuf decodes raw data and returns a new Node instance.
func DecodeProtobuf(encoded []byte) (*ProtoNode, error) {
	n, err := unmarshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("incorrectly formatted merkledag node: %w", err)
	}
	return n, nil
}

// DecodeProtobufBlock is a block decoder for protobuf IPLD nodes conforming to
// node.DecodeBlockFunc
func DecodeProtobufBlock(b blocks.Block) (format.Node, error) {
	c := b.Cid()
	if c.Type() != cid.DagProtobuf {
		return nil, ErrNotProtobuf
	}

	decnd, err := DecodeProtobuf(b.RawData())
	if err != nil {
		return nil, err
	}

	pref := c.Prefix()
	decnd.builder = cidutil.Builder{Version: pref.Version, Codec: pref.Codec, HashFunc: pref.MhType}
	decnd.encoded = b.RawData()
	decnd.cached = c
	return decnd, nil
}

// DecodeRawBlock wraps a raw-codec block as a RawNode.
func DecodeRawBlock(block blocks.Block) (format.Node, error) {
	if block.Cid().Type() != cid.Raw {
		return nil, ErrNotRawNode
	}
	return &RawNode{block}, nil
}

// DecodeBlock dispatches on the block's codec.
func DecodeBlock(b blocks.Block) (format.Node, error) {
	switch b.Cid().Type() {
	case cid.DagProtobuf:
		return DecodeProtobufBlock(b)
	case cid.Raw:
		return DecodeRawBlock(b)
	default:
		return nil, fmt.Errorf("unrecognized object type: %d", b.Cid().Type())
	}
}
