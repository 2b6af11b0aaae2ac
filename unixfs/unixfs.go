// Package unixfs implements a data format for files in the IPFS filesystem It
// is not the only format in ipfs, but it is the one that the filesystem
// assumes
package unixfs

import (
	"errors"
	"fmt"
	"os"
	"time"

	dag "github.com/ipfs/kubo-core/merkledag"

	proto "github.com/gogo/protobuf/proto"
	pb "github.com/ipfs/boxo/ipld/unixfs/pb"
	format "github.com/ipfs/go-ipld-format"
)

// Common errors
var (
	ErrMalformedFileFormat = errors.New("malformed data in file format")
	ErrUnrecognizedType    = errors.New("unrecognized node type")
	ErrNotUnixFSNode       = errors.New("not a unixfs node")
)

// FilePBData creates a protobuf File with the given
// byte slice and returns the marshaled protobuf bytes representing it.
func FilePBData(data []byte, totalsize uint64) []byte {
	pbfile := newData(TFile)
	pbfile.Data = data
	pbfile.Filesize = proto.Uint64(totalsize)
	return marshalData(pbfile)
}

// FolderPBData returns Bytes that represent a Directory.
func FolderPBData() []byte {
	return marshalData(newData(TDirectory))
}

// WrapData marshals raw bytes into a `Data_Raw` type protobuf message.
func WrapData(b []byte) []byte {
	pbdata := newData(TRaw)
	pbdata.Data = b
	pbdata.Filesize = proto.Uint64(uint64(len(b)))
	return marshalData(pbdata)
}

// SymlinkData returns a `Data_Symlink` protobuf message for the path you specify.
func SymlinkData(path string) []byte {
	pbdata := newData(TSymlink)
	pbdata.Data = []byte(path)
	return marshalData(pbdata)
}

// UnwrapData unmarshals a protobuf messages and returns the contents.
func UnwrapData(data []byte) ([]byte, error) {
	pbdata := new(pb.Data)
	if err := unmarshalData(data, pbdata); err != nil {
		return nil, err
	}
	return pbdata.GetData(), nil
}

// DataSize returns the size of the contents in protobuf wrapped slice.
// For raw data it simply provides the length of it. For Data_Files, it
// will return the associated filesize. Note that Data_Directories will
// return an error.
func DataSize(data []byte) (uint64, error) {
	pbdata := new(pb.Data)
	if err := unmarshalData(data, pbdata); err != nil {
		return 0, err
	}
	switch DataType(pbdata.GetType()) {
	case TDirectory, THAMTShard:
		return 0, errors.New("can't get data size of directory")
	case TFile:
		return pbdata.GetFilesize(), nil
	case TRaw, TSymlink:
		return uint64(len(pbdata.GetData())), nil
	default:
		return 0, ErrUnrecognizedType
	}
}

// An FSNode represents a filesystem object using the UnixFS specification.
//
// The `NewFSNode` constructor should be used instead of just calling `new(FSNode)`
// so that `Filesize` is initialized for file nodes.
type FSNode struct {
	format pb.Data
}

// FSNodeFromBytes unmarshal a protobuf message onto an FSNode.
func FSNodeFromBytes(b []byte) (*FSNode, error) {
	n := new(FSNode)
	if err := unmarshalData(b, &n.format); err != nil {
		return nil, err
	}
	return n, nil
}

// NewFSNode creates a new FSNode structure with the given `dataType`.
//
// File and raw nodes always carry a Filesize, directories never do.
func NewFSNode(dataType DataType) *FSNode {
	n := new(FSNode)
	n.format.Type = dataType.enum()
	if dataType != TDirectory && dataType != THAMTShard {
		n.UpdateFilesize(0)
	}
	return n
}

// HashType gets hash type of format
func (n *FSNode) HashType() uint64 {
	return n.format.GetHashType()
}

// Fanout gets fanout of format
func (n *FSNode) Fanout() uint64 {
	return n.format.GetFanout()
}

// AddBlockSize adds the size of the next child block of this node
func (n *FSNode) AddBlockSize(s uint64) {
	n.UpdateFilesize(int64(s))
	n.format.Blocksizes = append(n.format.Blocksizes, s)
}

// RemoveBlockSize removes the given child block's size.
func (n *FSNode) RemoveBlockSize(i int) {
	n.UpdateFilesize(-int64(n.format.Blocksizes[i]))
	n.format.Blocksizes = append(n.format.Blocksizes[:i], n.format.Blocksizes[i+1:]...)
}

// BlockSize returns the block size indexed by `i`.
func (n *FSNode) BlockSize(i int) uint64 {
	return n.format.Blocksizes[i]
}

// BlockSizes gets blocksizes of format
func (n *FSNode) BlockSizes() []uint64 {
	return n.format.GetBlocksizes()
}

// RemoveAllBlockSizes removes all the child block sizes of this node.
func (n *FSNode) RemoveAllBlockSizes() {
	n.format.Blocksizes = []uint64{}
	n.format.Filesize = proto.Uint64(uint64(len(n.format.Data)))
}

// GetBytes marshals this node as a protobuf message.
func (n *FSNode) GetBytes() ([]byte, error) {
	return proto.Marshal(&n.format)
}

// FileSize returns the size of the file.
func (n *FSNode) FileSize() uint64 {
	return n.format.GetFilesize()
}

// NumChildren returns the number of child blocks of this node
func (n *FSNode) NumChildren() int {
	return len(n.format.Blocksizes)
}

// Data retrieves the `Data` field from the internal `format`.
func (n *FSNode) Data() []byte {
	return n.format.GetData()
}

// SetData sets the `Data` field from the internal `format`
// updating its `Filesize`.
func (n *FSNode) SetData(newData []byte) {
	n.UpdateFilesize(int64(len(newData) - len(n.Data())))
	n.format.Data = newData
}

// UpdateFilesize updates the `Filesize` field from the internal `format`
// by a signed difference (`filesizeDiff`).
func (n *FSNode) UpdateFilesize(filesizeDiff int64) {
	n.format.Filesize = proto.Uint64(uint64(int64(n.FileSize()) + filesizeDiff))
}

// Type retrieves the `Type` field from the internal `format`.
func (n *FSNode) Type() DataType {
	return DataType(n.format.GetType())
}

// IsDir checks whether the node represents a directory
func (n *FSNode) IsDir() bool {
	switch n.Type() {
	case TDirectory, THAMTShard:
		return true
	default:
		return false
	}
}

// Mode returns the optionally stored file permissions. Zero when unset.
func (n *FSNode) Mode() os.FileMode {
	if n.format.Mode == nil {
		return 0
	}
	return UnixPermsToModePerms(n.format.GetMode())
}

// SetMode stores the given mode permissions, or nullifies stored
// permissions if none were provided.
func (n *FSNode) SetMode(m os.FileMode) {
	if m&os.ModePerm == 0 && m&(os.ModeSetuid|os.ModeSetgid|os.ModeSticky) == 0 {
		n.format.Mode = nil
		return
	}
	n.format.Mode = proto.Uint32(ModePermsToUnixPerms(m))
}

// ModTime returns the stored last modified timestamp if available.
func (n *FSNode) ModTime() time.Time {
	ts := n.format.GetMtime()
	if ts == nil {
		return time.Time{}
	}
	return time.Unix(ts.GetSeconds(), int64(ts.GetNanos()))
}

// SetModTime stores the given last modified timestamp, otherwise nullifies
// stored timestamp.
func (n *FSNode) SetModTime(ts time.Time) {
	if ts.IsZero() {
		n.format.Mtime = nil
		return
	}
	n.format.Mtime = &pb.IPFSTimestamp{Seconds: proto.Int64(ts.Unix())}
	if ts.Nanosecond() != 0 {
		n.format.Mtime.Nanos = proto.Uint32(uint32(ts.Nanosecond()))
	}
}

// HasMetadata reports whether mode or mtime is recorded.
func (n *FSNode) HasMetadata() bool {
	return n.format.Mode != nil || n.format.Mtime != nil
}

// ModePermsToUnixPerms converts the permission bits of a go FileMode to the
// unix representation stored in UnixFS.
func ModePermsToUnixPerms(fileMode os.FileMode) uint32 {
	perms := uint32(fileMode.Perm())
	if fileMode&os.ModeSetuid != 0 {
		perms |= 0o4000
	}
	if fileMode&os.ModeSetgid != 0 {
		perms |= 0o2000
	}
	if fileMode&os.ModeSticky != 0 {
		perms |= 0o1000
	}
	return perms
}

// UnixPermsToModePerms is the inverse of ModePermsToUnixPerms.
func UnixPermsToModePerms(unixPerms uint32) os.FileMode {
	mode := os.FileMode(unixPerms & 0o777)
	if unixPerms&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if unixPerms&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if unixPerms&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// ExtractFSNode decodes the UnixFS layer of a dag-pb node.
func ExtractFSNode(node format.Node) (*FSNode, error) {
	protoNode, ok := node.(*dag.ProtoNode)
	if !ok {
		return nil, ErrNotUnixFSNode
	}
	return FSNodeFromBytes(protoNode.Data())
}

// ReadUnixFSNodeData extracts the UnixFS data from an IPLD node.
// Raw nodes are (also) processed because they are used as leaf
// nodes containing (only) UnixFS data.
func ReadUnixFSNodeData(node format.Node) ([]byte, error) {
	switch node := node.(type) {
	case *dag.ProtoNode:
		fsNode, err := FSNodeFromBytes(node.Data())
		if err != nil {
			return nil, fmt.Errorf("incorrectly formatted protobuf: %w", err)
		}

		switch fsNode.Type() {
		case TFile, TRaw:
			return fsNode.Data(), nil
		default:
			return nil, fmt.Errorf("found %s node in unexpected place", fsNode.Type())
		}

	case *dag.RawNode:
		return node.RawData(), nil

	default:
		return nil, ErrUnrecognizedType
	}
}

// EmptyDirNode creates an empty folder Protonode.
func EmptyDirNode() *dag.ProtoNode {
	return dag.NodeWithData(FolderPBData())
}

// EmptyDirNodeWithStat creates an empty folder Protonode carrying mode
// and mtime. Zero values are omitted.
func EmptyDirNodeWithStat(mode os.FileMode, mtime time.Time) *dag.ProtoNode {
	fsn := NewFSNode(TDirectory)
	fsn.SetMode(mode)
	fsn.SetModTime(mtime)
	b, _ := fsn.GetBytes()
	return dag.NodeWithData(b)
}

// EmptyFileNode creates an empty file Protonode.
func EmptyFileNode() *dag.ProtoNode {
	return dag.NodeWithData(FilePBData(nil, 0))
}
