package unixfs

import (
	"fmt"

	proto "github.com/gogo/protobuf/proto"
	pb "github.com/ipfs/boxo/ipld/unixfs/pb"
)

// DataType is the kind of a UnixFS entry.
type DataType int32

// Shorthands for protobuffer types
const (
	TRaw       = DataType(pb.Data_Raw)
	TDirectory = DataType(pb.Data_Directory)
	TFile      = DataType(pb.Data_File)
	TMetadata  = DataType(pb.Data_Metadata)
	TSymlink   = DataType(pb.Data_Symlink)
	THAMTShard = DataType(pb.Data_HAMTShard)
)

func (t DataType) String() string {
	switch t {
	case TRaw:
		return "raw"
	case TDirectory:
		return "directory"
	case TFile:
		return "file"
	case TMetadata:
		return "metadata"
	case TSymlink:
		return "symlink"
	case THAMTShard:
		return "hamt-sharded-directory"
	default:
		return fmt.Sprintf("DataType(%d)", int32(t))
	}
}

func (t DataType) enum() *pb.Data_DataType {
	v := pb.Data_DataType(t)
	return &v
}

func newData(t DataType) *pb.Data {
	return &pb.Data{Type: t.enum()}
}

// marshalData encodes a Data message. The only failure is a missing
// required Type, which every constructor here sets.
func marshalData(d *pb.Data) []byte {
	b, err := proto.Marshal(d)
	if err != nil {
		panic(err)
	}
	return b
}

func unmarshalData(b []byte, d *pb.Data) error {
	if err := proto.Unmarshal(b, d); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFileFormat, err)
	}
	return nil
}
