package unixfs

import (
	"os"
	"testing"
	"time"

	dag "github.com/ipfs/kubo-core/merkledag"

	proto "github.com/gogo/protobuf/proto"
	pb "github.com/ipfs/boxo/ipld/unixfs/pb"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFSNode(t *testing.T) {
	fsn := NewFSNode(TFile)
	for i := 0; i < 16; i++ {
		fsn.AddBlockSize(100)
	}
	fsn.RemoveBlockSize(15)

	fsn.SetData(make([]byte, 128))

	b, err := fsn.GetBytes()
	require.NoError(t, err)

	pbn, err := FSNodeFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, 15, pbn.NumChildren())
	require.Equal(t, uint64(100), pbn.BlockSize(3))

	ds, err := DataSize(b)
	require.NoError(t, err)
	require.Equal(t, uint64((100*15)+128), ds, "Datasize calculations incorrect!")

	fsn.RemoveAllBlockSizes()
	require.Equal(t, uint64(128), fsn.FileSize())
}

func TestKnownEncodings(t *testing.T) {
	require.Equal(t, []byte{0x08, 0x01}, FolderPBData())
	require.Equal(t, "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn", EmptyDirNode().Cid().String())

	require.Equal(t, []byte{0x08, 0x02, 0x18, 0x00}, FilePBData(nil, 0))
	require.Equal(t, "QmbFMke1KXqnYyBBWxB74N4c5SBnJMVAiMNRcGu6x1AwQH", EmptyFileNode().Cid().String())

	fsn := NewFSNode(TDirectory)
	b, err := fsn.GetBytes()
	require.NoError(t, err)
	require.Equal(t, FolderPBData(), b)
}

func TestMetadataRoundtrip(t *testing.T) {
	mtime := time.Unix(1638111600, 76552)

	fsn := NewFSNode(TFile)
	fsn.SetData([]byte("content"))
	fsn.SetMode(0o644 | os.ModeSetgid)
	fsn.SetModTime(mtime)
	require.True(t, fsn.HasMetadata())

	b, err := fsn.GetBytes()
	require.NoError(t, err)

	dec, err := FSNodeFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644)|os.ModeSetgid, dec.Mode())
	require.True(t, mtime.Equal(dec.ModTime()))
	require.Equal(t, uint64(7), dec.FileSize())

	dec.SetMode(0)
	dec.SetModTime(time.Time{})
	require.False(t, dec.HasMetadata())
	require.Equal(t, FilePBData([]byte("content"), 7), mustBytes(t, dec))
}

func TestWholeSecondMtimeOmitsNanos(t *testing.T) {
	fsn := NewFSNode(TDirectory)
	fsn.SetModTime(time.Unix(1000, 0))
	b := mustBytes(t, fsn)

	dec, err := FSNodeFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, int64(1000), dec.ModTime().Unix())
	require.Zero(t, dec.ModTime().Nanosecond())
	// type + mtime{seconds}
	require.Equal(t, []byte{0x08, 0x01, 0x42, 0x03, 0x08, 0xe8, 0x07}, b)
}

func TestFSNodeWireFormat(t *testing.T) {
	fsn := NewFSNode(TFile)
	fsn.SetData([]byte("abc"))
	fsn.AddBlockSize(262144)
	fsn.SetMode(0o600)
	fsn.SetModTime(time.Unix(1700000000, 5))

	var msg pb.Data
	require.NoError(t, proto.Unmarshal(mustBytes(t, fsn), &msg))
	require.Equal(t, pb.Data_File, msg.GetType())
	require.Equal(t, []byte("abc"), msg.GetData())
	require.Equal(t, uint64(262147), msg.GetFilesize())
	require.Equal(t, []uint64{262144}, msg.GetBlocksizes())
	require.Equal(t, uint32(0o600), msg.GetMode())
	require.Equal(t, int64(1700000000), msg.GetMtime().GetSeconds())
	require.Equal(t, uint32(5), msg.GetMtime().GetNanos())

	// an mtime without its required seconds is rejected
	msg.Mtime = &pb.IPFSTimestamp{Nanos: proto.Uint32(1)}
	_, err := proto.Marshal(&msg)
	require.Error(t, err)
}

func TestModeConversion(t *testing.T) {
	for _, m := range []os.FileMode{0o755, 0o600, 0o777 | os.ModeSticky, 0o700 | os.ModeSetuid} {
		require.Equal(t, m, UnixPermsToModePerms(ModePermsToUnixPerms(m)))
	}
	require.Equal(t, uint32(0o4755), ModePermsToUnixPerms(0o755|os.ModeSetuid))
}

func TestPackedBlocksizes(t *testing.T) {
	var packed []byte
	packed = protowire.AppendVarint(packed, 10)
	packed = protowire.AppendVarint(packed, 300)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(TFile))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 310)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	fsn, err := FSNodeFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 300}, fsn.BlockSizes())
	require.Equal(t, uint64(310), fsn.FileSize())
}

func TestMalformed(t *testing.T) {
	_, err := FSNodeFromBytes([]byte{0xff})
	require.ErrorIs(t, err, ErrMalformedFileFormat)

	// no Type field
	_, err = FSNodeFromBytes([]byte{0x18, 0x00})
	require.ErrorIs(t, err, ErrMalformedFileFormat)

	_, err = DataSize(FolderPBData())
	require.Error(t, err)
}

func TestReadUnixFSNodeData(t *testing.T) {
	data, err := ReadUnixFSNodeData(dag.NodeWithData(WrapData([]byte("leaf"))))
	require.NoError(t, err)
	require.Equal(t, []byte("leaf"), data)

	data, err = ReadUnixFSNodeData(dag.NewRawNode([]byte("raw")))
	require.NoError(t, err)
	require.Equal(t, []byte("raw"), data)

	_, err = ReadUnixFSNodeData(EmptyDirNode())
	require.Error(t, err)

	_, err = ExtractFSNode(dag.NewRawNode([]byte("raw")))
	require.ErrorIs(t, err, ErrNotUnixFSNode)

	sz, err := DataSize(SymlinkData("/target"))
	require.NoError(t, err)
	require.Equal(t, uint64(7), sz)
}

func mustBytes(t *testing.T, fsn *FSNode) []byte {
	b, err := fsn.GetBytes()
	require.NoError(t, err)
	return b
}
