package tests

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"testing"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	opt "github.com/ipfs/kubo-core/core/coreiface/options"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"

	"github.com/stretchr/testify/require"
)

const (
	emptyObject = "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n"
	emptyDir    = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"
)

func (tp *TestSuite) TestObject(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Object() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestNew", tp.TestNew)
	t.Run("TestObjectPut", tp.TestObjectPut)
	t.Run("TestObjectPutProtobuf", tp.TestObjectPutProtobuf)
	t.Run("TestObjectPutPinned", tp.TestObjectPutPinned)
	t.Run("TestObjectGet", tp.TestObjectGet)
	t.Run("TestObjectData", tp.TestObjectData)
	t.Run("TestObjectLinks", tp.TestObjectLinks)
	t.Run("TestObjectStat", tp.TestObjectStat)
	t.Run("TestObjectAddLink", tp.TestObjectAddLink)
	t.Run("TestObjectAddLinkCreate", tp.TestObjectAddLinkCreate)
	t.Run("TestObjectRmLink", tp.TestObjectRmLink)
	t.Run("TestObjectAddData", tp.TestObjectAddData)
	t.Run("TestObjectSetData", tp.TestObjectSetData)
	t.Run("TestDiffTest", tp.TestDiffTest)
}

func (tp *TestSuite) TestNew(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	emptyNode, err := api.Object().New(ctx)
	require.NoError(t, err)
	require.Equal(t, emptyObject, emptyNode.Cid().String())

	dirNode, err := api.Object().New(ctx, opt.Object.Type("unixfs-dir"))
	require.NoError(t, err)
	require.Equal(t, emptyDir, dirNode.Cid().String())

	_, err = api.Object().New(ctx, opt.Object.Type("nonsense"))
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	require.Equal(t, path.FromCid(dag.NodeWithData([]byte("foo")).Cid()), p1)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"YmFy"}`), opt.Object.DataType("base64")) // bar
	require.NoError(t, err)
	require.Equal(t, path.FromCid(dag.NodeWithData([]byte("bar")).Cid()), p2)

	pbBytes, err := hex.DecodeString("0a0362617a") // Data: "baz"
	require.NoError(t, err)
	p3, err := api.Object().Put(ctx, bytes.NewReader(pbBytes), opt.Object.InputEnc("protobuf"))
	require.NoError(t, err)
	require.Equal(t, path.FromCid(dag.NodeWithData([]byte("baz")).Cid()), p3)

	// an empty object is refused
	_, err = api.Object().Put(ctx, strings.NewReader(`{}`))
	require.Error(t, err)

	_, err = api.Object().Put(ctx, strings.NewReader(`{"Data":"foo","Extra":1}`))
	require.Error(t, err)

	_, err = api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`), opt.Object.InputEnc("xml"))
	require.Error(t, err)

	_, err = api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`), opt.Object.DataType("rot13"))
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectPutProtobuf(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	child := dag.NodeWithData([]byte("child"))
	parent := dag.NodeWithData([]byte("parent"))
	require.NoError(t, parent.AddNodeLink("kid", child))

	p, err := api.Object().Put(ctx, bytes.NewReader(parent.RawData()), opt.Object.InputEnc("protobuf"))
	require.NoError(t, err)
	require.Equal(t, path.FromCid(parent.Cid()), p)

	links, err := api.Object().Links(ctx, p)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "kid", links[0].Name)
	require.Equal(t, child.Cid(), links[0].Cid)

	_, err = api.Object().Put(ctx, strings.NewReader("not protobuf"), opt.Object.InputEnc("protobuf"))
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectPutPinned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"keep"}`), opt.Object.Pin(true))
	require.NoError(t, err)

	how, pinned, err := api.Pin().IsPinned(ctx, p)
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, "recursive", how)
}

func (tp *TestSuite) TestObjectGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)

	nd, err := api.Object().Get(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, "foo", string(nd.(*dag.ProtoNode).Data()))
}

func (tp *TestSuite) TestObjectData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)

	r, err := api.Object().Data(ctx, p1)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "foo", string(data))

	raw, err := api.Block().Put(ctx, strings.NewReader("raw bytes"))
	require.NoError(t, err)
	_, err = api.Object().Data(ctx, raw.Path())
	require.ErrorIs(t, err, dag.ErrNotProtobuf)
}

func (tp *TestSuite) TestObjectLinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	c1, _, err := path.SplitAbsPath(p1)
	require.NoError(t, err)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Links":[{"Name":"bar", "Hash":"`+c1.String()+`"}]}`))
	require.NoError(t, err)

	links, err := api.Object().Links(ctx, p2)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, c1, links[0].Cid)
	require.Equal(t, "bar", links[0].Name)

	_, err = api.Object().Put(ctx, strings.NewReader(`{"Links":[{"Name":"bar", "Hash":"not-a-cid"}]}`))
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectStat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	c1, _, err := path.SplitAbsPath(p1)
	require.NoError(t, err)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"bazz", "Links":[{"Name":"bar", "Hash":"`+c1.String()+`", "Size":3}]}`))
	require.NoError(t, err)

	stat, err := api.Object().Stat(ctx, p2)
	require.NoError(t, err)

	c2, _, err := path.SplitAbsPath(p2)
	require.NoError(t, err)
	require.Equal(t, c2, stat.Cid)
	require.Equal(t, 1, stat.NumLinks)
	require.Equal(t, 51, stat.BlockSize)
	require.Equal(t, 47, stat.LinksSize)
	require.Equal(t, 4, stat.DataSize)
	require.Equal(t, 54, stat.CumulativeSize)
}

func (tp *TestSuite) TestObjectAddLink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	c1, _, err := path.SplitAbsPath(p1)
	require.NoError(t, err)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"bazz", "Links":[{"Name":"bar", "Hash":"`+c1.String()+`", "Size":3}]}`))
	require.NoError(t, err)

	p3, err := api.Object().AddLink(ctx, p2, "abc", p2)
	require.NoError(t, err)

	links, err := api.Object().Links(ctx, p3)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "bar", links[0].Name)
	require.Equal(t, "abc", links[1].Name)

	// the base is left untouched
	links, err = api.Object().Links(ctx, p2)
	require.NoError(t, err)
	require.Len(t, links, 1)

	// nested names need existing intermediate nodes
	_, err = api.Object().AddLink(ctx, p2, "missing/abc", p2)
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectAddLinkCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	c1, _, err := path.SplitAbsPath(p1)
	require.NoError(t, err)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"bazz", "Links":[{"Name":"bar", "Hash":"`+c1.String()+`", "Size":3}]}`))
	require.NoError(t, err)

	p3, err := api.Object().AddLink(ctx, p2, "abc/d", p2, opt.Object.Create(true))
	require.NoError(t, err)

	links, err := api.Object().Links(ctx, p3)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "abc", links[1].Name)

	nd, err := api.ResolveNode(ctx, p3+"/abc/d")
	require.NoError(t, err)
	require.Equal(t, p2, path.FromCid(nd.Cid()))
}

func (tp *TestSuite) TestObjectRmLink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	c1, _, err := path.SplitAbsPath(p1)
	require.NoError(t, err)

	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"bazz", "Links":[{"Name":"bar", "Hash":"`+c1.String()+`", "Size":3}]}`))
	require.NoError(t, err)

	p3, err := api.Object().RmLink(ctx, p2, "bar")
	require.NoError(t, err)

	links, err := api.Object().Links(ctx, p3)
	require.NoError(t, err)
	require.Empty(t, links)

	_, err = api.Object().RmLink(ctx, p3, "bar")
	require.Error(t, err)
}

func (tp *TestSuite) TestObjectAddData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)

	p2, err := api.Object().AppendData(ctx, p1, strings.NewReader("bar"))
	require.NoError(t, err)

	r, err := api.Object().Data(ctx, p2)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "foobar", string(data))

	r, err = api.Object().Data(ctx, p1)
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "foo", string(data))
}

func (tp *TestSuite) TestObjectSetData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)

	p2, err := api.Object().SetData(ctx, p1, strings.NewReader("bar"))
	require.NoError(t, err)

	r, err := api.Object().Data(ctx, p2)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "bar", string(data))
}

func (tp *TestSuite) TestDiffTest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p1, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"foo"}`))
	require.NoError(t, err)
	p2, err := api.Object().Put(ctx, strings.NewReader(`{"Data":"bar"}`))
	require.NoError(t, err)

	base, err := api.Object().New(ctx)
	require.NoError(t, err)
	basePath := path.FromCid(base.Cid())

	d1, err := api.Object().AddLink(ctx, basePath, "x", p1)
	require.NoError(t, err)
	d2, err := api.Object().AddLink(ctx, basePath, "x", p2)
	require.NoError(t, err)

	changes, err := api.Object().Diff(ctx, d1, d2)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, coreiface.DiffMod, changes[0].Type)
	require.Equal(t, "x", changes[0].Path)
	require.Equal(t, p1, changes[0].Before)
	require.Equal(t, p2, changes[0].After)

	changes, err = api.Object().Diff(ctx, basePath, d1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, coreiface.DiffAdd, changes[0].Type)
	require.Equal(t, p1, changes[0].After)
	require.Empty(t, changes[0].Before)

	changes, err = api.Object().Diff(ctx, d1, basePath)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, coreiface.DiffRemove, changes[0].Type, fmt.Sprint(changes[0]))
	require.Equal(t, p1, changes[0].Before)

	changes, err = api.Object().Diff(ctx, d1, d1)
	require.NoError(t, err)
	require.Empty(t, changes)
}
