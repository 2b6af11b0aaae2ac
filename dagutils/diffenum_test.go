package dagutils

import (
	"context"
	"slices"
	"sync"
	"testing"

	dag "github.com/ipfs/kubo-core/merkledag"
	mdtest "github.com/ipfs/kubo-core/merkledag/test"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func buildNode(name string, desc map[string]ndesc, out map[string]format.Node) format.Node {
	this := desc[name]
	nd := new(dag.ProtoNode)
	nd.SetData([]byte(name))

	// links keep insertion order, so add them in a stable one
	keys := make([]string, 0, len(this))
	for k := range this {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := this[k]
		child, ok := out[v]
		if !ok {
			child = buildNode(v, desc, out)
			out[v] = child
		}

		if err := nd.AddNodeLink(k, child); err != nil {
			panic(err)
		}
	}

	return nd
}

type ndesc map[string]string

func mkGraph(desc map[string]ndesc) map[string]format.Node {
	out := make(map[string]format.Node)
	for name := range desc {
		if _, ok := out[name]; ok {
			continue
		}

		out[name] = buildNode(name, desc, out)
	}
	return out
}

var tg1 = map[string]ndesc{
	"a1": {
		"foo": "b",
	},
	"b": {},
	"a2": {
		"foo": "b",
		"bar": "c",
	},
	"c": {},
}

var tg2 = map[string]ndesc{
	"a1": {
		"foo": "b",
	},
	"b": {},
	"a2": {
		"foo": "b",
		"bar": "c",
	},
	"c": {"baz": "d"},
	"d": {},
}

var tg3 = map[string]ndesc{
	"a1": {
		"foo": "b",
		"bar": "c",
	},
	"b": {},
	"a2": {
		"foo": "b",
		"bar": "d",
	},
	"c": {},
	"d": {},
}

var tg4 = map[string]ndesc{
	"a1": {
		"key1": "b",
		"key2": "c",
	},
	"a2": {
		"key1": "b",
		"key2": "d",
	},
}

var tg5 = map[string]ndesc{
	"a1": {
		"key1": "a",
		"key2": "b",
	},
	"a2": {
		"key1": "c",
		"key2": "d",
	},
}

func TestNameMatching(t *testing.T) {
	nds := mkGraph(tg4)

	diff := getLinkDiff(nds["a1"], nds["a2"])
	require.Len(t, diff, 1, "node diff didn't match by name")
}

func TestNameMatching2(t *testing.T) {
	nds := mkGraph(tg5)

	diff := getLinkDiff(nds["a1"], nds["a2"])
	require.Len(t, diff, 2)
	require.Equal(t, nds["a1"].Links()[0].Cid, diff[0].bef)
	require.Equal(t, nds["a2"].Links()[0].Cid, diff[0].aft)
}

type getLogger struct {
	ds format.NodeGetter

	lk  sync.Mutex
	log []cid.Cid
}

func (gl *getLogger) Get(ctx context.Context, c cid.Cid) (format.Node, error) {
	nd, err := gl.ds.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	gl.lk.Lock()
	gl.log = append(gl.log, c)
	gl.lk.Unlock()
	return nd, nil
}

func (gl *getLogger) GetMany(ctx context.Context, cids []cid.Cid) <-chan *format.NodeOption {
	outCh := make(chan *format.NodeOption, len(cids))
	for no := range gl.ds.GetMany(ctx, cids) {
		if no.Err == nil {
			gl.lk.Lock()
			gl.log = append(gl.log, no.Node.Cid())
			gl.lk.Unlock()
		}
		outCh <- no
	}
	close(outCh)
	return outCh
}

func (gl *getLogger) fetched() []cid.Cid {
	gl.lk.Lock()
	defer gl.lk.Unlock()
	return slices.Clone(gl.log)
}

func addAll(t *testing.T, ds format.DAGService, nds map[string]format.Node, names ...string) {
	for _, s := range names {
		require.NoError(t, ds.Add(context.Background(), nds[s]))
	}
}

func TestDiffEnumBasic(t *testing.T) {
	ctx := context.Background()
	nds := mkGraph(tg1)

	ds := mdtest.Mock()
	lgds := &getLogger{ds: ds}
	addAll(t, ds, nds, "a1", "a2", "b", "c")

	require.NoError(t, DiffEnumerate(ctx, lgds, nds["a1"].Cid(), nds["a2"].Cid()))
	require.ElementsMatch(t, []cid.Cid{nds["a1"].Cid(), nds["a2"].Cid(), nds["c"].Cid()}, lgds.fetched())
}

func TestDiffEnumFail(t *testing.T) {
	ctx := context.Background()
	nds := mkGraph(tg2)

	ds := mdtest.Mock()
	lgds := &getLogger{ds: ds}
	addAll(t, ds, nds, "a1", "a2", "b", "c")

	err := DiffEnumerate(ctx, lgds, nds["a1"].Cid(), nds["a2"].Cid())
	require.True(t, format.IsNotFound(err), "expected err not found, got %v", err)
	require.ElementsMatch(t, []cid.Cid{nds["a1"].Cid(), nds["a2"].Cid(), nds["c"].Cid()}, lgds.fetched())
}

func TestDiffEnumRecurse(t *testing.T) {
	ctx := context.Background()
	nds := mkGraph(tg3)

	ds := mdtest.Mock()
	lgds := &getLogger{ds: ds}
	addAll(t, ds, nds, "a1", "a2", "b", "c", "d")

	require.NoError(t, DiffEnumerate(ctx, lgds, nds["a1"].Cid(), nds["a2"].Cid()))
	require.ElementsMatch(t, []cid.Cid{nds["a1"].Cid(), nds["a2"].Cid(), nds["c"].Cid(), nds["d"].Cid()}, lgds.fetched())
}
