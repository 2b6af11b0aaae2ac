package coreunix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	gopath "path"
	"strconv"
	"strings"
	"time"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	"github.com/ipfs/kubo-core/importer"
	"github.com/ipfs/kubo-core/importer/chunk"
	ihelper "github.com/ipfs/kubo-core/importer/helpers"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/unixfs"
	uio "github.com/ipfs/kubo-core/unixfs/io"

	"github.com/ipfs/boxo/files"
	cid "github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("coreunix")

// how many bytes of progress to wait before sending a progress update message
const progressReaderIncrement = 1024 * 256

// DefaultParallelism bounds how many sibling entries are imported at once.
const DefaultParallelism = 8

// NewAdder Returns a new Adder used for a file add operation. gcLocker may be
// nil when nothing written by the adder needs to survive a GC run.
func NewAdder(ctx context.Context, p pin.Pinner, gcLocker bstore.GCLocker, ds ipld.DAGService) (*Adder, error) {
	return &Adder{
		ctx:         ctx,
		pinning:     p,
		gcLocker:    gcLocker,
		dagService:  ds,
		Progress:    false,
		Hidden:      true,
		Pin:         true,
		Trickle:     false,
		Wrap:        false,
		Chunker:     "",
		Parallelism: DefaultParallelism,
	}, nil
}

// Adder holds the switches passed to the `add` command.
type Adder struct {
	ctx        context.Context
	pinning    pin.Pinner
	gcLocker   bstore.GCLocker
	dagService ipld.DAGService
	Out        chan<- interface{}
	Progress   bool
	Hidden     bool
	Pin        bool
	PinName    string
	Trickle    bool
	RawLeaves  bool
	MaxLinks   int
	Silent     bool
	Wrap       bool
	Name       string
	Chunker    string
	CidBuilder cid.Builder

	// Parallelism bounds the sibling entries imported concurrently.
	Parallelism int
	// MaxBatchNodes and MaxBatchSize bound the per-file write batch.
	MaxBatchNodes int
	MaxBatchSize  int

	PreserveMode  bool
	PreserveMtime bool
	// FileMode and FileMtime are recorded on the root of the add.
	FileMode  os.FileMode
	FileMtime time.Time

	root ipld.Node
}

// added is a finished entry together with the events of its subtree, in
// the order they are reported.
type added struct {
	node   ipld.Node
	events []*coreiface.AddEvent
}

// RootNode returns the root node of the last completed add.
func (adder *Adder) RootNode() (ipld.Node, error) {
	if adder.root == nil {
		return nil, errors.New("nothing has been added yet")
	}
	return adder.root, nil
}

// AddAllAndPin imports file, wraps it if asked and pins the root. Writes
// happen under the pin lock so a concurrent GC cannot sweep them before the
// root is pinned.
func (adder *Adder) AddAllAndPin(file files.Node) (ipld.Node, error) {
	ctx := adder.ctx
	if adder.gcLocker != nil {
		unlocker := adder.gcLocker.PinLock(ctx)
		defer unlocker.Unlock(ctx)
	}

	res, err := adder.addFileNode(ctx, "", file, true)
	if err != nil {
		return nil, err
	}

	if adder.Wrap {
		name := adder.Name
		if name == "" {
			name = res.node.Cid().String()
		}
		res, err = adder.wrap(ctx, name, res)
		if err != nil {
			return nil, err
		}
	}

	events := res.events
	if adder.Silent && len(events) > 0 {
		events = events[len(events)-1:]
	}
	for _, ev := range events {
		if err := adder.emit(ctx, ev); err != nil {
			return nil, err
		}
	}

	adder.root = res.node
	if err := adder.PinRoot(ctx, res.node); err != nil {
		return nil, err
	}
	return res.node, nil
}

// PinRoot recursively pins the root node of the add.
func (adder *Adder) PinRoot(ctx context.Context, root ipld.Node) error {
	if !adder.Pin {
		return nil
	}

	if err := adder.pinning.PinWithMode(ctx, root.Cid(), pin.Recursive, adder.PinName); err != nil {
		return err
	}
	return adder.pinning.Flush(ctx)
}

func (adder *Adder) wrap(ctx context.Context, name string, res *added) (*added, error) {
	dir := uio.NewDirectory(adder.dagService)
	if err := dir.SetCidBuilder(adder.CidBuilder); err != nil {
		return nil, err
	}
	if err := dir.AddChild(ctx, name, res.node); err != nil {
		return nil, err
	}
	nd, err := dir.GetNode()
	if err != nil {
		return nil, err
	}
	if err := adder.dagService.Add(ctx, nd); err != nil {
		return nil, err
	}

	events := make([]*coreiface.AddEvent, 0, len(res.events)+1)
	for _, ev := range res.events {
		ev.Name = gopath.Join(name, relName(ev.Name, res.node))
		events = append(events, ev)
	}
	ev, err := adder.event("", nd, 0, time.Time{})
	if err != nil {
		return nil, err
	}
	return &added{node: nd, events: append(events, ev)}, nil
}

// relName maps the name a root entry is reported under back to the empty
// name so wrapped entries are reported under the wrapper.
func relName(name string, root ipld.Node) string {
	if name == root.Cid().String() {
		return ""
	}
	return name
}

func (adder *Adder) addFileNode(ctx context.Context, path string, file files.Node, toplevel bool) (*added, error) {
	defer file.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", coreiface.ErrCancelled, err)
	}

	mode, mtime := adder.stat(file, toplevel)

	switch f := file.(type) {
	case files.Directory:
		return adder.addDir(ctx, path, f, mode, mtime)
	case *files.Symlink:
		return adder.addSymlink(ctx, path, f, mode, mtime)
	case files.File:
		return adder.addFile(ctx, path, f, mode, mtime)
	default:
		return nil, errors.New("unknown file type")
	}
}

// stat picks the metadata recorded for an entry: explicit values win on the
// root of the add, preserved values come from the input node.
func (adder *Adder) stat(file files.Node, toplevel bool) (os.FileMode, time.Time) {
	var (
		mode  os.FileMode
		mtime time.Time
	)
	if adder.PreserveMode {
		mode = file.Mode()
	}
	if adder.PreserveMtime {
		mtime = file.ModTime()
	}
	if toplevel {
		if adder.FileMode != 0 {
			mode = adder.FileMode
		}
		if !adder.FileMtime.IsZero() {
			mtime = adder.FileMtime
		}
	}
	return mode, mtime
}

func (adder *Adder) addSymlink(ctx context.Context, path string, l *files.Symlink, mode os.FileMode, mtime time.Time) (*added, error) {
	fsn := unixfs.NewFSNode(unixfs.TSymlink)
	fsn.SetData([]byte(l.Target))
	if mode != 0 {
		fsn.SetMode(mode)
	}
	if !mtime.IsZero() {
		fsn.SetModTime(mtime)
	}
	sdata, err := fsn.GetBytes()
	if err != nil {
		return nil, err
	}

	dagnode := dag.NodeWithData(sdata)
	if err := dagnode.SetCidBuilder(adder.CidBuilder); err != nil {
		return nil, err
	}
	if err := adder.dagService.Add(ctx, dagnode); err != nil {
		return nil, err
	}

	return adder.leaf(path, dagnode, mode, mtime)
}

func (adder *Adder) addFile(ctx context.Context, path string, file files.File, mode os.FileMode, mtime time.Time) (*added, error) {
	var reader io.Reader = file
	if adder.Progress && adder.Out != nil {
		reader = &progressReader{ctx: ctx, file: reader, path: path, out: adder.Out}
	}

	spl, err := chunk.FromString(reader, adder.Chunker)
	if err != nil {
		return nil, err
	}

	var batchOpts []ipld.BatchOption
	if adder.MaxBatchNodes > 0 {
		batchOpts = append(batchOpts, ipld.MaxNodesBatchOption(adder.MaxBatchNodes))
	}
	if adder.MaxBatchSize > 0 {
		batchOpts = append(batchOpts, ipld.MaxSizeBatchOption(adder.MaxBatchSize))
	}
	buffered := ipld.NewBufferedDAG(ctx, adder.dagService, batchOpts...)

	params := ihelper.DagBuilderParams{
		Dagserv:     buffered,
		RawLeaves:   adder.RawLeaves,
		Maxlinks:    adder.MaxLinks,
		CidBuilder:  adder.CidBuilder,
		FileMode:    mode,
		FileModTime: mtime,
	}
	if params.Maxlinks == 0 {
		params.Maxlinks = ihelper.DefaultLinksPerBlock
	}

	dagnode, err := importer.Import(ctx, params, spl, adder.Trickle)
	if err != nil {
		return nil, err
	}
	if err := buffered.Commit(); err != nil {
		return nil, err
	}

	log.Debugw("added file", "path", path, "cid", dagnode.Cid())
	return adder.leaf(path, dagnode, mode, mtime)
}

// isHidden reports dot-files. "." and ".." never show up as entries.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (adder *Adder) addDir(ctx context.Context, path string, dir files.Directory, mode os.FileMode, mtime time.Time) (*added, error) {
	log.Infof("adding directory: %s", path)

	type entry struct {
		name string
		node files.Node
	}
	var entries []entry
	it := dir.Entries()
	for it.Next() {
		fpath := gopath.Join(path, it.Name())
		if isHidden(it.Name()) && !adder.Hidden {
			log.Infof("%s is hidden, skipping", fpath)
			it.Node().Close()
			continue
		}
		entries = append(entries, entry{it.Name(), it.Node()})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	results := make([]*added, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	if adder.Parallelism > 0 {
		g.SetLimit(adder.Parallelism)
	}
	for i, e := range entries {
		g.Go(func() error {
			res, err := adder.addFileNode(gctx, gopath.Join(path, e.name), e.node, false)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	udir := uio.NewDirectory(adder.dagService)
	if err := udir.SetCidBuilder(adder.CidBuilder); err != nil {
		return nil, err
	}
	udir.SetStat(mode, mtime)

	var events []*coreiface.AddEvent
	for i, e := range entries {
		if err := udir.AddChild(ctx, e.name, results[i].node); err != nil {
			return nil, err
		}
		events = append(events, results[i].events...)
	}

	nd, err := udir.GetNode()
	if err != nil {
		return nil, err
	}
	if err := adder.dagService.Add(ctx, nd); err != nil {
		return nil, err
	}

	ev, err := adder.event(path, nd, mode, mtime)
	if err != nil {
		return nil, err
	}
	return &added{node: nd, events: append(events, ev)}, nil
}

func (adder *Adder) leaf(path string, nd ipld.Node, mode os.FileMode, mtime time.Time) (*added, error) {
	res := &added{node: nd}
	ev, err := adder.event(path, nd, mode, mtime)
	if err != nil {
		return nil, err
	}
	res.events = []*coreiface.AddEvent{ev}
	return res, nil
}

// event describes a finished node. The root of the add has no name of its
// own and is reported under its CID.
func (adder *Adder) event(name string, nd ipld.Node, mode os.FileMode, mtime time.Time) (*coreiface.AddEvent, error) {
	s, err := nd.Size()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = nd.Cid().String()
	}

	ev := &coreiface.AddEvent{
		Name: name,
		Path: path.FromCid(nd.Cid()),
		Size: strconv.FormatUint(s, 10),
		Mode: mode,
	}
	if !mtime.IsZero() {
		ev.Mtime = mtime.Unix()
		ev.MtimeNsecs = mtime.Nanosecond()
	}
	return ev, nil
}

func (adder *Adder) emit(ctx context.Context, ev *coreiface.AddEvent) error {
	if adder.Out == nil {
		return nil
	}
	select {
	case adder.Out <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", coreiface.ErrCancelled, ctx.Err())
	}
}

type progressReader struct {
	ctx          context.Context
	file         io.Reader
	path         string
	out          chan<- interface{}
	bytes        int64
	lastProgress int64
	done         bool
}

func (i *progressReader) Read(p []byte) (int, error) {
	n, err := i.file.Read(p)

	i.bytes += int64(n)
	if i.done {
		return n, err
	}
	if i.bytes-i.lastProgress >= progressReaderIncrement || err == io.EOF {
		i.lastProgress = i.bytes
		i.done = err == io.EOF
		select {
		case i.out <- &coreiface.AddEvent{Name: i.path, Bytes: i.bytes}:
		case <-i.ctx.Done():
			return n, i.ctx.Err()
		}
	}

	return n, err
}
