package coreapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/boxo/files"
	ipld "github.com/ipfs/go-ipld-format"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/config"
	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	options "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/core/coreunix"
	"github.com/ipfs/kubo-core/dagutils"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/tracing"
	ft "github.com/ipfs/kubo-core/unixfs"
	uarchive "github.com/ipfs/kubo-core/unixfs/archive"
	unixfile "github.com/ipfs/kubo-core/unixfs/file"
	uio "github.com/ipfs/kubo-core/unixfs/io"
)

type UnixfsAPI CoreAPI

// Add builds a merkledag node from a reader, adds it to the blockstore,
// and returns the key representing that node.
func (api *UnixfsAPI) Add(ctx context.Context, filesNode files.Node, opts ...options.UnixfsAddOption) (path.Path, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "Add")
	defer span.End()

	defaults, err := api.core().unixfsAddDefaults()
	if err != nil {
		return "", err
	}

	settings, prefix, err := options.UnixfsAddOptions(append(defaults, opts...)...)
	if err != nil {
		return "", err
	}

	span.SetAttributes(
		attribute.String("chunker", settings.Chunker),
		attribute.Int("cidversion", settings.CidVersion),
		attribute.Bool("rawleaves", settings.RawLeaves),
		attribute.Int("maxlinks", settings.MaxLinks),
		attribute.Int("layout", int(settings.Layout)),
		attribute.Bool("pin", settings.Pin),
		attribute.Bool("onlyhash", settings.OnlyHash),
		attribute.Bool("wrap", settings.Wrap),
		attribute.Bool("hidden", settings.Hidden),
		attribute.Bool("silent", settings.Silent),
		attribute.Bool("progress", settings.Progress),
	)

	imp, err := api.core().importConfig()
	if err != nil {
		return "", err
	}

	var (
		pinning                  = api.pinning
		gcLocker bstore.GCLocker = api.blockstore
		dserv                    = api.dag
	)
	if settings.OnlyHash {
		// everything goes to a throwaway store; nothing needs GC protection
		dserv = dagutils.NewMemoryDagService()
		pinning = nil
		gcLocker = nil
	}

	fileAdder, err := coreunix.NewAdder(ctx, pinning, gcLocker, dserv)
	if err != nil {
		return "", err
	}

	fileAdder.Chunker = settings.Chunker
	if settings.Events != nil {
		fileAdder.Out = settings.Events
		fileAdder.Progress = settings.Progress
	}
	fileAdder.Pin = settings.Pin && !settings.OnlyHash
	fileAdder.PinName = settings.PinName
	fileAdder.Hidden = settings.Hidden
	fileAdder.Silent = settings.Silent
	fileAdder.Wrap = settings.Wrap
	fileAdder.Name = settings.StdinName
	fileAdder.RawLeaves = settings.RawLeaves
	fileAdder.MaxLinks = settings.MaxLinks
	fileAdder.CidBuilder = prefix
	fileAdder.Trickle = settings.Layout == options.TrickleLayout

	fileAdder.Parallelism = int(imp.AddParallelism.WithDefault(config.DefaultAddParallelism))
	fileAdder.MaxBatchNodes = int(imp.BatchMaxNodes.WithDefault(config.DefaultBatchMaxNodes))
	fileAdder.MaxBatchSize = int(imp.BatchMaxSize.WithDefault(config.DefaultBatchMaxSize))

	fileAdder.PreserveMode = settings.PreserveMode
	fileAdder.PreserveMtime = settings.PreserveMtime
	fileAdder.FileMode = settings.Mode
	fileAdder.FileMtime = settings.Mtime

	nd, err := fileAdder.AddAllAndPin(filesNode)
	if err != nil {
		return "", err
	}

	return path.FromCid(nd.Cid()), nil
}

func (api *UnixfsAPI) Get(ctx context.Context, p path.Path) (files.Node, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "Get", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	nd, err := api.core().ResolveNode(ctx, p)
	if err != nil {
		return nil, err
	}

	return unixfile.NewUnixfsFile(ctx, api.dag, nd)
}

// Cat returns the data contained by an IPFS or IPNS object(s) at path `p`.
func (api *UnixfsAPI) Cat(ctx context.Context, p path.Path, opts ...options.UnixfsCatOption) (io.ReadCloser, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "Cat", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	settings, err := options.UnixfsCatOptions(opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("offset", settings.Offset), attribute.Int64("length", settings.Length))

	nd, err := api.core().ResolveNode(ctx, p)
	if err != nil {
		return nil, err
	}

	r, err := uio.NewDagReader(ctx, nd, api.dag)
	if err != nil {
		if errors.Is(err, uio.ErrIsDir) {
			return nil, coreiface.ErrIsDir
		}
		return nil, err
	}

	if settings.Offset > 0 {
		if uint64(settings.Offset) > r.Size() {
			r.Close()
			return nil, fmt.Errorf("offset %d is past the end of the file (%d bytes)", settings.Offset, r.Size())
		}
		if _, err := r.Seek(settings.Offset, io.SeekStart); err != nil {
			r.Close()
			return nil, err
		}
	}

	if settings.Length < 0 {
		return r, nil
	}
	return &limitedReader{Reader: io.LimitReader(r, settings.Length), Closer: r}, nil
}

type limitedReader struct {
	io.Reader
	io.Closer
}

// Archive writes the tree under p as a tar stream.
func (api *UnixfsAPI) Archive(ctx context.Context, p path.Path, archive bool, compression int) (io.Reader, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "Archive", trace.WithAttributes(
		attribute.String("path", p.String()),
		attribute.Bool("archive", archive),
		attribute.Int("compression", compression),
	))
	defer span.End()

	nd, err := api.core().ResolveNode(ctx, p)
	if err != nil {
		return nil, err
	}

	name := nd.Cid().String()
	if segs := p.Segments(); len(segs) > 2 {
		name = segs[len(segs)-1]
	}

	return uarchive.DagArchive(ctx, nd, name, api.dag, archive, compression)
}

// Ls returns the contents of an IPFS or IPNS object(s) at path p, with the format:
// `<link base58 hash> <link size in bytes> <link name>`
func (api *UnixfsAPI) Ls(ctx context.Context, p path.Path, out chan<- coreiface.DirEntry, opts ...options.UnixfsLsOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "Ls", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	defer close(out)

	settings, err := options.UnixfsLsOptions(opts...)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Bool("resolvechildren", settings.ResolveChildren))

	dagnode, err := api.core().ResolveNode(ctx, p)
	if err != nil {
		return err
	}

	var links []*ipld.Link
	dir, err := uio.NewDirectoryFromNode(api.dag, dagnode)
	switch {
	case err == nil:
		links = dir.Links()
	case errors.Is(err, uio.ErrNotADir):
		links = dagnode.Links()
	default:
		return err
	}

	for _, l := range links {
		entry, err := api.processLink(ctx, l, settings)
		if err != nil {
			return lsErr(ctx, err)
		}
		select {
		case out <- entry:
		case <-ctx.Done():
			return lsErr(ctx, ctx.Err())
		}
	}
	return nil
}

// lsErr reports a failure caused by ctx ending as ErrCancelled.
func lsErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, coreiface.ErrCancelled) {
		return fmt.Errorf("%w: %w", coreiface.ErrCancelled, ctxErr)
	}
	return err
}

func (api *UnixfsAPI) processLink(ctx context.Context, linkres *ipld.Link, settings *options.UnixfsLsSettings) (coreiface.DirEntry, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.UnixfsAPI", "ProcessLink")
	defer span.End()
	span.SetAttributes(attribute.String("linkname", linkres.Name), attribute.String("cid", linkres.Cid.String()))

	lnk := coreiface.DirEntry{
		Name: linkres.Name,
		Cid:  linkres.Cid,
	}

	if settings.UseCumulativeSize {
		lnk.Size = linkres.Size
	}

	if !settings.ResolveChildren {
		return lnk, nil
	}

	linkNode, err := api.dag.Get(ctx, linkres.Cid)
	if err != nil {
		return coreiface.DirEntry{}, err
	}

	switch n := linkNode.(type) {
	case *dag.RawNode:
		lnk.Type = coreiface.TFile
		if !settings.UseCumulativeSize {
			lnk.Size = uint64(len(n.RawData()))
		}
	case *dag.ProtoNode:
		d, err := ft.FSNodeFromBytes(n.Data())
		if err != nil {
			return coreiface.DirEntry{}, err
		}
		switch d.Type() {
		case ft.TFile, ft.TRaw:
			lnk.Type = coreiface.TFile
		case ft.THAMTShard, ft.TDirectory, ft.TMetadata:
			lnk.Type = coreiface.TDirectory
		case ft.TSymlink:
			lnk.Type = coreiface.TSymlink
			lnk.Target = string(d.Data())
		}
		if !settings.UseCumulativeSize {
			lnk.Size = d.FileSize()
			if lnk.Type == coreiface.TSymlink {
				lnk.Size = uint64(len(lnk.Target))
			}
		}
		lnk.Mode = d.Mode()
		lnk.ModTime = d.ModTime()
	}

	return lnk, nil
}

func (api *UnixfsAPI) core() *CoreAPI {
	return (*CoreAPI)(api)
}
