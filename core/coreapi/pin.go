package coreapi

import (
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	bserv "github.com/ipfs/kubo-core/blockservice"
	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	caopts "github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/exchange/offline"
	"github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/path"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/tracing"
)

type PinAPI CoreAPI

func (api *PinAPI) Add(ctx context.Context, p path.Path, opts ...caopts.PinAddOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "Add", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	dagNode, err := api.core().ResolveNode(ctx, p)
	if err != nil {
		return fmt.Errorf("pin: %w", err)
	}

	settings, err := caopts.PinAddOptions(opts...)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Bool("recursive", settings.Recursive))

	defer api.blockstore.PinLock(ctx).Unlock(ctx)

	err = api.pinning.Pin(ctx, dagNode, settings.Recursive, settings.Name)
	if err != nil {
		return fmt.Errorf("pin: %w", err)
	}

	return api.pinning.Flush(ctx)
}

func (api *PinAPI) Ls(ctx context.Context, out chan<- coreiface.Pin, opts ...caopts.PinLsOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "Ls")
	defer span.End()

	settings, err := caopts.PinLsOptions(opts...)
	if err != nil {
		close(out)
		return err
	}

	span.SetAttributes(attribute.String("type", settings.Type))

	return api.pinLsAll(ctx, out, settings.Type, settings.Detailed)
}

func (api *PinAPI) IsPinned(ctx context.Context, p path.Path, opts ...caopts.PinIsPinnedOption) (string, bool, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "IsPinned", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.core().resolveCid(ctx, p)
	if err != nil {
		return "", false, fmt.Errorf("error resolving path: %w", err)
	}

	settings, err := caopts.PinIsPinnedOptions(opts...)
	if err != nil {
		return "", false, err
	}

	span.SetAttributes(attribute.String("withtype", settings.WithType))

	mode, ok := pin.StringToMode(settings.WithType)
	if !ok {
		return "", false, fmt.Errorf("invalid type '%s', must be one of {direct, indirect, recursive, all}", settings.WithType)
	}

	return api.pinning.IsPinnedWithType(ctx, c, mode)
}

// Rm pin rm api
func (api *PinAPI) Rm(ctx context.Context, p path.Path, opts ...caopts.PinRmOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "Rm", trace.WithAttributes(attribute.String("path", p.String())))
	defer span.End()

	c, err := api.core().resolveCid(ctx, p)
	if err != nil {
		return err
	}

	settings, err := caopts.PinRmOptions(opts...)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Bool("recursive", settings.Recursive))

	// Note: after unpin the pin sets are flushed to the blockstore, so we need
	// to take a lock to prevent a concurrent garbage collection
	defer api.blockstore.PinLock(ctx).Unlock(ctx)

	if settings.Name != "" {
		err = api.pinning.UnpinName(ctx, c, settings.Name)
	} else {
		err = api.pinning.Unpin(ctx, c, settings.Recursive)
	}
	if err != nil {
		return err
	}

	return api.pinning.Flush(ctx)
}

func (api *PinAPI) Update(ctx context.Context, from path.Path, to path.Path, opts ...caopts.PinUpdateOption) error {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "Update", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	defer span.End()

	settings, err := caopts.PinUpdateOptions(opts...)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Bool("unpin", settings.Unpin))

	fc, err := api.core().resolveCid(ctx, from)
	if err != nil {
		return err
	}

	tc, err := api.core().resolveCid(ctx, to)
	if err != nil {
		return err
	}

	defer api.blockstore.PinLock(ctx).Unlock(ctx)

	err = api.pinning.Update(ctx, fc, tc, settings.Unpin)
	if err != nil {
		return err
	}

	return api.pinning.Flush(ctx)
}

type pinStatus struct {
	cid      cid.Cid
	ok       bool
	badNodes []coreiface.BadPinNode
	err      error
}

// BadNode is used in PinVerifyRes
type badNode struct {
	path path.Path
	err  error
}

func (s *pinStatus) Cid() cid.Cid {
	return s.cid
}

func (s *pinStatus) Ok() bool {
	return s.ok
}

func (s *pinStatus) BadNodes() []coreiface.BadPinNode {
	return s.badNodes
}

func (s *pinStatus) Err() error {
	return s.err
}

func (n *badNode) Path() path.Path {
	return n.path
}

func (n *badNode) Err() error {
	return n.err
}

// Verify reads only local blocks: a pin whose blocks are missing is
// reported bad rather than fetched.
func (api *PinAPI) Verify(ctx context.Context) (<-chan coreiface.PinStatus, error) {
	ctx, span := tracing.Span(ctx, "CoreAPI.PinAPI", "Verify")
	defer span.End()

	DAG := merkledag.NewDAGService(bserv.New(api.blockstore, offline.Exchange()))
	statuses, err := pin.Verify(ctx, api.pinning, DAG)
	if err != nil {
		return nil, err
	}

	out := make(chan coreiface.PinStatus)
	go func() {
		defer close(out)
		for _, st := range statuses {
			res := &pinStatus{cid: st.Cid, ok: st.Ok}
			for _, bad := range st.BadNodes {
				res.badNodes = append(res.badNodes, &badNode{path: path.FromCid(bad.Cid), err: bad.Err})
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

type pinInfo struct {
	pinType string
	path    path.Path
	names   []string
	err     error
}

func (p *pinInfo) Path() path.Path {
	return p.path
}

func (p *pinInfo) Names() []string {
	return p.names
}

func (p *pinInfo) Type() string {
	return p.pinType
}

func (p *pinInfo) Err() error {
	return p.err
}

// pinLsAll is an internal function for returning a list of pins
//
// The caller must keep reading results until the channel is closed to prevent
// leaking the goroutine that is fetching pins.
func (api *PinAPI) pinLsAll(ctx context.Context, out chan<- coreiface.Pin, typeStr string, detailed bool) error {
	defer close(out)

	keys := cid.NewSet()

	AddToResultKeys := func(keyList []cid.Cid, typeStr string) error {
		for _, c := range keyList {
			if !keys.Visit(c) {
				continue
			}
			info := &pinInfo{
				pinType: typeStr,
				path:    path.FromCid(c),
			}
			if detailed && typeStr != "indirect" {
				names, err := api.pinning.Names(ctx, c)
				if err != nil {
					return err
				}
				info.names = names
			}
			select {
			case out <- info:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	VisitKeys := func(keyList []cid.Cid) {
		for _, c := range keyList {
			keys.Visit(c)
		}
	}

	indirect := func(rkeys []cid.Cid) ([]cid.Cid, error) {
		set := cid.NewSet()
		for _, k := range rkeys {
			err := merkledag.EnumerateChildren(ctx, merkledag.GetLinksWithDAG(api.dag), k, set.Visit)
			if err != nil {
				return nil, err
			}
		}
		return set.Keys(), nil
	}

	var rkeys []cid.Cid
	var err error
	if typeStr != "direct" {
		rkeys, err = api.pinning.RecursiveKeys(ctx)
		if err != nil {
			return err
		}
	}

	if typeStr == "recursive" || typeStr == "all" {
		if err := AddToResultKeys(rkeys, "recursive"); err != nil {
			return err
		}
	}

	var dkeys []cid.Cid
	if typeStr != "recursive" {
		dkeys, err = api.pinning.DirectKeys(ctx)
		if err != nil {
			return err
		}
	}

	switch typeStr {
	case "direct":
		return AddToResultKeys(dkeys, "direct")
	case "all":
		if err := AddToResultKeys(dkeys, "direct"); err != nil {
			return err
		}
	case "indirect":
		// direct and recursive pins take priority over indirect ones
		VisitKeys(dkeys)
		VisitKeys(rkeys)
	}

	if typeStr == "all" || typeStr == "indirect" {
		ikeys, err := indirect(rkeys)
		if err != nil {
			return err
		}
		return AddToResultKeys(ikeys, "indirect")
	}
	return nil
}

func (api *PinAPI) core() *CoreAPI {
	return (*CoreAPI)(api)
}
