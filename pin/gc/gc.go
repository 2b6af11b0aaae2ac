// Package gc provides garbage collection for the local block store.
package gc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	bserv "github.com/ipfs/kubo-core/blockservice"
	"github.com/ipfs/kubo-core/exchange/offline"
	dag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/pin"
	"github.com/ipfs/kubo-core/thirdparty/verifcid"

	cid "github.com/ipfs/go-cid"
	dstore "github.com/ipfs/go-datastore"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

var log = logging.Logger("gc")

// Result represents an incremental output from a garbage collection
// run.  It contains either an error, or the cid of a removed object.
type Result struct {
	KeyRemoved cid.Cid
	Error      error
}

// GC performs a mark and sweep garbage collection of the blocks in the blockstore
// first, it creates a 'marked' set and adds to it the following:
//   - all recursively pinned blocks, plus all of their descendants (recursively)
//   - bestEffortRoots, plus all of its descendants (recursively)
//   - all directly pinned blocks
//   - all blocks utilized internally by the pinner
//
// The routine then iterates over every block in the blockstore and
// deletes any block that is not found in the marked set.
//
// The whole run holds the GC lock, so no add or pin sequence can interleave
// with it.
func GC(ctx context.Context, bs bstore.GCBlockstore, dstor dstore.Datastore, pn pin.Pinner, bestEffortRoots []cid.Cid) <-chan Result {
	ctx, cancel := context.WithCancel(ctx)

	lockStart := time.Now()
	unlocker := bs.GCLock(ctx)
	log.Debugw("gc lock taken", "wait", time.Since(lockStart))

	bsrv := bserv.New(bs, offline.Exchange())
	ds := dag.NewDAGService(bsrv)

	output := make(chan Result, 128)

	go func() {
		defer cancel()
		defer close(output)
		defer unlocker.Unlock(ctx)

		markStart := time.Now()
		gcs, err := ColoredSet(ctx, pn, ds, bestEffortRoots, output)
		if err != nil {
			select {
			case output <- Result{Error: err}:
			case <-ctx.Done():
			}
			return
		}
		markTime := time.Since(markStart)

		sweepStart := time.Now()
		errors := false
		var removed, failed uint64

	loop:
		for k, err := range bs.AllKeys(ctx) {
			if err != nil {
				if ctx.Err() != nil {
					break loop
				}
				// the sweep cannot tell which blocks it never saw
				log.Errorw("gc sweep aborted", "removed", removed, "error", err)
				select {
				case output <- Result{Error: fmt.Errorf("%w: %w", ErrCannotListBlocks, err)}:
				case <-ctx.Done():
				}
				return
			}
			if gcs.Has(k) {
				continue
			}
			if err := bs.DeleteBlock(ctx, k); err != nil {
				errors = true
				failed++
				select {
				case output <- Result{Error: &CannotDeleteBlockError{k, err}}:
				case <-ctx.Done():
					break loop
				}
				continue
			}
			removed++
			select {
			case output <- Result{KeyRemoved: k}:
			case <-ctx.Done():
				break loop
			}
		}

		log.Desugar().Info("gc sweep done",
			zap.Int("marked", gcs.Len()),
			zap.Uint64("removed", removed),
			zap.Uint64("failed", failed),
			zap.Duration("mark", markTime),
			zap.Duration("sweep", time.Since(sweepStart)),
		)

		if errors {
			select {
			case output <- Result{Error: ErrCannotDeleteSomeBlocks}:
			case <-ctx.Done():
				return
			}
		}

		gds, ok := dstor.(dstore.GCDatastore)
		if !ok {
			return
		}

		if err := gds.CollectGarbage(ctx); err != nil {
			select {
			case output <- Result{Error: err}:
			case <-ctx.Done():
			}
			return
		}
	}()

	return output
}

// Descendants recursively finds all the descendants of the given roots and
// adds them to the given cid.Set, using the provided dag.GetLinks function
// to walk the tree.
func Descendants(ctx context.Context, getLinks dag.GetLinks, set *cid.Set, roots []cid.Cid) error {
	verifyGetLinks := func(ctx context.Context, c cid.Cid) ([]*format.Link, error) {
		if err := verifcid.ValidateCid(c); err != nil {
			return nil, err
		}
		return getLinks(ctx, c)
	}

	verboseCidError := func(err error) error {
		if strings.Contains(err.Error(), verifcid.ErrBelowMinimumHashLength.Error()) ||
			strings.Contains(err.Error(), verifcid.ErrPossiblyInsecureHashFunction.Error()) {
			err = fmt.Errorf("%w: run pin verification to list insecure hashes", err)
			log.Error(err)
		}
		return err
	}

	for _, c := range roots {
		set.Add(c)

		// Walk recursively walks the dag and adds the keys to the given set
		if err := dag.EnumerateChildren(ctx, verifyGetLinks, c, set.Visit); err != nil {
			return verboseCidError(err)
		}
	}

	return nil
}

// ColoredSet computes the set of nodes in the graph that are pinned by the
// pins in the given pinner.
func ColoredSet(ctx context.Context, pn pin.Pinner, ng format.NodeGetter, bestEffortRoots []cid.Cid, output chan<- Result) (*cid.Set, error) {
	// KeySet currently implemented in memory, in the future, may be bloom filter or
	// disk backed to conserve memory.
	errors := false
	gcs := cid.NewSet()
	getLinks := func(ctx context.Context, cid cid.Cid) ([]*format.Link, error) {
		links, err := format.GetLinks(ctx, ng, cid)
		if err != nil {
			errors = true
			select {
			case output <- Result{Error: &CannotFetchLinksError{cid, err}}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return links, nil
	}

	rkeys, err := pn.RecursiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	if err := Descendants(ctx, getLinks, gcs, rkeys); err != nil {
		errors = true
		select {
		case output <- Result{Error: err}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	bestEffortGetLinks := func(ctx context.Context, cid cid.Cid) ([]*format.Link, error) {
		links, err := format.GetLinks(ctx, ng, cid)
		if err != nil && !format.IsNotFound(err) {
			errors = true
			select {
			case output <- Result{Error: &CannotFetchLinksError{cid, err}}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return links, nil
	}
	if err := Descendants(ctx, bestEffortGetLinks, gcs, bestEffortRoots); err != nil {
		errors = true
		select {
		case output <- Result{Error: err}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	dkeys, err := pn.DirectKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range dkeys {
		gcs.Add(k)
	}

	ikeys, err := pn.InternalPins(ctx)
	if err != nil {
		return nil, err
	}
	if err := Descendants(ctx, getLinks, gcs, ikeys); err != nil {
		errors = true
		select {
		case output <- Result{Error: err}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if errors {
		return nil, ErrCannotFetchAllLinks
	}

	return gcs, nil
}

// ErrCannotFetchAllLinks is returned as the last Result in the GC output
// channel when there was an error creating the marked set because of a
// problem when finding descendants.
var ErrCannotFetchAllLinks = errors.New("garbage collection aborted: could not retrieve some links")

// ErrCannotDeleteSomeBlocks is returned when removing blocks marked for
// deletion fails as the last Result in GC output channel.
var ErrCannotDeleteSomeBlocks = errors.New("garbage collection incomplete: could not delete some blocks")

// ErrCannotListBlocks is returned as the last Result when enumerating the
// blockstore fails during the sweep. It wraps the storage error.
var ErrCannotListBlocks = errors.New("garbage collection aborted: could not list blocks")

// CannotFetchLinksError provides detailed information about which links
// could not be fetched and can appear as a Result in the GC output channel.
type CannotFetchLinksError struct {
	Key cid.Cid
	Err error
}

// Error implements the error interface for this type with a useful
// message.
func (e *CannotFetchLinksError) Error() string {
	return fmt.Sprintf("could not retrieve links for %s: %s", e.Key, e.Err)
}

func (e *CannotFetchLinksError) Unwrap() error {
	return e.Err
}

// CannotDeleteBlockError provides detailed information about which
// blocks could not be deleted and can appear as a Result in the GC output
// channel.
type CannotDeleteBlockError struct {
	Key cid.Cid
	Err error
}

// Error implements the error interface for this type with a
// useful message.
func (e *CannotDeleteBlockError) Error() string {
	return fmt.Sprintf("could not remove %s: %s", e.Key, e.Err)
}

func (e *CannotDeleteBlockError) Unwrap() error {
	return e.Err
}
