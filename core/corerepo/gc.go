package corerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/core"
	"github.com/ipfs/kubo-core/pin/gc"
	"github.com/ipfs/kubo-core/repo"

	humanize "github.com/dustin/go-humanize"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("corerepo")

var ErrMaxStorageExceeded = errors.New("maximum storage limit exceeded. Try to unpin some files")

// GC holds the storage thresholds a conditional collection checks against.
type GC struct {
	Node       *core.IpfsNode
	Repo       repo.Repo
	StorageMax uint64
	StorageGC  uint64
	SlackGB    uint64
	Storage    uint64
}

// NewGC reads the storage limits from the node's config.
func NewGC(n *core.IpfsNode) (*GC, error) {
	r := n.Repo
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}

	defaultMax, err := humanize.ParseBytes(config.DefaultStorageMax)
	if err != nil {
		return nil, err
	}
	storageMax := cfg.Datastore.StorageMax.WithDefault(defaultMax)
	watermark := cfg.Datastore.StorageGCWatermark.WithDefault(config.DefaultStorageGCWatermark)
	if watermark < 0 || watermark > 100 {
		return nil, fmt.Errorf("Datastore.StorageGCWatermark must be a percentage, got %d", watermark)
	}
	storageGC := storageMax * uint64(watermark) / 100

	// calculate the slack space between StorageMax and StorageGCWatermark
	// used to limit GC duration
	slackGB := (storageMax - storageGC) / 10e9
	if slackGB < 1 {
		slackGB = 1
	}

	return &GC{
		Node:       n,
		Repo:       r,
		StorageMax: storageMax,
		StorageGC:  storageGC,
		SlackGB:    slackGB,
	}, nil
}

// GarbageCollect removes every block that is not pinned and stops at the
// first error.
func GarbageCollect(n *core.IpfsNode, ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // in case error occurs during operation
	rmed := gc.GC(ctx, n.Blockstore, n.Repo.Datastore(), n.Pinning, nil)

	return CollectResult(ctx, rmed, nil)
}

// CollectResult collects the output of a garbage collection run and calls the
// given callback for each object removed.  It also collects all errors into a
// MultiError which is returned after the gc is completed.
func CollectResult(ctx context.Context, gcOut <-chan gc.Result, cb func(cid.Cid)) error {
	var errs []error
loop:
	for {
		select {
		case res, ok := <-gcOut:
			if !ok {
				break loop
			}
			if res.Error != nil {
				errs = append(errs, res.Error)
			} else if res.KeyRemoved.Defined() && cb != nil {
				cb(res.KeyRemoved)
			}
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			break loop
		}
	}

	return NewMultiError(errs...)
}

// NewMultiError creates a new MultiError object from a given slice of errors.
func NewMultiError(errs ...error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &MultiError{Errors: errs[:len(errs)-1], Summary: errs[len(errs)-1]}
}

// MultiError contains the results of multiple errors.
type MultiError struct {
	Errors  []error
	Summary error
}

func (e *MultiError) Error() string {
	var buf []byte
	for _, err := range e.Errors {
		buf = append(buf, err.Error()...)
		buf = append(buf, "; "...)
	}
	buf = append(buf, e.Summary.Error()...)
	return string(buf)
}

func (e *MultiError) Unwrap() []error {
	return append(append([]error(nil), e.Errors...), e.Summary)
}

// PeriodicGC checks the repo size every Datastore.GCPeriod and collects
// when it is above the watermark. A zero period disables it.
func PeriodicGC(ctx context.Context, node *core.IpfsNode) error {
	cfg, err := node.Repo.Config()
	if err != nil {
		return err
	}

	period := cfg.Datastore.GCPeriod.WithDefault(config.DefaultGCPeriod)
	if period < 0 {
		return fmt.Errorf("Datastore.GCPeriod must not be negative, got %s", period)
	}
	if period == 0 {
		// if duration is 0, it means GC is disabled.
		return nil
	}

	gc, err := NewGC(node)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// the private func maybeGC doesn't compute storageMax, storageGC, slackGC so that they are not re-computed for every cycle
			if err := gc.maybeGC(ctx, 0); err != nil {
				log.Error(err)
			}
		}
	}
}

// ConditionalGC collects when the repo size plus offset is above the
// watermark.
func ConditionalGC(ctx context.Context, node *core.IpfsNode, offset uint64) error {
	gc, err := NewGC(node)
	if err != nil {
		return err
	}
	return gc.maybeGC(ctx, offset)
}

func (gc *GC) maybeGC(ctx context.Context, offset uint64) error {
	storage, err := gc.Repo.GetStorageUsage(ctx)
	if err != nil {
		return err
	}

	if storage+offset > gc.StorageGC {
		if storage+offset > gc.StorageMax {
			log.Warnf("pre-GC: %s", ErrMaxStorageExceeded)
		}

		// Do GC here
		log.Info("Watermark exceeded. Starting repo GC...")
		start := time.Now()

		if err := GarbageCollect(gc.Node, ctx); err != nil {
			return err
		}
		log.Infow("repo GC done", "took", time.Since(start),
			"storage", humanize.Bytes(storage), "limit", humanize.Bytes(gc.StorageMax))
	}
	return nil
}
