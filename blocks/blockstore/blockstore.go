// Package blockstore implements a thin wrapper over a datastore, giving a
// clean interface for Getting and Putting block objects.
package blockstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/ipfs/kubo-core/thirdparty/dshelp"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dsns "github.com/ipfs/go-datastore/namespace"
	dsq "github.com/ipfs/go-datastore/query"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("blockstore")

// BlockPrefix namespaces blockstore datastores
var BlockPrefix = ds.NewKey("blocks")

// ErrHashMismatch is an error returned when the hash of a block
// is different than expected.
var ErrHashMismatch = errors.New("block in storage has different hash than requested")

// StoreIOError wraps a failure of the backing datastore. It is never retried
// by the blockstore.
type StoreIOError struct {
	Op  string
	Key cid.Cid
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("blockstore %s %s: %s", e.Op, e.Key, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

func ioErr(op string, k cid.Cid, err error) error {
	return &StoreIOError{Op: op, Key: k, Err: err}
}

// Blockstore wraps a Datastore block-centered methods and provides a layer
// of abstraction which allows to add different caching strategies.
type Blockstore interface {
	DeleteBlock(context.Context, cid.Cid) error
	Has(context.Context, cid.Cid) (bool, error)
	Get(context.Context, cid.Cid) (blocks.Block, error)

	// GetSize returns the CIDs mapped BlockSize
	GetSize(context.Context, cid.Cid) (int, error)

	// Put puts a given block to the underlying datastore
	Put(context.Context, blocks.Block) error

	// PutMany puts a slice of blocks at the same time using batching
	// capabilities of the underlying datastore whenever possible.
	PutMany(context.Context, []blocks.Block) error

	// AllKeysChan returns a channel from which
	// the CIDs in the Blockstore can be read. It should respect
	// the given context, closing the channel if it becomes Done.
	AllKeysChan(ctx context.Context) (<-chan cid.Cid, error)

	// AllKeys enumerates the CIDs in the Blockstore. A storage failure
	// part way through is yielded as a *StoreIOError and ends the
	// sequence, as does a done context.
	AllKeys(ctx context.Context) iter.Seq2[cid.Cid, error]

	// HashOnRead specifies if every read block should be
	// rehashed to make sure it matches its CID.
	HashOnRead(enabled bool)
}

// GCLocker abstract functionality to lock a blockstore when performing
// garbage-collection operations.
type GCLocker interface {
	// GCLock locks the blockstore for garbage collection. No operations
	// that expect to finish with a pin should occur simultaneously.
	// Reading during GC is safe, and requires no lock.
	GCLock(context.Context) Unlocker

	// PinLock locks the blockstore for sequences of puts expected to finish
	// with a pin (before GC). Multiple put->pin sequences can write through
	// at the same time, but no GC should happen simultaneously.
	// Reading during Pinning is safe, and requires no lock.
	PinLock(context.Context) Unlocker

	// GCRequested returns true if GCLock has been called and is waiting to
	// take the lock
	GCRequested(context.Context) bool
}

// GCBlockstore is a blockstore that can safely run garbage-collection
// operations.
type GCBlockstore interface {
	Blockstore
	GCLocker
}

// NewGCBlockstore returns a default implementation of GCBlockstore
// using the given Blockstore and GCLocker.
func NewGCBlockstore(bs Blockstore, gcl GCLocker) GCBlockstore {
	return gcBlockstore{bs, gcl}
}

type gcBlockstore struct {
	Blockstore
	GCLocker
}

// NewBlockstore returns a default Blockstore implementation
// using the provided datastore.Batching backend. Blocks live under
// BlockPrefix.
func NewBlockstore(d ds.Batching) Blockstore {
	return NewBlockstoreNoPrefix(dsns.Wrap(d, BlockPrefix))
}

// NewBlockstoreNoPrefix returns a default Blockstore implementation
// using the provided datastore.Batching backend.
// This constructor does not modify input keys in any way
func NewBlockstoreNoPrefix(d ds.Batching) Blockstore {
	return &blockstore{
		datastore: d,
	}
}

type blockstore struct {
	datastore ds.Batching

	rehash atomic.Bool
}

func (bs *blockstore) HashOnRead(enabled bool) {
	bs.rehash.Store(enabled)
}

func (bs *blockstore) Get(ctx context.Context, k cid.Cid) (blocks.Block, error) {
	if !k.Defined() {
		log.Error("undefined cid in blockstore")
		return nil, format.ErrNotFound{Cid: k}
	}
	bdata, err := bs.datastore.Get(ctx, dshelp.CidToDsKey(k))
	if err == ds.ErrNotFound {
		return nil, format.ErrNotFound{Cid: k}
	}
	if err != nil {
		return nil, ioErr("get", k, err)
	}
	if bs.rehash.Load() {
		rbcid, err := k.Prefix().Sum(bdata)
		if err != nil {
			return nil, err
		}

		if !rbcid.Equals(k) {
			return nil, ErrHashMismatch
		}

		return blocks.NewBlockWithCid(bdata, rbcid)
	}
	return blocks.NewBlockWithCid(bdata, k)
}

// Put stores b unless a block with the same CID is already present.
func (bs *blockstore) Put(ctx context.Context, block blocks.Block) error {
	k := dshelp.CidToDsKey(block.Cid())

	exists, err := bs.datastore.Has(ctx, k)
	if err != nil {
		return ioErr("has", block.Cid(), err)
	}
	if exists {
		return nil
	}
	if err := bs.datastore.Put(ctx, k, block.RawData()); err != nil {
		return ioErr("put", block.Cid(), err)
	}
	return nil
}

func (bs *blockstore) PutMany(ctx context.Context, blocks []blocks.Block) error {
	if len(blocks) == 1 {
		// performance fast-path
		return bs.Put(ctx, blocks[0])
	}

	t, err := bs.datastore.Batch(ctx)
	if err != nil {
		return ioErr("batch", cid.Undef, err)
	}
	for _, b := range blocks {
		k := dshelp.CidToDsKey(b.Cid())

		exists, err := bs.datastore.Has(ctx, k)
		if err != nil {
			return ioErr("has", b.Cid(), err)
		}
		if exists {
			continue
		}

		if err := t.Put(ctx, k, b.RawData()); err != nil {
			return ioErr("put", b.Cid(), err)
		}
	}
	if err := t.Commit(ctx); err != nil {
		return ioErr("commit", cid.Undef, err)
	}
	return nil
}

func (bs *blockstore) Has(ctx context.Context, k cid.Cid) (bool, error) {
	has, err := bs.datastore.Has(ctx, dshelp.CidToDsKey(k))
	if err != nil {
		return false, ioErr("has", k, err)
	}
	return has, nil
}

func (bs *blockstore) GetSize(ctx context.Context, k cid.Cid) (int, error) {
	size, err := bs.datastore.GetSize(ctx, dshelp.CidToDsKey(k))
	if err == ds.ErrNotFound {
		return -1, format.ErrNotFound{Cid: k}
	}
	if err != nil {
		return -1, ioErr("getsize", k, err)
	}
	return size, nil
}

func (bs *blockstore) DeleteBlock(ctx context.Context, k cid.Cid) error {
	if err := bs.datastore.Delete(ctx, dshelp.CidToDsKey(k)); err != nil {
		return ioErr("delete", k, err)
	}
	return nil
}

// AllKeys runs a keys-only query over the blockstore.
func (bs *blockstore) AllKeys(ctx context.Context) iter.Seq2[cid.Cid, error] {
	return func(yield func(cid.Cid, error) bool) {
		// KeysOnly, because that would be _a lot_ of data.
		res, err := bs.datastore.Query(ctx, dsq.Query{KeysOnly: true})
		if err != nil {
			yield(cid.Undef, ioErr("query", cid.Undef, err))
			return
		}
		defer res.Close()

		for {
			if err := ctx.Err(); err != nil {
				yield(cid.Undef, err)
				return
			}
			e, ok := res.NextSync()
			if !ok {
				return
			}
			if e.Error != nil {
				yield(cid.Undef, ioErr("query", cid.Undef, e.Error))
				return
			}

			k, err := dshelp.DsKeyToCid(ds.RawKey(e.Key))
			if err != nil {
				log.Warnf("error parsing key from binary: %s", err)
				continue
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

// AllKeysChan streams AllKeys into a channel. A storage failure is logged
// and closes the channel early; callers that must see it use AllKeys.
//
// AllKeysChan respects context.
func (bs *blockstore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return keysChan(ctx, bs.AllKeys(ctx)), nil
}

func keysChan(ctx context.Context, keys iter.Seq2[cid.Cid, error]) <-chan cid.Cid {
	output := make(chan cid.Cid, dsq.KeysOnlyBufSize)
	go func() {
		defer close(output)
		for k, err := range keys {
			if err != nil {
				if ctx.Err() == nil {
					log.Errorf("blockstore.AllKeysChan got err: %s", err)
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case output <- k:
			}
		}
	}()
	return output
}

// NewGCLocker returns a default implementation of
// GCLocker using standard [RW] mutexes.
func NewGCLocker() GCLocker {
	return &gclocker{}
}

type gclocker struct {
	lk    sync.RWMutex
	gcreq int32
}

// Unlocker represents an object which can Unlock
// something.
type Unlocker interface {
	Unlock(context.Context)
}

type unlocker struct {
	unlock func()
}

func (u *unlocker) Unlock(_ context.Context) {
	u.unlock()
	u.unlock = nil // ensure its not called twice
}

func (bs *gclocker) GCLock(_ context.Context) Unlocker {
	atomic.AddInt32(&bs.gcreq, 1)
	bs.lk.Lock()
	atomic.AddInt32(&bs.gcreq, -1)
	return &unlocker{bs.lk.Unlock}
}

func (bs *gclocker) PinLock(_ context.Context) Unlocker {
	bs.lk.RLock()
	return &unlocker{bs.lk.RUnlock}
}

func (bs *gclocker) GCRequested(_ context.Context) bool {
	return atomic.LoadInt32(&bs.gcreq) > 0
}
