package blockstore

import (
	"context"
	"iter"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	metrics "github.com/ipfs/go-metrics-interface"
)

type cacheHave bool
type cacheSize int

type lock struct {
	mu     sync.RWMutex
	refcnt int
}

// twoQueueCache wraps a BlockStore with a 2Q cache. It stores blocks
// presence and their sizes, never block contents.
type twoQueueCache struct {
	cache *lru.TwoQueueCache[string, any]

	lklk sync.Mutex
	lks  map[string]*lock

	blockstore Blockstore

	hits  metrics.Counter
	total metrics.Counter
}

var _ Blockstore = (*twoQueueCache)(nil)

func newTwoQueueCachedBS(ctx context.Context, bs Blockstore, lruSize int) (*twoQueueCache, error) {
	cache, err := lru.New2Q[string, any](lruSize)
	if err != nil {
		return nil, err
	}
	c := &twoQueueCache{cache: cache, blockstore: bs, lks: make(map[string]*lock)}
	c.hits = metrics.NewCtx(ctx, "twoqueue.hits_total", "Number of cache hits").Counter()
	c.total = metrics.NewCtx(ctx, "twoqueue_total", "Total number of requests").Counter()

	return c, nil
}

// lock acquires a per-key lock so that a cache update cannot race with the
// matching blockstore write or delete.
func (b *twoQueueCache) lock(k string, write bool) {
	b.lklk.Lock()
	lk, ok := b.lks[k]
	if !ok {
		lk = new(lock)
		b.lks[k] = lk
	}
	lk.refcnt++
	b.lklk.Unlock()
	if write {
		lk.mu.Lock()
	} else {
		lk.mu.RLock()
	}
}

func (b *twoQueueCache) unlock(key string, write bool) {
	b.lklk.Lock()
	lk := b.lks[key]
	lk.refcnt--
	if lk.refcnt == 0 {
		delete(b.lks, key)
	}
	b.lklk.Unlock()
	if write {
		lk.mu.Unlock()
	} else {
		lk.mu.RUnlock()
	}
}

func cacheKey(k cid.Cid) string {
	return k.KeyString()
}

func (b *twoQueueCache) DeleteBlock(ctx context.Context, k cid.Cid) error {
	if !k.Defined() {
		return nil
	}

	key := cacheKey(k)

	if has, _, ok := b.queryCache(key); ok && !has {
		return nil
	}

	b.lock(key, true)
	defer b.unlock(key, true)

	err := b.blockstore.DeleteBlock(ctx, k)
	if err == nil {
		b.cacheHave(key, false)
	}
	return err
}

func (b *twoQueueCache) Has(ctx context.Context, k cid.Cid) (bool, error) {
	if !k.Defined() {
		return false, nil
	}

	key := cacheKey(k)

	if has, _, ok := b.queryCache(key); ok {
		return has, nil
	}

	b.lock(key, false)
	defer b.unlock(key, false)

	has, err := b.blockstore.Has(ctx, k)
	if err != nil {
		return false, err
	}
	b.cacheHave(key, has)
	return has, nil
}

func (b *twoQueueCache) GetSize(ctx context.Context, k cid.Cid) (int, error) {
	if !k.Defined() {
		return -1, format.ErrNotFound{Cid: k}
	}

	key := cacheKey(k)

	if has, blockSize, ok := b.queryCache(key); ok {
		if !has {
			// don't have it, return
			return -1, format.ErrNotFound{Cid: k}
		}
		if blockSize >= 0 {
			// have it and we know the size
			return blockSize, nil
		}
		// we have it but don't know the size, ask the datastore.
	}

	b.lock(key, false)
	defer b.unlock(key, false)

	blockSize, err := b.blockstore.GetSize(ctx, k)
	if format.IsNotFound(err) {
		b.cacheHave(key, false)
	} else if err == nil {
		b.cacheSize(key, blockSize)
	}
	return blockSize, err
}

func (b *twoQueueCache) Get(ctx context.Context, k cid.Cid) (blocks.Block, error) {
	if !k.Defined() {
		return nil, format.ErrNotFound{Cid: k}
	}

	key := cacheKey(k)

	if has, _, ok := b.queryCache(key); ok && !has {
		return nil, format.ErrNotFound{Cid: k}
	}

	b.lock(key, false)
	defer b.unlock(key, false)

	bl, err := b.blockstore.Get(ctx, k)
	if bl == nil && format.IsNotFound(err) {
		b.cacheHave(key, false)
	} else if bl != nil {
		b.cacheSize(key, len(bl.RawData()))
	}
	return bl, err
}

func (b *twoQueueCache) Put(ctx context.Context, bl blocks.Block) error {
	key := cacheKey(bl.Cid())

	if has, _, ok := b.queryCache(key); ok && has {
		return nil
	}

	b.lock(key, true)
	defer b.unlock(key, true)

	err := b.blockstore.Put(ctx, bl)
	if err == nil {
		b.cacheSize(key, len(bl.RawData()))
	}
	return err
}

func (b *twoQueueCache) PutMany(ctx context.Context, bs []blocks.Block) error {
	var good []blocks.Block
	for _, block := range bs {
		// call put on block if result is inconclusive or we are sure that
		// the block isn't in storage
		if has, _, ok := b.queryCache(cacheKey(block.Cid())); !ok || (ok && !has) {
			good = append(good, block)
		}
	}

	if len(good) == 0 {
		return nil
	}

	for _, block := range good {
		b.lock(cacheKey(block.Cid()), true)
	}
	defer func() {
		for _, block := range good {
			b.unlock(cacheKey(block.Cid()), true)
		}
	}()

	err := b.blockstore.PutMany(ctx, good)
	if err != nil {
		return err
	}
	for _, block := range good {
		b.cacheSize(cacheKey(block.Cid()), len(block.RawData()))
	}
	return nil
}

func (b *twoQueueCache) HashOnRead(enabled bool) {
	b.blockstore.HashOnRead(enabled)
}

func (b *twoQueueCache) cacheHave(key string, have bool) {
	b.cache.Add(key, cacheHave(have))
}

func (b *twoQueueCache) cacheSize(key string, blockSize int) {
	b.cache.Add(key, cacheSize(blockSize))
}

// queryCache checks if the cache contains a value for key.
//
// When it can find an answer, it returns ok == true. It
// then also returns whether we have the block and, if we know, its size
// (blockSize is -1 when unknown).
func (b *twoQueueCache) queryCache(key string) (exists bool, size int, ok bool) {
	b.total.Inc()
	h, ok := b.cache.Get(key)
	if ok {
		b.hits.Inc()
		switch h := h.(type) {
		case cacheHave:
			return bool(h), -1, true
		case cacheSize:
			return true, int(h), true
		}
	}
	return false, -1, false
}

func (b *twoQueueCache) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return b.blockstore.AllKeysChan(ctx)
}

func (b *twoQueueCache) AllKeys(ctx context.Context) iter.Seq2[cid.Cid, error] {
	return b.blockstore.AllKeys(ctx)
}
