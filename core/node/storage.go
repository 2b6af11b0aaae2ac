package node

import (
	"github.com/ipfs/go-datastore"
	"go.uber.org/fx"

	blockstore "github.com/ipfs/kubo-core/blocks/blockstore"
	config "github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/repo"
	"github.com/ipfs/kubo-core/thirdparty/verifbs"
)

// RepoConfig loads configuration from the repo
func RepoConfig(repo repo.Repo) (*config.Config, error) {
	return repo.Config()
}

// Datastore provides the datastore
func Datastore(repo repo.Repo) datastore.Datastore {
	return repo.Datastore()
}

// BaseBlocks is the lower level blockstore without the GC layer
type BaseBlocks blockstore.Blockstore

// BaseBlockstoreCtor creates cached blockstore backed by the provided datastore
func BaseBlockstoreCtor(cacheOpts blockstore.CacheOpts, hashOnRead bool) func(mctx MetricsCtx, repo repo.Repo, lc fx.Lifecycle) (bs BaseBlocks, err error) {
	return func(mctx MetricsCtx, repo repo.Repo, lc fx.Lifecycle) (bs BaseBlocks, err error) {
		// hash security
		bs = blockstore.NewBlockstore(repo.Datastore())
		bs = &verifbs.VerifBS{Blockstore: bs}

		bs, err = blockstore.CachedBlockstore(lifecycleCtx(mctx, lc), bs, cacheOpts)
		if err != nil {
			return nil, err
		}

		if hashOnRead {
			bs.HashOnRead(true)
		}

		return
	}
}

// GcBlockstoreCtor wraps the base blockstore with the GC layer
func GcBlockstoreCtor(bb BaseBlocks) (gclocker blockstore.GCLocker, gcbs blockstore.GCBlockstore, bs blockstore.Blockstore) {
	gclocker = blockstore.NewGCLocker()
	gcbs = blockstore.NewGCBlockstore(bb, gclocker)

	bs = gcbs
	return
}

// cacheOpts derives the blockstore caches from the datastore config. Short
// lived nodes skip them entirely.
func cacheOpts(bcfg *BuildCfg, cfg *config.Config) blockstore.CacheOpts {
	opts := blockstore.DefaultCacheOpts()
	if !bcfg.Permanent || bcfg.NilRepo {
		opts.HasBloomFilterSize = 0
		opts.HasTwoQueueCacheSize = 0
		return opts
	}

	opts.HasBloomFilterSize = int(cfg.Datastore.BloomFilterSize.WithDefault(config.DefaultBloomFilterSize))
	opts.HasTwoQueueCacheSize = int(cfg.Datastore.BlockKeyCacheSize.WithDefault(config.DefaultBlockKeyCacheSize))
	return opts
}
