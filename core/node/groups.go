package node

import (
	"context"

	"go.uber.org/fx"

	"github.com/ipfs/kubo-core/config"
)

// Storage groups units which setup datastore based persistence and blockstore layers
func Storage(bcfg *BuildCfg, cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Provide(RepoConfig),
		fx.Provide(Datastore),
		fx.Provide(BaseBlockstoreCtor(
			cacheOpts(bcfg, cfg),
			cfg.Datastore.HashOnRead.WithDefault(config.DefaultHashOnRead),
		)),
		fx.Provide(GcBlockstoreCtor),
	)
}

// Exchanges groups the units reaching outside the local repo: block
// fetching and naming
var Exchanges = fx.Options(
	fx.Provide(Exchange),
	fx.Provide(Namesys),
)

// Core groups basic IPFS services
var Core = fx.Options(
	fx.Provide(BlockService),
	fx.Provide(Dag),
	fx.Provide(Resolver),
	fx.Provide(Pinning),
)

// IPFS builds a group of fx Options based on the passed BuildCfg
func IPFS(ctx context.Context, bcfg *BuildCfg) fx.Option {
	if bcfg == nil {
		bcfg = new(BuildCfg)
	}

	bcfgOpts, cfg := bcfg.options(ctx)
	if cfg == nil {
		return bcfgOpts // error
	}

	return fx.Options(
		bcfgOpts,

		Storage(bcfg, cfg),
		Exchanges,
		Core,
	)
}
