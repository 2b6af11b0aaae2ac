package node

import (
	"context"
	"errors"

	"github.com/ipfs/kubo-core/config"
	"github.com/ipfs/kubo-core/exchange"
	"github.com/ipfs/kubo-core/namesys"
	"github.com/ipfs/kubo-core/repo"

	"go.uber.org/fx"
)

// BuildCfg describes how a node is assembled.
type BuildCfg struct {
	// Permanent enables the in-memory caches in front of the blockstore.
	// Long running nodes want them; short lived command invocations don't.
	Permanent bool

	// NilRepo builds the node over a throwaway in-memory repo. Repo must
	// be nil when set.
	NilRepo bool

	Repo repo.Repo

	// Exchange fetches blocks missing from the local store. Defaults to
	// an offline exchange.
	Exchange exchange.Interface

	// NameSystem resolves and publishes /ipns names. Defaults to a name
	// system keeping its records in the repo datastore.
	NameSystem namesys.NameSystem
}

func (cfg *BuildCfg) fillDefaults() error {
	if cfg.Repo != nil && cfg.NilRepo {
		return errors.New("cannot set a Repo and specify nilrepo at the same time")
	}

	if cfg.Repo == nil {
		conf, err := config.Init("test")
		if err != nil {
			return err
		}
		cfg.Repo = repo.NewMock(*conf)
	}

	return nil
}

// options creates fx option group from this build config
func (cfg *BuildCfg) options(ctx context.Context) (fx.Option, *config.Config) {
	err := cfg.fillDefaults()
	if err != nil {
		return fx.Error(err), nil
	}

	repoOption := fx.Provide(func(lc fx.Lifecycle) repo.Repo {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return cfg.Repo.Close()
			},
		})

		return cfg.Repo
	})

	metricsCtx := fx.Provide(func() MetricsCtx {
		return MetricsCtx(ctx)
	})

	conf, err := cfg.Repo.Config()
	if err != nil {
		return fx.Error(err), nil
	}

	return fx.Options(
		repoOption,
		fx.Provide(func() *BuildCfg { return cfg }),
		metricsCtx,
	), conf
}
