package cmd

import (
	"context"
	"fmt"

	"github.com/stagecraft/stagecraft/internal/completeness"
	"github.com/stagecraft/stagecraft/internal/config"
	"github.com/stagecraft/stagecraft/internal/engine"
	"github.com/stagecraft/stagecraft/internal/event"
	"github.com/stagecraft/stagecraft/internal/generate"
	"github.com/stagecraft/stagecraft/internal/ledger"
	"github.com/stagecraft/stagecraft/internal/logging"
	"github.com/stagecraft/stagecraft/internal/review"
	"github.com/stagecraft/stagecraft/internal/store"
)

// deps is the wired object graph the commands run against.
type deps struct {
	cfg    *config.Config
	log    *logging.Logger
	store  store.VersionedStore
	bus    *event.Bus
	ledger *ledger.Ledger
	engine *engine.Engine
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	vs, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator, err := generate.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	reviewer, err := review.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	lg := ledger.New(vs, bus, log, cfg.Ledger)
	eng := engine.New(vs, lg, completeness.NewRegistry(cfg.Completeness),
		generator, reviewer, bus, log, cfg)

	return &deps{cfg: cfg, log: log, store: vs, bus: bus, ledger: lg, engine: eng}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.VersionedStore, error) {
	switch cfg.Store.Backend {
	case "github", "":
		return store.NewGitHubStore(ctx, cfg.Store.Token(), cfg.Store.APIBase)
	case "memory":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func (d *deps) close() {
	if d.log != nil {
		_ = d.log.Close()
	}
}
