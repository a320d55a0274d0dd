// Package bootstrap wires the sync engine from a Config. Every binary
// goes through Open so they share one storage and transport setup.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"plansync/internal/adapters/gitrepo"
	"plansync/internal/adapters/markdown"
	"plansync/internal/adapters/memory"
	"plansync/internal/adapters/planapi"
	"plansync/internal/adapters/sqlite"
	"plansync/internal/application/orchestrator"
	"plansync/internal/clock"
	"plansync/internal/config"
	"plansync/internal/ports"
	"plansync/internal/remote"
)

// Runtime holds the wired engine and the resources to release on Close
type Runtime struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Repo         *gitrepo.Repository
	Cache        *remote.Cache

	store *sqlite.Store
}

// Open builds a Runtime for cfg.RepoDir, which must be a git repository
func Open(cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	return open(cfg, clock.Real(), logger)
}

func open(cfg config.Config, clk clock.Clock, logger zerolog.Logger) (*Runtime, error) {
	info, err := os.Stat(filepath.Join(cfg.RepoDir, ".git"))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a git repository", cfg.RepoDir)
	}

	service, err := newService(cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	policy := remote.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.BaseDelay = cfg.BaseDelay
	policy.MaxDelay = cfg.MaxDelay
	policy.PerCallTimeout = cfg.PerCallTimeout

	caller := remote.NewCaller(policy, clk, logger)
	cache := remote.NewCache(cfg.CacheTTL, clk)
	gateway := remote.NewGateway(service, caller, cache, clk, logger)

	codec := markdown.New()
	merger := gitrepo.NewRebaseMerger(cfg.RepoDir, clk, logger)
	repo := gitrepo.New(cfg.RepoDir, gitrepo.Options{
		TrackingPrefix: cfg.TrackingPrefix,
		WorkingPrefix:  cfg.WorkingPrefix,
		DocumentDir:    cfg.DocumentDir,
	}, merger, codec, clk, logger)

	orch := orchestrator.New(orchestrator.Deps{
		Repo:   repo,
		Remote: gateway,
		Codec:  codec,
		Audit:  store.AuditLog(),
		States: store.StateStore(),
		Clock:  clk,
		Logger: logger,
	})

	logger.Debug().
		Str("repo", cfg.RepoDir).
		Str("db", store.Path()).
		Bool("offline", cfg.UsesMemoryService()).
		Msg("engine ready")

	return &Runtime{
		Config:       cfg,
		Orchestrator: orch,
		Repo:         repo,
		Cache:        cache,
		store:        store,
	}, nil
}

func newService(cfg config.Config, clk clock.Clock, logger zerolog.Logger) (ports.PlanService, error) {
	if !cfg.UsesMemoryService() {
		return planapi.New(planapi.Config{
			BaseURL: cfg.APIURL,
			Token:   cfg.APIToken,
			Clock:   clk,
		})
	}

	svc := memory.New(clk)
	path := cfg.SeedPath()
	if path == "" {
		logger.Warn().Msg("no api_url configured, using an empty offline service")
		return svc, nil
	}
	seed, err := memory.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	svc.Apply(seed)
	logger.Info().Str("seed", path).Int("releases", len(seed.Releases)).Msg("offline service seeded")
	return svc, nil
}

// Close releases the cache and the audit database
func (r *Runtime) Close() error {
	r.Cache.Close()
	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close audit database: %w", err)
	}
	return nil
}
