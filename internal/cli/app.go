package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/config"
	"github.com/lazypower/attractor/internal/engine"
	"github.com/lazypower/attractor/internal/llm"
	"github.com/lazypower/attractor/internal/oracle"
	"github.com/lazypower/attractor/internal/router"
	"github.com/lazypower/attractor/internal/store"
)

// loadConfig resolves the config file from --config, $ATTRACTOR_CONFIG or
// ~/.attractor/config.yaml, in that order.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("ATTRACTOR_CONFIG")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".attractor", "config.yaml")
		}
	}
	return config.Load(path)
}

// openDB is a helper that opens the database for CLI commands.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

// newRand returns a seeded source, or a random one for seed 0. stream keeps
// the engine and the registry on different sequences.
func newRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// buildRouter wires the engine, registry, oracle and catalogue together and
// rebuilds the network from the catalogue.
func buildRouter(ctx context.Context, cfg config.Config, db *store.DB) (*router.Router, error) {
	eng := engine.New(cfg.Engine.Dimensions,
		engine.WithBias(cfg.Engine.Bias),
		engine.WithConditionThreshold(cfg.Engine.ConditionThreshold),
		engine.WithRand(newRand(cfg.Engine.Seed, 1)),
	)
	reg := basin.NewRegistry(eng,
		basin.WithRand(newRand(cfg.Engine.Seed, 2)),
		basin.WithStabilityConfig(cfg.Stability),
	)

	opts := []router.Option{
		router.WithConfig(cfg.Router),
		router.WithDecisionLog(db),
	}
	o, err := buildOracle(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	if o != nil {
		opts = append(opts, router.WithOracle(o))
	}

	rt := router.New(reg, db, opts...)
	if _, err := rt.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warm network: %w", err)
	}
	return rt, nil
}

// buildOracle returns the configured oracle, or nil when routing should rely
// on the network alone. Providers that cannot be reached are reported and
// skipped rather than failing the command.
func buildOracle(ctx context.Context, cfg config.Config, db *store.DB) (router.Oracle, error) {
	switch cfg.Oracle.Provider {
	case "", "none":
		return nil, nil
	case "llm":
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), oracle disabled\n", err)
			return nil, nil
		}
		return oracle.NewLLM(client), nil
	case "embedding":
		if oracle.ProbeOllama(cfg.LLM.OllamaURL, cfg.LLM.EmbeddingModel) {
			emb := oracle.NewOllamaEmbedder(cfg.LLM.OllamaURL, cfg.LLM.EmbeddingModel, 768)
			return oracle.NewEmbedding(emb).WithCache(db), nil
		}
		descs, err := db.ListBasins(ctx)
		if err != nil {
			return nil, fmt.Errorf("list basins for tfidf: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
		return oracle.NewEmbedding(oracle.NewTFIDFEmbedder(descs, cfg.Oracle.MaxTerms)), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %q", cfg.Oracle.Provider)
	}
}

// session bundles what most commands need.
type session struct {
	cfg config.Config
	db  *store.DB
	rt  *router.Router
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	rt, err := buildRouter(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &session{cfg: cfg, db: db, rt: rt}, nil
}

func (s *session) Close() error { return s.db.Close() }
