package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/config"
	"github.com/lazypower/attractor/internal/oracle"
	"github.com/lazypower/attractor/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuildOracle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantNil  bool
		wantType string
		wantErr  bool
	}{
		{name: "none", mutate: func(c *config.Config) { c.Oracle.Provider = "none" }, wantNil: true},
		{name: "llm", mutate: func(c *config.Config) {
			c.Oracle.Provider = "llm"
			c.LLM.Provider = "ollama"
		}, wantType: "llm"},
		{name: "llm unconfigured", mutate: func(c *config.Config) {
			c.Oracle.Provider = "llm"
			c.LLM.Provider = "anthropic"
			c.LLM.AnthropicKey = ""
		}, wantNil: true},
		{name: "embedding falls back to tfidf", mutate: func(c *config.Config) {
			c.Oracle.Provider = "embedding"
			c.LLM.OllamaURL = "http://127.0.0.1:1"
		}, wantType: "embedding"},
		{name: "unknown", mutate: func(c *config.Config) { c.Oracle.Provider = "magic" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			o, err := buildOracle(ctx, cfg, db)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildOracle: %v", err)
			}
			if tt.wantNil {
				if o != nil {
					t.Errorf("expected nil oracle, got %T", o)
				}
				return
			}
			switch o.(type) {
			case *oracle.LLM:
				if tt.wantType != "llm" {
					t.Errorf("got LLM oracle, want %s", tt.wantType)
				}
			case *oracle.Embedding:
				if tt.wantType != "embedding" {
					t.Errorf("got embedding oracle, want %s", tt.wantType)
				}
			default:
				t.Errorf("unexpected oracle type %T", o)
			}
		})
	}
}

func TestBuildRouterWarmsCatalogue(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, d := range []basin.Descriptor{
		{Name: "cognitive", Description: "cognitive science", Strength: 1.0},
		{Name: "physics", Description: "quantum mechanics", Strength: 0.2},
	} {
		if err := db.UpsertBasin(ctx, d); err != nil {
			t.Fatalf("UpsertBasin: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Engine.Seed = 7
	rt, err := buildRouter(ctx, cfg, db)
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}
	if rt.OracleEnabled() {
		t.Error("default config should not enable an oracle")
	}

	reg := rt.Registry()
	if reg.Len() != 2 {
		t.Fatalf("registry has %d basins, want 2", reg.Len())
	}
	cog, _ := reg.Get("cognitive")
	phys, _ := reg.Get("physics")
	if cog.Degree != 3 || phys.Degree != 1 {
		t.Errorf("degrees = %d/%d, want 3/1", cog.Degree, phys.Degree)
	}
}

func TestLoadConfigFromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attractor.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  dimensions: 32\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Engine.Dimensions != 32 {
		t.Errorf("dimensions = %d, want 32", cfg.Engine.Dimensions)
	}
}

func TestNewRandSeeded(t *testing.T) {
	a, b := newRand(42, 1), newRand(42, 1)
	for i := 0; i < 5; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatal("same seed and stream should produce the same sequence")
		}
	}
}
