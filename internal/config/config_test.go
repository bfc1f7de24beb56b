package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Engine.Dimensions != 128 {
		t.Errorf("dimensions = %d, want 128", cfg.Engine.Dimensions)
	}
	if cfg.Router.ConfidentHigh != 0.65 || cfg.Router.ConfidentLow != 0.35 {
		t.Errorf("zone thresholds = %g/%g", cfg.Router.ConfidentHigh, cfg.Router.ConfidentLow)
	}
	if cfg.Router.OracleWeight != 0.6 || cfg.Router.LearningRate != 0.1 {
		t.Errorf("oracle weight %g, learning rate %g", cfg.Router.OracleWeight, cfg.Router.LearningRate)
	}
	if cfg.Stability.Samples != 10 {
		t.Errorf("stability samples = %d, want 10", cfg.Stability.Samples)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("ATTRACTOR_DB", "")
	path := filepath.Join(t.TempDir(), "attractor.yaml")
	yaml := `
server:
  port: 9000
engine:
  dimensions: 64
  bias: true
  seed: 42
router:
  explore_transitions: true
  oracle_weight: 0.5
oracle:
  provider: embedding
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Engine.Dimensions != 64 || !cfg.Engine.Bias || cfg.Engine.Seed != 42 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.MaxIterations != 100 {
		t.Errorf("unset max_iterations should keep default, got %d", cfg.Engine.MaxIterations)
	}
	if !cfg.Router.ExploreTransitions || cfg.Router.OracleWeight != 0.5 {
		t.Errorf("router = %+v", cfg.Router)
	}
	if cfg.Router.ConfidentHigh != 0.65 {
		t.Errorf("unset confident_high should keep default, got %g", cfg.Router.ConfidentHigh)
	}
	if cfg.Oracle.Provider != "embedding" {
		t.Errorf("oracle provider = %q", cfg.Oracle.Provider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Dimensions != 128 {
		t.Errorf("expected defaults, got dimensions %d", cfg.Engine.Dimensions)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ATTRACTOR_DB", "/tmp/custom.db")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.LLM.OpenAIKey != "sk-test" || cfg.LLM.AnthropicKey != "ak-test" {
		t.Errorf("keys not applied: %+v", cfg.LLM)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "engine: [", "parse config"},
		{"dimensions", "engine:\n  dimensions: -1\n", "engine.dimensions"},
		{"thresholds", "router:\n  confident_low: 0.7\n", "router thresholds"},
		{"weight", "router:\n  oracle_weight: 2\n", "oracle_weight"},
		{"provider", "oracle:\n  provider: magic\n", "unknown oracle provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			os.WriteFile(path, []byte(tt.yaml), 0o644)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
