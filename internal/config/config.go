package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/pattern"
	"github.com/lazypower/attractor/internal/router"
)

// Config holds all attractor configuration.
type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Database  DatabaseConfig        `yaml:"database"`
	LLM       LLMConfig             `yaml:"llm"`
	Engine    EngineConfig          `yaml:"engine"`
	Router    router.Config         `yaml:"router"`
	Stability basin.StabilityConfig `yaml:"stability"`
	Oracle    OracleConfig          `yaml:"oracle"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"` // "claude-cli", "anthropic", "ollama", "openai"
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`    // e.g. "llama3.2"
	EmbeddingModel string `yaml:"embedding_model"` // e.g. "nomic-embed-text"
	AnthropicKey   string `yaml:"anthropic_key"`
	OpenAIKey      string `yaml:"openai_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
}

// EngineConfig sizes the Hopfield network.
type EngineConfig struct {
	Dimensions         int     `yaml:"dimensions"`
	Bias               bool    `yaml:"bias"`
	MaxIterations      int     `yaml:"max_iterations"`
	Seed               uint64  `yaml:"seed"` // 0 picks a random seed
	ConditionThreshold float64 `yaml:"condition_threshold"`
}

// OracleConfig selects the semantic scorer consulted in the ambiguous zone.
type OracleConfig struct {
	Provider string `yaml:"provider"` // "none", "llm", "embedding"
	MaxTerms int    `yaml:"max_terms"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:       "claude-cli",
			Model:          "haiku",
			OllamaURL:      "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
		},
		Engine: EngineConfig{
			Dimensions:         pattern.DefaultDimensions,
			MaxIterations:      100,
			ConditionThreshold: 5.0,
		},
		Router:    router.DefaultConfig(),
		Stability: basin.DefaultStabilityConfig(),
		Oracle: OracleConfig{
			Provider: "none",
			MaxTerms: 512,
		},
	}
}

// Load reads a YAML file over the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ATTRACTOR_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.LLM.AnthropicKey == "" {
		c.LLM.AnthropicKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.OpenAIKey == "" {
		c.LLM.OpenAIKey = v
	}
}

// Validate rejects settings the router and engine cannot work with.
func (c *Config) Validate() error {
	if c.Engine.Dimensions <= 0 {
		return fmt.Errorf("engine.dimensions must be positive, got %d", c.Engine.Dimensions)
	}
	if c.Engine.MaxIterations <= 0 {
		return fmt.Errorf("engine.max_iterations must be positive, got %d", c.Engine.MaxIterations)
	}
	if c.Engine.ConditionThreshold <= 1 {
		return fmt.Errorf("engine.condition_threshold must exceed 1, got %g", c.Engine.ConditionThreshold)
	}
	r := c.Router
	if r.ConfidentLow < 0 || r.ConfidentHigh > 1 || r.ConfidentLow >= r.ConfidentHigh {
		return fmt.Errorf("router thresholds must satisfy 0 <= confident_low < confident_high <= 1")
	}
	if r.OracleWeight < 0 || r.OracleWeight > 1 {
		return fmt.Errorf("router.oracle_weight must be in [0,1], got %g", r.OracleWeight)
	}
	switch c.Oracle.Provider {
	case "", "none", "llm", "embedding":
	default:
		return fmt.Errorf("unknown oracle provider: %q", c.Oracle.Provider)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
