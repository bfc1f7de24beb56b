package router

import (
	"context"
	"time"

	"github.com/lazypower/attractor/internal/basin"
)

// Catalogue is the persistent store of basin descriptors and strengths.
// GetBasin returns nil, nil for an unknown name.
type Catalogue interface {
	GetBasin(ctx context.Context, name string) (*basin.Descriptor, error)
	ListBasins(ctx context.Context) ([]basin.Descriptor, error)
	AdjustStrength(ctx context.Context, name string, delta float64) (float64, error)
}

// Oracle scores how well content fits a basin, in [0, 1]. It is slow and
// may fail; the router only consults it for ambiguous scores.
type Oracle interface {
	Score(ctx context.Context, content string, d basin.Descriptor) (float64, error)
}

// DecisionLog records routing decisions.
type DecisionLog interface {
	RecordDecision(ctx context.Context, d Decision) error
}

// Zone classifies a Hopfield score.
type Zone string

const (
	ZoneConfident Zone = "confident"
	ZoneAmbiguous Zone = "ambiguous"
	ZoneNoPattern Zone = "no_pattern"
)

// Decision is the outcome of routing one piece of content to one basin.
type Decision struct {
	ID                  string    `json:"id"`
	Basin               string    `json:"basin"`
	HopfieldScore       float64   `json:"hopfield_score"`
	OracleScore         *float64  `json:"oracle_score,omitempty"`
	BlendedScore        float64   `json:"blended_score"`
	Zone                Zone      `json:"zone"`
	TransitionSuggested bool      `json:"transition_suggested"`
	SuggestedBasin      string    `json:"suggested_basin,omitempty"`
	SuggestedScore      float64   `json:"suggested_score,omitempty"`
	Reason              string    `json:"reason"`
	CreatedAt           time.Time `json:"created_at"`
}

// Reinforcement is the outcome of applying an observed score to a basin.
type Reinforcement struct {
	Basin    string  `json:"basin"`
	Score    float64 `json:"score"`
	Delta    float64 `json:"delta"`
	Strength float64 `json:"strength"`
	Degree   int     `json:"degree"` // 0 when the pattern was not re-stored
}

// Config holds the routing thresholds.
type Config struct {
	ConfidentHigh      float64 `yaml:"confident_high"`
	ConfidentLow       float64 `yaml:"confident_low"`
	TransitionMargin   float64 `yaml:"transition_margin"`
	ExploreTransitions bool    `yaml:"explore_transitions"`
	UseOracle          bool    `yaml:"use_oracle"`
	OracleWeight       float64 `yaml:"oracle_weight"` // weight of the oracle score when blending
	LearningRate       float64 `yaml:"learning_rate"`
	StrengthBucket     float64 `yaml:"strength_bucket"` // strength per extra degree of re-storage
	MaxDegree          int     `yaml:"max_degree"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidentHigh:    0.65,
		ConfidentLow:     0.35,
		TransitionMargin: 0.15,
		UseOracle:        true,
		OracleWeight:     0.6,
		LearningRate:     0.1,
		StrengthBucket:   0.5,
		MaxDegree:        5,
	}
}
