package basin

import (
	"strings"
	"time"

	"github.com/lazypower/attractor/internal/pattern"
)

// State is the in-memory record of one attractor basin.
type State struct {
	Name       string            `json:"name"`
	Pattern    pattern.Pattern   `json:"pattern"`
	Energy     float64           `json:"energy"`
	Activation float64           `json:"activation"`
	Stability  float64           `json:"stability"`
	Degree     int               `json:"degree"` // total multiplicity stored for this basin
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (s *State) clone() State {
	out := *s
	out.Pattern = pattern.Clone(s.Pattern)
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Descriptor is a basin as the external catalogue knows it.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Concepts    []string `json:"concepts"`
	Strength    float64  `json:"strength"`
}

// SeedText is the text a basin's pattern is encoded from: the description
// followed by its concepts.
func (d Descriptor) SeedText() string {
	parts := make([]string, 0, len(d.Concepts)+1)
	if desc := strings.TrimSpace(d.Description); desc != "" {
		parts = append(parts, desc)
	}
	for _, c := range d.Concepts {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return d.Name
	}
	return strings.Join(parts, " ")
}
