package basin

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/lazypower/attractor/internal/engine"
	"github.com/lazypower/attractor/internal/pattern"
)

// ErrNotFound is returned by operations that require an existing basin.
var ErrNotFound = errors.New("basin not found")

// Registry maps basin names to their state. All basins share one engine, so
// retrieval is associative across every stored pattern.
type Registry struct {
	engine    *engine.Engine
	stability StabilityConfig

	mu     sync.RWMutex
	basins map[string]*State

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Registry.
type Option func(*Registry)

// WithRand sets the source used to pick noise bits in stability trials.
func WithRand(r *rand.Rand) Option {
	return func(reg *Registry) {
		if r != nil {
			reg.rng = r
		}
	}
}

// WithStabilityConfig overrides the stability trial parameters.
func WithStabilityConfig(cfg StabilityConfig) Option {
	return func(reg *Registry) { reg.stability = cfg.withDefaults() }
}

// NewRegistry creates an empty registry over the shared engine.
func NewRegistry(eng *engine.Engine, opts ...Option) *Registry {
	reg := &Registry{
		engine:    eng,
		stability: DefaultStabilityConfig(),
		basins:    make(map[string]*State),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Engine returns the shared engine.
func (r *Registry) Engine() *engine.Engine { return r.engine }

// CreateBasin encodes seed, stores it once in the engine and registers the
// basin under name. An existing basin with the same name is replaced.
func (r *Registry) CreateBasin(name, seed string, metadata map[string]string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(name, seed, metadata)
}

// EnsureBasin creates the basin unless one is already registered under name.
// The boolean reports whether a new basin was created.
func (r *Registry) EnsureBasin(name, seed string, metadata map[string]string) (State, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.basins[name]; ok {
		return s.clone(), false, nil
	}
	s, err := r.create(name, seed, metadata)
	return s, err == nil, err
}

func (r *Registry) create(name, seed string, metadata map[string]string) (State, error) {
	p := pattern.Encode(seed, r.engine.Dimensions())
	if err := r.engine.StorePattern(p, 1); err != nil {
		return State{}, fmt.Errorf("store basin %s: %w", name, err)
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	s := &State{
		Name:       name,
		Pattern:    p,
		Energy:     r.engine.Energy(p),
		Activation: 1.0,
		Stability:  1.0,
		Degree:     1,
		Metadata:   meta,
		CreatedAt:  time.Now(),
	}
	if _, replaced := r.basins[name]; replaced {
		log.Printf("registry: replacing basin %s", name)
	}
	r.basins[name] = s
	return s.clone(), nil
}

// Reinforce stores the basin's pattern again with the given degree, deepening
// its attractor, and refreshes its energy.
func (r *Registry) Reinforce(name string, degree int) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.basins[name]
	if !ok {
		return State{}, fmt.Errorf("reinforce %s: %w", name, ErrNotFound)
	}
	if err := r.engine.StorePattern(s.Pattern, degree); err != nil {
		return State{}, fmt.Errorf("reinforce %s: %w", name, err)
	}
	s.Degree += degree
	s.Activation = 1.0
	s.Energy = r.engine.Energy(s.Pattern)
	return s.clone(), nil
}

// Get returns a copy of the named basin.
func (r *Registry) Get(name string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.basins[name]
	if !ok {
		return State{}, false
	}
	return s.clone(), true
}

// List returns copies of every basin, sorted by name.
func (r *Registry) List() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.basins))
	for _, s := range r.basins {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered basins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.basins)
}

// FindNearest encodes query and lets the shared network settle from it.
// It returns nil only when no basin has been created yet.
func (r *Registry) FindNearest(query string, maxIterations int) *engine.ConvergenceResult {
	if r.Len() == 0 {
		return nil
	}
	cue := pattern.Encode(query, r.engine.Dimensions())
	res := r.engine.RunUntilConvergence(cue, maxIterations)
	return &res
}

// Match returns the basin whose pattern best agrees with state, counting a
// pattern's negation as agreement, together with the normalized overlap
// (negative when state sits on the negated pattern).
func (r *Registry) Match(state pattern.Pattern) (State, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *State
	bestOverlap := 0.0
	for _, s := range r.basins {
		ov := r.engine.NormalizedOverlap(state, s.Pattern)
		switch {
		case best == nil,
			math.Abs(ov) > math.Abs(bestOverlap),
			math.Abs(ov) == math.Abs(bestOverlap) && s.Name < best.Name:
			best, bestOverlap = s, ov
		}
	}
	if best == nil {
		return State{}, 0, false
	}
	return best.clone(), bestOverlap, true
}
