package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/lazypower/attractor/internal/pattern"
)

var (
	// ErrInvalidPattern is returned when a pattern's length differs from the
	// engine's unit count.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidDegree is returned when a pattern is stored with degree < 1.
	ErrInvalidDegree = errors.New("invalid degree")
)

// StoredPattern is one entry of the engine's pattern ledger.
type StoredPattern struct {
	Pattern pattern.Pattern
	Degree  int
	Order   int
}

// ConvergenceResult describes one run of the asynchronous dynamics.
type ConvergenceResult struct {
	Converged        bool            `json:"converged"`
	Iterations       int             `json:"iterations"`
	FinalState       pattern.Pattern `json:"final_state"`
	FinalEnergy      float64         `json:"final_energy"`
	EnergyTrajectory []float64       `json:"energy_trajectory"`
}

// Engine is a Hopfield network holding a single superimposed weight matrix.
//
// StorePattern is the only mutation and takes the write lock. Every other
// operation, including a whole convergence run, holds the read lock, so the
// weights never change in the middle of a sweep.
//
// Apart from StorePattern, callers must pass states of length Dimensions().
type Engine struct {
	n         int
	useBias   bool
	threshold float64

	mu      sync.RWMutex
	weights []float64 // n*n, row-major
	bias    []float64
	ledger  []StoredPattern

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithBias enables the bias vector. The bias is overwritten by every stored
// pattern rather than accumulated.
func WithBias(enabled bool) Option {
	return func(e *Engine) { e.useBias = enabled }
}

// WithRand sets the source for asynchronous update order.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithConditionThreshold sets the condition number at which capacity is
// considered exhausted.
func WithConditionThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// New creates an engine with n units, zero weights and an empty ledger.
func New(n int, opts ...Option) *Engine {
	if n <= 0 {
		n = pattern.DefaultDimensions
	}
	e := &Engine{
		n:         n,
		threshold: DefaultConditionThreshold,
		weights:   make([]float64, n*n),
		bias:      make([]float64, n),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions returns the number of units.
func (e *Engine) Dimensions() int { return e.n }

// BiasEnabled reports whether the bias term participates in the dynamics.
func (e *Engine) BiasEnabled() bool { return e.useBias }

// StorePattern superimposes p onto the weights with the given multiplicity:
// W += (degree/n) * p pᵀ, diagonal kept at zero.
func (e *Engine) StorePattern(p pattern.Pattern, degree int) error {
	if len(p) != e.n {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidPattern, len(p), e.n)
	}
	if degree < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDegree, degree)
	}
	p = pattern.Normalize(p)
	scale := float64(degree) / float64(e.n)

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := 0; i < e.n; i++ {
		row := e.weights[i*e.n : (i+1)*e.n]
		pi := float64(p[i])
		for j := 0; j < e.n; j++ {
			if i == j {
				continue
			}
			row[j] += scale * pi * float64(p[j])
		}
	}
	if e.useBias {
		for i, v := range p {
			e.bias[i] = float64(v)
		}
	}
	e.ledger = append(e.ledger, StoredPattern{
		Pattern: p,
		Degree:  degree,
		Order:   len(e.ledger),
	})
	return nil
}

// Patterns returns a snapshot of the pattern ledger in insertion order.
func (e *Engine) Patterns() []StoredPattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]StoredPattern, len(e.ledger))
	for i, sp := range e.ledger {
		out[i] = StoredPattern{Pattern: pattern.Clone(sp.Pattern), Degree: sp.Degree, Order: sp.Order}
	}
	return out
}

// Weight returns W[i][j].
func (e *Engine) Weight(i, j int) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights[i*e.n+j]
}

// Energy returns E = -½ sᵀWs, minus b·s when bias is enabled.
func (e *Engine) Energy(state pattern.Pattern) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.energy(state)
}

func (e *Engine) energy(s pattern.Pattern) float64 {
	var quad float64
	for i := 0; i < e.n; i++ {
		if s[i] == 0 {
			continue
		}
		row := e.weights[i*e.n : (i+1)*e.n]
		var h float64
		for j, w := range row {
			h += w * float64(s[j])
		}
		quad += float64(s[i]) * h
	}
	energy := -0.5 * quad
	if e.useBias {
		for i, b := range e.bias {
			energy -= b * float64(s[i])
		}
	}
	return energy
}

// localField returns h_i = W[i]·s (+ b_i).
func (e *Engine) localField(s pattern.Pattern, i int) float64 {
	row := e.weights[i*e.n : (i+1)*e.n]
	var h float64
	for j, w := range row {
		h += w * float64(s[j])
	}
	if e.useBias {
		h += e.bias[i]
	}
	return h
}

// updateInPlace sets s[i] to sign(h_i). A zero field leaves the unit as is.
func (e *Engine) updateInPlace(s pattern.Pattern, i int) {
	h := e.localField(s, i)
	switch {
	case h > 0:
		s[i] = 1
	case h < 0:
		s[i] = -1
	}
}

// UpdateUnit returns a copy of state with unit i updated.
func (e *Engine) UpdateUnit(state pattern.Pattern, i int) pattern.Pattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	next := pattern.Clone(state)
	e.updateInPlace(next, i)
	return next
}

// UpdateAll performs one asynchronous sweep over every unit in a random
// order. Each update sees the units already updated earlier in the sweep.
func (e *Engine) UpdateAll(state pattern.Pattern) pattern.Pattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sweep(state)
}

func (e *Engine) sweep(state pattern.Pattern) pattern.Pattern {
	next := pattern.Clone(state)
	for _, i := range e.permutation() {
		e.updateInPlace(next, i)
	}
	return next
}

func (e *Engine) permutation() []int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Perm(e.n)
}

// RunUntilConvergence sweeps from initial until a full sweep leaves the state
// unchanged or maxIterations sweeps have run. The energy after every sweep is
// recorded and never increases.
func (e *Engine) RunUntilConvergence(initial pattern.Pattern, maxIterations int) ConvergenceResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := pattern.Normalize(initial)
	trajectory := make([]float64, 0, min(maxIterations, 16))

	for iter := 1; iter <= maxIterations; iter++ {
		next := e.sweep(state)
		trajectory = append(trajectory, e.energy(next))
		if pattern.Equal(next, state) {
			return ConvergenceResult{
				Converged:        true,
				Iterations:       iter,
				FinalState:       next,
				FinalEnergy:      trajectory[len(trajectory)-1],
				EnergyTrajectory: trajectory,
			}
		}
		state = next
	}

	final := e.energy(state)
	return ConvergenceResult{
		Converged:        false,
		Iterations:       max(maxIterations, 0),
		FinalState:       state,
		FinalEnergy:      final,
		EnergyTrajectory: trajectory,
	}
}

// Recall runs the dynamics from a partial or noisy cue and returns the
// final state.
func (e *Engine) Recall(partial pattern.Pattern, maxIterations int) pattern.Pattern {
	return e.RunUntilConvergence(partial, maxIterations).FinalState
}

// Overlap returns the unnormalized dot product p·s. Its sign separates a
// pattern from its negation.
func (e *Engine) Overlap(state, p pattern.Pattern) int {
	return Overlap(state, p)
}

// NormalizedOverlap returns Overlap divided by the unit count, in [-1, 1].
func (e *Engine) NormalizedOverlap(state, p pattern.Pattern) float64 {
	return float64(Overlap(state, p)) / float64(e.n)
}

// Overlap is the engine-independent dot product of two patterns over their
// common prefix.
func Overlap(state, p pattern.Pattern) int {
	n := len(state)
	if len(p) < n {
		n = len(p)
	}
	dot := 0
	for i := 0; i < n; i++ {
		dot += int(state[i]) * int(p[i])
	}
	return dot
}
