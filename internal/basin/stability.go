package basin

import (
	"fmt"
	"math"

	"github.com/lazypower/attractor/internal/pattern"
)

// StabilityConfig controls noise trials. Noise fractions are spaced linearly
// from NoiseMin to NoiseMax, one trial each.
type StabilityConfig struct {
	Samples       int     `yaml:"samples"`
	NoiseMin      float64 `yaml:"noise_min"`
	NoiseMax      float64 `yaml:"noise_max"`
	MaxIterations int     `yaml:"max_iterations"`
}

// DefaultStabilityConfig returns 10 trials between 5% and 50% noise.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		Samples:       10,
		NoiseMin:      0.05,
		NoiseMax:      0.5,
		MaxIterations: 50,
	}
}

func (c StabilityConfig) withDefaults() StabilityConfig {
	d := DefaultStabilityConfig()
	if c.Samples <= 0 {
		c.Samples = d.Samples
	}
	if c.NoiseMax <= 0 {
		c.NoiseMin, c.NoiseMax = d.NoiseMin, d.NoiseMax
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	return c
}

// NoiseLevels returns the noise fraction used by each trial.
func (c StabilityConfig) NoiseLevels() []float64 {
	levels := make([]float64, c.Samples)
	if c.Samples == 1 {
		levels[0] = c.NoiseMin
		return levels
	}
	step := (c.NoiseMax - c.NoiseMin) / float64(c.Samples-1)
	for i := range levels {
		levels[i] = c.NoiseMin + float64(i)*step
	}
	return levels
}

// Stability corrupts the basin's pattern at each noise level and counts how
// often the network settles back onto the pattern or its exact negation.
// The measured fraction is stored on the basin and returned.
func (r *Registry) Stability(name string) (float64, error) {
	s, ok := r.Get(name)
	if !ok {
		return 0, fmt.Errorf("stability %s: %w", name, ErrNotFound)
	}

	n := len(s.Pattern)
	negated := pattern.Negate(s.Pattern)
	levels := r.stability.NoiseLevels()

	successes := 0
	for _, frac := range levels {
		noisy := pattern.Clone(s.Pattern)
		for _, i := range r.noiseIndices(n, int(math.Round(frac*float64(n)))) {
			noisy[i] = -noisy[i]
		}
		final := r.engine.Recall(noisy, r.stability.MaxIterations)
		if pattern.Equal(final, s.Pattern) || pattern.Equal(final, negated) {
			successes++
		}
	}
	stability := float64(successes) / float64(len(levels))

	r.mu.Lock()
	if cur, ok := r.basins[name]; ok {
		cur.Stability = stability
	}
	r.mu.Unlock()

	return stability, nil
}

// noiseIndices picks k distinct unit indices.
func (r *Registry) noiseIndices(n, k int) []int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	k = min(max(k, 0), n)
	return r.rng.Perm(n)[:k]
}
