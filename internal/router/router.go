package router

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/metrics"
	"github.com/lazypower/attractor/internal/pattern"
)

// neutralScore is used when a basin has no pattern to compare against.
const neutralScore = 0.5

// Router scores content against basins, blends in an oracle for ambiguous
// cases and applies reinforcement. Each call is an independent decision.
type Router struct {
	registry  *basin.Registry
	catalogue Catalogue
	oracle    Oracle
	decisions DecisionLog
	cfg       Config
}

// Option configures a Router.
type Option func(*Router)

// WithOracle enables oracle blending for ambiguous scores.
func WithOracle(o Oracle) Option {
	return func(r *Router) { r.oracle = o }
}

// WithDecisionLog records every decision.
func WithDecisionLog(l DecisionLog) Option {
	return func(r *Router) { r.decisions = l }
}

// WithConfig overrides the routing thresholds.
func WithConfig(cfg Config) Option {
	return func(r *Router) { r.cfg = cfg }
}

// New creates a router over the shared registry and the basin catalogue.
func New(reg *basin.Registry, cat Catalogue, opts ...Option) *Router {
	r := &Router{
		registry:  reg,
		catalogue: cat,
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the router's basin registry.
func (r *Router) Registry() *basin.Registry { return r.registry }

// OracleEnabled reports whether ambiguous scores are sent to an oracle.
func (r *Router) OracleEnabled() bool { return r.oracle != nil && r.cfg.UseOracle }

// Warm makes sure every catalogued basin has a pattern in the network.
// Basins created here are stored with the degree their strength earns, so a
// restarted process rebuilds roughly the attractor landscape it had before.
func (r *Router) Warm(ctx context.Context) (int, error) {
	descs, err := r.catalogue.ListBasins(ctx)
	if err != nil {
		return 0, fmt.Errorf("list basins: %w", err)
	}
	created := 0
	for _, d := range descs {
		ok, err := r.ensurePattern(d)
		if err != nil {
			return created, err
		}
		if !ok {
			continue
		}
		created++
		if extra := r.degreeFor(d.Strength) - 1; extra > 0 {
			if _, err := r.registry.Reinforce(d.Name, extra); err != nil {
				return created, err
			}
		}
	}
	r.refreshGauges()
	return created, nil
}

// ensurePattern stores a pattern for d once; it reports whether one was
// created.
func (r *Router) ensurePattern(d basin.Descriptor) (bool, error) {
	if _, ok := r.registry.Get(d.Name); ok {
		return false, nil
	}
	_, created, err := r.registry.EnsureBasin(d.Name, d.SeedText(), map[string]string{
		"source": "catalogue",
	})
	if err != nil {
		return false, fmt.Errorf("ensure pattern %s: %w", d.Name, err)
	}
	if created {
		log.Printf("router: stored pattern for basin %s", d.Name)
	}
	return created, nil
}

// HopfieldScore maps the normalized overlap between the encoded content and
// the basin's pattern onto [0, 1]. A basin without a pattern scores 0.5.
func (r *Router) HopfieldScore(content, basinName string) (float64, bool) {
	s, ok := r.registry.Get(basinName)
	if !ok {
		return neutralScore, false
	}
	eng := r.registry.Engine()
	cue := pattern.Encode(content, eng.Dimensions())
	return clamp01((eng.NormalizedOverlap(cue, s.Pattern) + 1) / 2), true
}

// Route scores content against one basin.
//
// Scores above ConfidentHigh or below ConfidentLow are used as is. Scores in
// between go to the oracle, when one is configured, exactly once; its answer
// is blended with fixed weights. A failing oracle leaves the Hopfield score
// in place. Only catalogue errors are returned.
func (r *Router) Route(ctx context.Context, content, basinName string) (Decision, error) {
	desc, err := r.catalogue.GetBasin(ctx, basinName)
	if err != nil {
		return Decision{}, fmt.Errorf("get basin %s: %w", basinName, err)
	}
	if desc != nil {
		if _, err := r.ensurePattern(*desc); err != nil {
			return Decision{}, err
		}
	} else {
		desc = &basin.Descriptor{Name: basinName}
	}

	d := Decision{
		ID:        uuid.NewString(),
		Basin:     basinName,
		CreatedAt: time.Now().UTC(),
	}

	score, hasPattern := r.HopfieldScore(content, basinName)
	d.HopfieldScore = score
	d.BlendedScore = score

	switch {
	case !hasPattern:
		d.Zone = ZoneNoPattern
		d.Reason = "basin has no pattern; neutral score"
	case score > r.cfg.ConfidentHigh || score < r.cfg.ConfidentLow:
		d.Zone = ZoneConfident
		d.Reason = fmt.Sprintf("confident hopfield score %.3f", score)
	default:
		d.Zone = ZoneAmbiguous
		r.consultOracle(ctx, content, *desc, &d)
	}

	if r.cfg.ExploreTransitions {
		if err := r.exploreTransitions(ctx, content, &d); err != nil {
			return Decision{}, err
		}
	}

	metrics.RecordDecision(string(d.Zone), d.OracleScore != nil, d.TransitionSuggested)
	r.refreshGauges()

	if r.decisions != nil {
		if err := r.decisions.RecordDecision(ctx, d); err != nil {
			log.Printf("router: record decision %s: %v", d.ID, err)
		}
	}
	return d, nil
}

func (r *Router) consultOracle(ctx context.Context, content string, desc basin.Descriptor, d *Decision) {
	if !r.OracleEnabled() {
		d.Reason = fmt.Sprintf("ambiguous hopfield score %.3f; oracle disabled", d.HopfieldScore)
		return
	}

	oracleScore, err := r.oracle.Score(ctx, content, desc)
	if err != nil {
		log.Printf("router: oracle unavailable for %s: %v", desc.Name, err)
		metrics.OracleFailure()
		d.Reason = fmt.Sprintf("ambiguous hopfield score %.3f; oracle unavailable, using hopfield only", d.HopfieldScore)
		return
	}
	oracleScore = clamp01(oracleScore)
	d.OracleScore = &oracleScore
	d.BlendedScore = r.blend(d.HopfieldScore, oracleScore)
	d.Reason = fmt.Sprintf("ambiguous hopfield score %.3f blended with oracle %.3f", d.HopfieldScore, oracleScore)
}

func (r *Router) blend(hopfield, oracle float64) float64 {
	w := clamp01(r.cfg.OracleWeight)
	return clamp01((1-w)*hopfield + w*oracle)
}

// exploreTransitions compares content against every other basin and reports
// a better fit when it beats the decision's score by more than the margin.
// The suggestion is never applied.
func (r *Router) exploreTransitions(ctx context.Context, content string, d *Decision) error {
	descs, err := r.catalogue.ListBasins(ctx)
	if err != nil {
		return fmt.Errorf("list basins: %w", err)
	}
	for _, desc := range descs {
		if _, err := r.ensurePattern(desc); err != nil {
			return err
		}
	}

	bestName, bestScore := "", math.Inf(-1)
	for _, s := range r.registry.List() {
		if s.Name == d.Basin {
			continue
		}
		score, _ := r.HopfieldScore(content, s.Name)
		if score > bestScore {
			bestName, bestScore = s.Name, score
		}
	}
	if bestName != "" && bestScore-d.BlendedScore > r.cfg.TransitionMargin {
		d.TransitionSuggested = true
		d.SuggestedBasin = bestName
		d.SuggestedScore = bestScore
		d.Reason += fmt.Sprintf("; %s resonates more strongly (%.3f)", bestName, bestScore)
	}
	return nil
}

// RouteBest routes content to whichever basin it resonates with most.
// With no basins at all the decision is empty with a neutral score.
func (r *Router) RouteBest(ctx context.Context, content string) (Decision, error) {
	if _, err := r.Warm(ctx); err != nil {
		return Decision{}, err
	}

	bestName, bestScore := "", math.Inf(-1)
	for _, s := range r.registry.List() {
		score, _ := r.HopfieldScore(content, s.Name)
		if score > bestScore {
			bestName, bestScore = s.Name, score
		}
	}
	if bestName == "" {
		return Decision{
			ID:            uuid.NewString(),
			HopfieldScore: neutralScore,
			BlendedScore:  neutralScore,
			Zone:          ZoneNoPattern,
			Reason:        "no basins registered",
			CreatedAt:     time.Now().UTC(),
		}, nil
	}
	return r.Route(ctx, content, bestName)
}

// Reinforce applies an externally observed score to a basin. Its strength
// moves by (score - 0.5) * LearningRate; a confirming score (above 0.5) also
// re-stores the pattern with a degree that grows with the new strength.
func (r *Router) Reinforce(ctx context.Context, basinName string, score float64) (Reinforcement, error) {
	score = clamp01(score)
	delta := (score - neutralScore) * r.cfg.LearningRate

	strength, err := r.catalogue.AdjustStrength(ctx, basinName, delta)
	if err != nil {
		return Reinforcement{}, fmt.Errorf("adjust strength %s: %w", basinName, err)
	}
	res := Reinforcement{Basin: basinName, Score: score, Delta: delta, Strength: strength}
	metrics.RecordReinforcement(delta)

	if score <= neutralScore {
		return res, nil
	}

	if _, ok := r.registry.Get(basinName); !ok {
		desc, err := r.catalogue.GetBasin(ctx, basinName)
		if err != nil {
			return res, fmt.Errorf("get basin %s: %w", basinName, err)
		}
		if desc == nil {
			return res, nil
		}
		if _, err := r.ensurePattern(*desc); err != nil {
			return res, err
		}
	}

	degree := r.degreeFor(strength)
	if _, err := r.registry.Reinforce(basinName, degree); err != nil {
		return res, err
	}
	res.Degree = degree
	r.refreshGauges()
	log.Printf("router: reinforced %s (strength %.3f, degree %d)", basinName, strength, degree)
	return res, nil
}

// degreeFor buckets a strength into a storage multiplicity in
// [1, MaxDegree].
func (r *Router) degreeFor(strength float64) int {
	if r.cfg.StrengthBucket <= 0 {
		return 1
	}
	degree := 1 + int(math.Floor(math.Max(strength, 0)/r.cfg.StrengthBucket))
	if r.cfg.MaxDegree > 0 && degree > r.cfg.MaxDegree {
		degree = r.cfg.MaxDegree
	}
	return degree
}

func (r *Router) refreshGauges() {
	metrics.SetBasins(r.registry.Len())
	metrics.SetCapacity(r.registry.Engine().Capacity())
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return neutralScore
	}
	return math.Max(0, math.Min(1, v))
}
