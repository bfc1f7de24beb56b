// Package oracle provides semantic scorers the router can consult when the
// Hopfield score alone is ambiguous.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/llm"
)

// ErrUnavailable is returned by oracles that cannot produce a score.
var ErrUnavailable = errors.New("oracle unavailable")

// Null never scores. Routers configured with it always degrade to the
// Hopfield score, which makes it useful for offline runs.
type Null struct{}

func (Null) Score(context.Context, string, basin.Descriptor) (float64, error) {
	return 0, ErrUnavailable
}

// LLM asks a language model to rate the fit between content and a basin.
type LLM struct {
	client llm.Client
}

// NewLLM creates an oracle backed by client.
func NewLLM(client llm.Client) *LLM {
	return &LLM{client: client}
}

// Score prompts the model and parses the first number in its reply.
func (o *LLM) Score(ctx context.Context, content string, d basin.Descriptor) (float64, error) {
	if o.client == nil {
		return 0, ErrUnavailable
	}
	resp, err := o.client.Complete(ctx, llm.ResonancePrompt(content, d.Name, d.Description, d.Concepts))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp == nil {
		return 0, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return ParseScore(resp.Content)
}

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// ParseScore extracts the first number from an oracle reply and clamps it to
// [0, 1]. Percentages ("85%") are scaled down.
func ParseScore(text string) (float64, error) {
	text = strings.TrimSpace(text)
	loc := numberRe.FindStringIndex(text)
	if loc == nil {
		return 0, fmt.Errorf("%w: no score in reply %q", ErrUnavailable, truncate(text, 80))
	}
	v, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse score: %v", ErrUnavailable, err)
	}
	if strings.HasPrefix(text[loc[1]:], "%") {
		v /= 100
	}
	return math.Max(0, math.Min(1, v)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
