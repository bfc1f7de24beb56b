package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lazypower/attractor/internal/basin"
)

// MemoryCatalogue is an in-process Catalogue. It backs tests and runs where
// no database is configured.
type MemoryCatalogue struct {
	mu     sync.Mutex
	basins map[string]basin.Descriptor
}

// NewMemoryCatalogue creates a catalogue holding the given descriptors.
func NewMemoryCatalogue(descs ...basin.Descriptor) *MemoryCatalogue {
	c := &MemoryCatalogue{basins: make(map[string]basin.Descriptor, len(descs))}
	for _, d := range descs {
		c.basins[d.Name] = d
	}
	return c
}

// Put adds or replaces a descriptor.
func (c *MemoryCatalogue) Put(d basin.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.basins[d.Name] = d
}

func (c *MemoryCatalogue) GetBasin(_ context.Context, name string) (*basin.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.basins[name]
	if !ok {
		return nil, nil
	}
	d.Concepts = append([]string(nil), d.Concepts...)
	return &d, nil
}

func (c *MemoryCatalogue) ListBasins(_ context.Context) ([]basin.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]basin.Descriptor, 0, len(c.basins))
	for _, d := range c.basins {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AdjustStrength adds delta to the basin's strength, floored at zero.
func (c *MemoryCatalogue) AdjustStrength(_ context.Context, name string, delta float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.basins[name]
	if !ok {
		return 0, fmt.Errorf("adjust strength: %w", basin.ErrNotFound)
	}
	d.Strength = max(0, d.Strength+delta)
	c.basins[name] = d
	return d.Strength, nil
}
