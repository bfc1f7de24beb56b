package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/router"
)

// *DB is the router's catalogue and decision log.
var (
	_ router.Catalogue   = (*DB)(nil)
	_ router.DecisionLog = (*DB)(nil)
)

func TestUpsertAndGetBasin(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := basin.Descriptor{
		Name:        "cognitive",
		Description: "cognitive science",
		Concepts:    []string{"brain", "memory"},
		Strength:    1.0,
	}
	if err := db.UpsertBasin(ctx, d); err != nil {
		t.Fatalf("UpsertBasin: %v", err)
	}

	got, err := db.GetBasin(ctx, "cognitive")
	if err != nil {
		t.Fatalf("GetBasin: %v", err)
	}
	if got == nil {
		t.Fatal("expected basin, got nil")
	}
	if got.Description != d.Description || got.Strength != 1.0 {
		t.Errorf("got %+v", got)
	}
	if len(got.Concepts) != 2 || got.Concepts[0] != "brain" || got.Concepts[1] != "memory" {
		t.Errorf("concepts = %v", got.Concepts)
	}
}

func TestGetBasinMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetBasin(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetBasin: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUpsertBasinKeepsStrength(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	db.UpsertBasin(ctx, basin.Descriptor{Name: "a", Description: "first", Strength: 1.0})
	if _, err := db.AdjustStrength(ctx, "a", 0.5); err != nil {
		t.Fatalf("AdjustStrength: %v", err)
	}
	if err := db.UpsertBasin(ctx, basin.Descriptor{Name: "a", Description: "second", Strength: 9}); err != nil {
		t.Fatalf("UpsertBasin: %v", err)
	}

	got, _ := db.GetBasin(ctx, "a")
	if got.Description != "second" {
		t.Errorf("description = %q, want second", got.Description)
	}
	if got.Strength != 1.5 {
		t.Errorf("strength = %f, want 1.5 (learned strength survives upsert)", got.Strength)
	}
}

func TestUpsertBasinEmptyName(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertBasin(context.Background(), basin.Descriptor{Name: "  "}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestListBasinsSorted(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, name := range []string{"physics", "art", "cognitive"} {
		db.UpsertBasin(ctx, basin.Descriptor{Name: name, Strength: 1})
	}

	list, err := db.ListBasins(ctx)
	if err != nil {
		t.Fatalf("ListBasins: %v", err)
	}
	want := []string{"art", "cognitive", "physics"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, d := range list {
		if d.Name != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, d.Name, want[i])
		}
		if d.Concepts == nil {
			t.Errorf("list[%d] concepts should decode to an empty slice", i)
		}
	}
}

func TestAdjustStrength(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.UpsertBasin(ctx, basin.Descriptor{Name: "a", Strength: 1.0})

	tests := []struct {
		delta float64
		want  float64
	}{
		{0.04, 1.04},
		{-0.04, 1.0},
		{-5, 0}, // floored
		{0.02, 0.02},
	}
	for _, tt := range tests {
		got, err := db.AdjustStrength(ctx, "a", tt.delta)
		if err != nil {
			t.Fatalf("AdjustStrength(%f): %v", tt.delta, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AdjustStrength(%f) = %f, want %f", tt.delta, got, tt.want)
		}
	}
}

func TestAdjustStrengthUnknown(t *testing.T) {
	db := testDB(t)
	_, err := db.AdjustStrength(context.Background(), "ghost", 0.1)
	if !errors.Is(err, basin.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
