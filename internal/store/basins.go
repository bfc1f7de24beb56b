package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/attractor/internal/basin"
)

// UpsertBasin inserts a basin or updates its description and concepts.
// Strength is only taken from d on insert; afterwards it is owned by
// AdjustStrength.
func (db *DB) UpsertBasin(ctx context.Context, d basin.Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("upsert basin: empty name")
	}
	concepts, err := encodeConcepts(d.Concepts)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()

	_, err = db.ExecContext(ctx, `
		INSERT INTO basins (name, description, concepts, strength, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET description = ?, concepts = ?, updated_at = ?
	`, name, d.Description, concepts, max(0, d.Strength), now, now,
		d.Description, concepts, now)
	if err != nil {
		return fmt.Errorf("upsert basin: %w", err)
	}
	// Seed text may have changed.
	if _, err := db.ExecContext(ctx, "DELETE FROM basin_vectors WHERE basin = ?", name); err != nil {
		return fmt.Errorf("invalidate basin vector: %w", err)
	}
	return nil
}

// GetBasin returns a basin by name, or nil if not found.
func (db *DB) GetBasin(ctx context.Context, name string) (*basin.Descriptor, error) {
	var d basin.Descriptor
	var concepts string
	err := db.QueryRowContext(ctx,
		"SELECT name, description, concepts, strength FROM basins WHERE name = ?", name,
	).Scan(&d.Name, &d.Description, &concepts, &d.Strength)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get basin: %w", err)
	}
	if d.Concepts, err = decodeConcepts(concepts); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListBasins returns every basin ordered by name.
func (db *DB) ListBasins(ctx context.Context) ([]basin.Descriptor, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, description, concepts, strength FROM basins ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list basins: %w", err)
	}
	defer rows.Close()

	var out []basin.Descriptor
	for rows.Next() {
		var d basin.Descriptor
		var concepts string
		if err := rows.Scan(&d.Name, &d.Description, &concepts, &d.Strength); err != nil {
			return nil, fmt.Errorf("scan basin: %w", err)
		}
		if d.Concepts, err = decodeConcepts(concepts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AdjustStrength adds delta to a basin's strength, floored at zero, and
// returns the new value. Unknown basins wrap basin.ErrNotFound.
func (db *DB) AdjustStrength(ctx context.Context, name string, delta float64) (float64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin adjust strength: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE basins SET strength = MAX(0, strength + ?), updated_at = ?
		WHERE name = ?
	`, delta, time.Now().UnixMilli(), name)
	if err != nil {
		return 0, fmt.Errorf("adjust strength: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("adjust strength %q: %w", name, basin.ErrNotFound)
	}

	var strength float64
	if err := tx.QueryRowContext(ctx, "SELECT strength FROM basins WHERE name = ?", name).Scan(&strength); err != nil {
		return 0, fmt.Errorf("read strength: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjust strength: %w", err)
	}
	return strength, nil
}

func encodeConcepts(concepts []string) (string, error) {
	if concepts == nil {
		concepts = []string{}
	}
	b, err := json.Marshal(concepts)
	if err != nil {
		return "", fmt.Errorf("encode concepts: %w", err)
	}
	return string(b), nil
}

func decodeConcepts(s string) ([]string, error) {
	var concepts []string
	if s == "" {
		return concepts, nil
	}
	if err := json.Unmarshal([]byte(s), &concepts); err != nil {
		return nil, fmt.Errorf("decode concepts: %w", err)
	}
	return concepts, nil
}
