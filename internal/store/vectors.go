package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds the cached embedding of a basin's seed text.
type VectorRecord struct {
	Basin      string
	Embedding  []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for a basin.
func (db *DB) SaveVector(ctx context.Context, basinName string, embedding []float64, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	_, err := db.ExecContext(ctx, `
		INSERT INTO basin_vectors (basin, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(basin) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, basinName, blob, model, len(embedding), now,
		blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the embedding for a basin, or nil if not found.
func (db *DB) GetVector(ctx context.Context, basinName string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRowContext(ctx, `
		SELECT basin, embedding, model, dimensions, created_at
		FROM basin_vectors WHERE basin = ?
	`, basinName).Scan(&v.Basin, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// CachedVector returns the stored embedding for a basin when it was produced
// by model. It satisfies oracle.VectorCache.
func (db *DB) CachedVector(ctx context.Context, basinName, model string) ([]float64, bool, error) {
	v, err := db.GetVector(ctx, basinName)
	if err != nil || v == nil || v.Model != model {
		return nil, false, err
	}
	return v.Embedding, true, nil
}

// DeleteVector removes the embedding for a basin.
func (db *DB) DeleteVector(ctx context.Context, basinName string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM basin_vectors WHERE basin = ?", basinName)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}
