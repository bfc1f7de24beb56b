package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/attractor/internal/router"
)

// RecordDecision appends a routing decision to the audit log. Decisions
// without an ID are assigned one.
func (db *DB) RecordDecision(ctx context.Context, d router.Decision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	var transitionBasin sql.NullString
	var transitionScore sql.NullFloat64
	if d.TransitionSuggested {
		transitionBasin = sql.NullString{String: d.SuggestedBasin, Valid: true}
		transitionScore = sql.NullFloat64{Float64: d.SuggestedScore, Valid: true}
	}
	var oracleScore sql.NullFloat64
	if d.OracleScore != nil {
		oracleScore = sql.NullFloat64{Float64: *d.OracleScore, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO route_decisions (id, basin, hopfield_score, oracle_score, blended_score,
		                             zone, transition_basin, transition_score, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Basin, d.HopfieldScore, oracleScore, d.BlendedScore,
		string(d.Zone), transitionBasin, transitionScore, d.Reason, d.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decisions, newest first. An empty
// basin matches every basin.
func (db *DB) RecentDecisions(ctx context.Context, basinName string, limit int) ([]router.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, basin, hopfield_score, oracle_score, blended_score,
		       zone, transition_basin, transition_score, reason, created_at
		FROM route_decisions
		WHERE ? = '' OR basin = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, basinName, basinName, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []router.Decision
	for rows.Next() {
		var d router.Decision
		var zone string
		var oracleScore, transitionScore sql.NullFloat64
		var transitionBasin sql.NullString
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.Basin, &d.HopfieldScore, &oracleScore, &d.BlendedScore,
			&zone, &transitionBasin, &transitionScore, &d.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Zone = router.Zone(zone)
		if oracleScore.Valid {
			v := oracleScore.Float64
			d.OracleScore = &v
		}
		if transitionBasin.Valid {
			d.TransitionSuggested = true
			d.SuggestedBasin = transitionBasin.String
			d.SuggestedScore = transitionScore.Float64
		}
		d.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}
