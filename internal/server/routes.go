package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/metrics"
	"github.com/lazypower/attractor/internal/router"
)

// basinView joins a catalogue entry with its in-memory network state.
type basinView struct {
	basin.Descriptor
	Loaded     bool    `json:"loaded"`
	Energy     float64 `json:"energy"`
	Activation float64 `json:"activation"`
	Stability  float64 `json:"stability"`
	Degree     int     `json:"degree"`
}

func (s *Server) view(d basin.Descriptor) basinView {
	v := basinView{Descriptor: d}
	if v.Concepts == nil {
		v.Concepts = []string{}
	}
	if st, ok := s.rt.Registry().Get(d.Name); ok {
		v.Loaded = true
		v.Energy = st.Energy
		v.Activation = st.Activation
		v.Stability = st.Stability
		v.Degree = st.Degree
	}
	return v
}

func (s *Server) handleListBasins(w http.ResponseWriter, r *http.Request) {
	descs, err := s.db.ListBasins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]basinView, 0, len(descs))
	for _, d := range descs {
		views = append(views, s.view(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"basins": views,
		"count":  len(views),
	})
}

func (s *Server) handleAddBasin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Concepts    []string `json:"concepts"`
		Strength    *float64 `json:"strength"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	d := basin.Descriptor{
		Name:        req.Name,
		Description: req.Description,
		Concepts:    req.Concepts,
		Strength:    1.0,
	}
	if req.Strength != nil {
		d.Strength = *req.Strength
	}

	ctx := r.Context()
	if err := s.db.UpsertBasin(ctx, d); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.rt.Warm(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stored, err := s.db.GetBasin(ctx, d.Name)
	if err != nil || stored == nil {
		writeError(w, http.StatusInternalServerError, "basin not readable after upsert")
		return
	}
	writeJSON(w, http.StatusCreated, s.view(*stored))
}

func (s *Server) handleGetBasin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d, err := s.db.GetBasin(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "basin not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, s.view(*d))
}

func (s *Server) handleStability(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.rt.Warm(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stability, err := s.rt.Registry().Stability(name)
	if errors.Is(err, basin.ErrNotFound) {
		writeError(w, http.StatusNotFound, "basin not found: "+name)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"basin":     name,
		"stability": stability,
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Basin   string `json:"basin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// The oracle may be a remote model; bound the whole decision.
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var (
		d   router.Decision
		err error
	)
	if req.Basin == "" {
		d, err = s.rt.RouteBest(ctx, req.Content)
	} else {
		d, err = s.rt.Route(ctx, req.Content, req.Basin)
	}
	if err != nil {
		log.Printf("server: route failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Basin string   `json:"basin"`
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Basin == "" || req.Score == nil {
		writeError(w, http.StatusBadRequest, "basin and score required")
		return
	}

	res, err := s.rt.Reinforce(r.Context(), req.Basin, *req.Score)
	if errors.Is(err, basin.ErrNotFound) {
		writeError(w, http.StatusNotFound, "basin not found: "+req.Basin)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	maxIter := s.maxIterations
	if v := r.URL.Query().Get("max_iterations"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxIter = n
		}
	}
	if _, err := s.rt.Warm(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reg := s.rt.Registry()
	res := reg.FindNearest(query, maxIter)
	if res == nil {
		writeError(w, http.StatusNotFound, "no basins registered")
		return
	}
	metrics.ObserveConvergence(*res)

	resp := map[string]any{
		"converged":         res.Converged,
		"iterations":        res.Iterations,
		"final_energy":      res.FinalEnergy,
		"energy_trajectory": res.EnergyTrajectory,
	}
	if st, overlap, ok := reg.Match(res.FinalState); ok {
		resp["basin"] = st.Name
		resp["overlap"] = overlap
		resp["negated"] = overlap < 0
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	report := s.rt.Registry().Engine().Capacity()
	metrics.SetCapacity(report)

	// JSON has no infinity; a degenerate matrix reports a null condition number.
	var kappa *float64
	if !math.IsInf(report.ConditionNumber, 0) && !math.IsNaN(report.ConditionNumber) {
		kappa = &report.ConditionNumber
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"units":              report.Units,
		"stored_patterns":    report.StoredPatterns,
		"total_degree":       report.TotalDegree,
		"condition_number":   kappa,
		"threshold":          report.Threshold,
		"capacity_remaining": report.CapacityRemaining,
		"overloaded":         report.Overloaded,
	})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	decisions, err := s.db.RecentDecisions(r.Context(), r.URL.Query().Get("basin"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if decisions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"decisions": []any{}, "count": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}
