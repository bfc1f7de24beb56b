package engine

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Capacity accounting.
//
// The effective condition number of W (largest over smallest positive
// eigenvalue) grows as stored patterns start to interfere. Empirically the
// network becomes unreliable somewhere between 5 and 10.
const (
	DefaultConditionThreshold = 5.0

	// positiveEigenTolerance is the smallest eigenvalue counted as positive.
	positiveEigenTolerance = 1e-10
)

// CapacityReport summarizes the load on the weight matrix.
type CapacityReport struct {
	Units             int     `json:"units"`
	StoredPatterns    int     `json:"stored_patterns"`
	TotalDegree       int     `json:"total_degree"`
	ConditionNumber   float64 `json:"condition_number"`
	Threshold         float64 `json:"threshold"`
	CapacityRemaining float64 `json:"capacity_remaining"`
	Overloaded        bool    `json:"overloaded"`
}

// ConditionNumber returns the ratio of the largest to the smallest positive
// eigenvalue of W. It is 1.0 when at most one eigenvalue is positive and
// +Inf when the smallest positive eigenvalue is numerically zero.
func (e *Engine) ConditionNumber() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conditionNumber()
}

func (e *Engine) conditionNumber() float64 {
	data := make([]float64, len(e.weights))
	copy(data, e.weights)
	sym := mat.NewSymDense(e.n, data)

	var es mat.EigenSym
	if ok := es.Factorize(sym, false); !ok {
		return math.Inf(1)
	}

	maxPos, minPos := 0.0, math.Inf(1)
	count := 0
	for _, v := range es.Values(nil) {
		if v <= positiveEigenTolerance {
			continue
		}
		count++
		maxPos = math.Max(maxPos, v)
		minPos = math.Min(minPos, v)
	}
	if count <= 1 {
		return 1.0
	}
	if minPos == 0 {
		return math.Inf(1)
	}
	return maxPos / minPos
}

// CapacityRemaining maps the condition number linearly onto [0, 1]:
// 1 at a condition number of 1, 0 once the threshold is reached.
func (e *Engine) CapacityRemaining() float64 {
	return capacityRemaining(e.ConditionNumber(), e.threshold)
}

func capacityRemaining(kappa, threshold float64) float64 {
	if math.IsInf(kappa, 1) || math.IsNaN(kappa) || kappa >= threshold {
		return 0
	}
	if threshold <= 1 {
		return 1
	}
	remaining := 1 - (kappa-1)/(threshold-1)
	return math.Max(0, math.Min(1, remaining))
}

// Capacity returns a full capacity report. Overload is reported, never
// returned as an error.
func (e *Engine) Capacity() CapacityReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, sp := range e.ledger {
		total += sp.Degree
	}
	kappa := e.conditionNumber()
	remaining := capacityRemaining(kappa, e.threshold)
	return CapacityReport{
		Units:             e.n,
		StoredPatterns:    len(e.ledger),
		TotalDegree:       total,
		ConditionNumber:   kappa,
		Threshold:         e.threshold,
		CapacityRemaining: remaining,
		Overloaded:        kappa >= e.threshold,
	}
}
