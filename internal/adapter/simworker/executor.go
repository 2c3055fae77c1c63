// Package simworker simulates the worker pool. Each task type has a result
// generator in a dispatch table keyed by capability, so behavior follows
// the task's type, never the identity of the agent that happens to run it.
// All randomness flows from one seeded source: the same seed replays the
// same document outcomes.
package simworker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/port/state"
)

var vendors = []string{
	"Acme Corp",
	"Globex Industrial",
	"Initech Solutions",
	"Umbrella Logistics",
	"Vandelay Imports",
}

// Executor generates simulated results for every pipeline task type.
type Executor struct {
	store state.Store

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a seeded simulated executor. The store is read to compute the
// quality review's running mean over prior results.
func New(store state.Store, seed int64) *Executor {
	return &Executor{
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

type generator func(e *Executor, ctx context.Context, t task.Task) (task.Result, error)

// generators dispatches on the task's type tag.
var generators = map[task.Type]generator{
	task.TypeExtraction:    (*Executor).extract,
	task.TypeContract:      (*Executor).validateContract,
	task.TypeMSA:           (*Executor).validateMSA,
	task.TypeMasterData:    (*Executor).validateMasterData,
	task.TypeQualityReview: (*Executor).review,
}

// Execute implements worker.Executor. An unlucky roll against the agent's
// success rate produces a failed result (Error set), not an error return:
// the attempt itself ran fine.
func (e *Executor) Execute(ctx context.Context, ag agent.Agent, t task.Task) (task.Result, error) {
	gen, ok := generators[t.Type]
	if !ok {
		return task.Result{}, fmt.Errorf("no generator for task type %q", t.Type)
	}
	if e.roll() > ag.SuccessRate {
		return task.Result{Error: fmt.Sprintf("simulated %s failure", t.Type)}, nil
	}
	return gen(e, ctx, t)
}

func (e *Executor) extract(_ context.Context, _ task.Task) (task.Result, error) {
	res := task.Result{
		Confidence: e.between(0.92, 0.99),
		Fields: map[string]string{
			"vendor":    vendors[e.intn(len(vendors))],
			"amount":    fmt.Sprintf("%.2f", e.between(500, 50000)),
			"currency":  "USD",
			"po_number": fmt.Sprintf("PO-%05d", e.intn(100000)),
		},
	}
	if e.roll() < 0.10 {
		res.Anomalies = []task.Anomaly{"vendor_mismatch"}
		res.Confidence = e.between(0.80, 0.90)
	}
	return res, nil
}

func (e *Executor) validateContract(_ context.Context, _ task.Task) (task.Result, error) {
	res := task.Result{
		Confidence: e.between(0.85, 0.97),
		Notes:      "contract terms cross-checked",
	}
	if e.roll() < 0.20 {
		res.Anomalies = []task.Anomaly{"missing_po_number"}
	}
	return res, nil
}

func (e *Executor) validateMSA(_ context.Context, _ task.Task) (task.Result, error) {
	res := task.Result{
		Confidence: e.between(0.85, 0.97),
		Notes:      "msa coverage verified",
	}
	if e.roll() < 0.20 {
		res.Anomalies = []task.Anomaly{"msa_coverage_issue"}
	}
	return res, nil
}

func (e *Executor) validateMasterData(_ context.Context, _ task.Task) (task.Result, error) {
	return task.Result{
		Confidence: e.between(0.90, 0.995),
		Notes:      "vendor master data matched",
	}, nil
}

// review reports the running mean of every confidence recorded on the
// workflow so far. An empty result map reviews to 0.
func (e *Executor) review(ctx context.Context, t task.Task) (task.Result, error) {
	w, err := e.store.GetWorkflow(ctx, t.WorkflowID)
	if err != nil {
		return task.Result{}, fmt.Errorf("load workflow for review: %w", err)
	}
	var mean float64
	if len(w.Confidences) > 0 {
		var sum float64
		for _, c := range w.Confidences {
			sum += c
		}
		mean = sum / float64(len(w.Confidences))
	}
	return task.Result{
		Confidence: mean,
		Notes:      fmt.Sprintf("aggregate of %d prior results", len(w.Confidences)),
	}, nil
}

// --- seeded randomness ---

func (e *Executor) roll() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *Executor) between(lo, hi float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo + e.rng.Float64()*(hi-lo)
}

func (e *Executor) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}
