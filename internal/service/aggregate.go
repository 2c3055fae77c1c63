package service

import "github.com/docuflow/docuflow/internal/domain/workflow"

// Aggregate reduces a workflow's accumulated results to the two numbers the
// decision rules read: the arithmetic mean of all per-agent confidences and
// the total anomaly count. A workflow with no results aggregates to
// confidence 0, which the rules reject.
func Aggregate(w *workflow.Workflow) (confidence float64, anomalyCount int) {
	if len(w.Confidences) > 0 {
		var sum float64
		for _, c := range w.Confidences {
			sum += c
		}
		confidence = sum / float64(len(w.Confidences))
	}
	return confidence, len(w.Anomalies)
}
