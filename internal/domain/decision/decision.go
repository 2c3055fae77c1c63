// Package decision defines the final decision model and the pure rules that
// produce it: risk from anomaly count, and the action ladder over aggregate
// confidence.
package decision

import "time"

// Action is the final disposition of a workflow.
type Action string

const (
	ActionApprove     Action = "APPROVE"
	ActionHumanReview Action = "HUMAN_REVIEW"
	ActionReject      Action = "REJECT"
)

// Risk grades a workflow by its anomaly count alone.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// RiskFromAnomalyCount maps an anomaly count to a risk grade:
// 0 low, 1-2 medium, 3-4 high, 5+ critical.
func RiskFromAnomalyCount(n int) Risk {
	switch {
	case n == 0:
		return RiskLow
	case n <= 2:
		return RiskMedium
	case n <= 4:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Decision is the immutable outcome recorded on a completed workflow.
type Decision struct {
	Action       Action    `json:"action"`
	Reasoning    string    `json:"reasoning"`
	Confidence   float64   `json:"confidence"`
	AnomalyCount int       `json:"anomaly_count"`
	Risk         Risk      `json:"risk"`
	DecidedAt    time.Time `json:"decided_at"`
}

// Evaluate applies the action ladder to an aggregate confidence and anomaly
// count. Rules are checked top-down and the first match wins:
//
//	confidence >= 0.90 and no anomalies        -> APPROVE
//	confidence >= 0.80 and at most 1 anomaly   -> APPROVE
//	confidence >= 0.70 and at most 2 anomalies -> HUMAN_REVIEW
//	otherwise                                  -> REJECT
func Evaluate(confidence float64, anomalyCount int, now time.Time) Decision {
	var (
		action    Action
		reasoning string
	)
	switch {
	case confidence >= 0.90 && anomalyCount == 0:
		action = ActionApprove
		reasoning = "High confidence, no anomalies"
	case confidence >= 0.80 && anomalyCount <= 1:
		action = ActionApprove
		reasoning = "Good confidence, minor anomalies"
	case confidence >= 0.70 && anomalyCount <= 2:
		action = ActionHumanReview
		reasoning = "Moderate confidence, requires review"
	default:
		action = ActionReject
		reasoning = "Low confidence or too many anomalies"
	}
	return Decision{
		Action:       action,
		Reasoning:    reasoning,
		Confidence:   confidence,
		AnomalyCount: anomalyCount,
		Risk:         RiskFromAnomalyCount(anomalyCount),
		DecidedAt:    now,
	}
}
