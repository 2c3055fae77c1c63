package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "docuflow"

// Metrics holds all docuflow metric instruments.
type Metrics struct {
	WorkflowsCreated   metric.Int64Counter
	WorkflowsCompleted metric.Int64Counter
	StageAdvances      metric.Int64Counter
	TasksCompleted     metric.Int64Counter
	TasksFailed        metric.Int64Counter
	TaskDuration       metric.Float64Histogram
	DecisionConfidence metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.WorkflowsCreated, err = meter.Int64Counter("docuflow.workflows.created",
		metric.WithDescription("Number of workflows created"))
	if err != nil {
		return nil, err
	}

	m.WorkflowsCompleted, err = meter.Int64Counter("docuflow.workflows.completed",
		metric.WithDescription("Number of workflows completed with a decision"))
	if err != nil {
		return nil, err
	}

	m.StageAdvances, err = meter.Int64Counter("docuflow.stage.advances",
		metric.WithDescription("Number of stage advances"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("docuflow.tasks.completed",
		metric.WithDescription("Number of tasks completed successfully"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("docuflow.tasks.failed",
		metric.WithDescription("Number of tasks that failed"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("docuflow.task.duration_seconds",
		metric.WithDescription("Task processing duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DecisionConfidence, err = meter.Float64Histogram("docuflow.decision.confidence",
		metric.WithDescription("Aggregate confidence at decision time"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
