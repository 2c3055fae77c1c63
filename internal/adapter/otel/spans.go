package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "docuflow"

// StartWorkflowSpan starts a span for a workflow's creation.
func StartWorkflowSpan(ctx context.Context, workflowID, documentType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "workflow",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("document.type", documentType),
		),
	)
}

// StartTaskSpan starts a span for a task resolution.
func StartTaskSpan(ctx context.Context, taskID, taskType, agentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.type", taskType),
			attribute.String("agent.id", agentID),
		),
	)
}

// StartDecisionSpan starts a span for a workflow's decision evaluation.
func StartDecisionSpan(ctx context.Context, workflowID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decision",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
		),
	)
}
