package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"docuflow://workflows",
			"Workflow List",
			mcplib.WithResourceDescription("All document workflows with stage, status and version"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleWorkflowsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"docuflow://status",
			"Pipeline Status",
			mcplib.WithResourceDescription("Pipeline-wide workflow, task and agent counts"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)
}

func (s *Server) handleWorkflowsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Workflows == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"workflow reader not configured"}`,
			},
		}, nil
	}
	workflows, err := s.deps.Workflows.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(workflows)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleStatusResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Workflows == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"workflow reader not configured"}`,
			},
		}, nil
	}
	status, err := s.deps.Workflows.SystemStatus(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
