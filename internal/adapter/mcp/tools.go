package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getWorkflowTool(),
		s.getWorkflowHistoryTool(),
		s.listAgentsTool(),
		s.getAgentStatusTool(),
		s.systemStatusTool(),
	)
}

func (s *Server) getWorkflowTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_workflow",
		mcplib.WithDescription("Get a document workflow by ID: stage, status, version, agent results and decision"),
		mcplib.WithString("workflow_id",
			mcplib.Required(),
			mcplib.Description("The workflow ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetWorkflow,
	}
}

func (s *Server) getWorkflowHistoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_workflow_history",
		mcplib.WithDescription("Get the full audit trail of a workflow: one record per version with a state snapshot"),
		mcplib.WithString("workflow_id",
			mcplib.Required(),
			mcplib.Description("The workflow ID whose history to read"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetWorkflowHistory,
	}
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List all registered processing agents with their capabilities and counters"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListAgents,
	}
}

func (s *Server) getAgentStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent_status",
		mcplib.WithDescription("Get one agent's lifecycle state, current task and completion counters"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to check"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetAgentStatus,
	}
}

func (s *Server) systemStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("system_status",
		mcplib.WithDescription("Get pipeline-wide counts: workflows by status, tasks by status, agents by state, decisions by action"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSystemStatus,
	}
}

func (s *Server) handleGetWorkflow(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Workflows == nil {
		return mcplib.NewToolResultError("workflow reader not configured"), nil
	}
	args := req.GetArguments()
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcplib.NewToolResultError("workflow_id is required"), nil
	}
	w, err := s.deps.Workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get workflow %s", workflowID), err,
		), nil
	}
	data, err := json.Marshal(w)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal workflow", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetWorkflowHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Workflows == nil {
		return mcplib.NewToolResultError("workflow reader not configured"), nil
	}
	args := req.GetArguments()
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcplib.NewToolResultError("workflow_id is required"), nil
	}
	hist, err := s.deps.Workflows.History(ctx, workflowID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get history for workflow %s", workflowID), err,
		), nil
	}
	data, err := json.Marshal(hist)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal history", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListAgents(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	agents, err := s.deps.Agents.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list agents", err), nil
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agents", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetAgentStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent reader not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}
	a, err := s.deps.Agents.Get(ctx, agentID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get agent %s", agentID), err,
		), nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agent", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleSystemStatus(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Workflows == nil {
		return mcplib.NewToolResultError("workflow reader not configured"), nil
	}
	status, err := s.deps.Workflows.SystemStatus(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get system status", err), nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal system status", err), nil
	}
	return toolResultJSON(string(data)), nil
}
