// Package mcp exposes the orchestrator's read surface over the Model
// Context Protocol so AI assistants can inspect workflows, agents and
// pipeline status as tools and resources.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/audit"
	"github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/service"
)

// WorkflowReader is the slice of the orchestrator the MCP tools read.
type WorkflowReader interface {
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context) ([]workflow.Workflow, error)
	History(ctx context.Context, workflowID string) ([]audit.Transition, error)
	SystemStatus(ctx context.Context) (*service.SystemStatus, error)
}

// AgentReader is the slice of the agent registry the MCP tools read.
type AgentReader interface {
	Get(ctx context.Context, id string) (*agent.Agent, error)
	List(ctx context.Context) ([]agent.Agent, error)
}

// ServerConfig holds MCP server settings. An empty APIKey serves the
// endpoint without authentication.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps holds the read-side dependencies for tools and resources.
// Nil fields degrade to tool errors, not panics.
type ServerDeps struct {
	Workflows WorkflowReader
	Agents    AgentReader
}

// Server wraps an MCP server exposing docuflow tools over SSE.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mainly for custom transports.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves the MCP server over SSE on the configured address, behind
// API-key auth when one is configured. It returns immediately; serve
// errors are logged.
func (s *Server) Start() error {
	sse := mcpserver.NewSSEServer(s.mcpServer)
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           AuthMiddleware(s.cfg.APIKey, sse),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	slog.Info("mcp server listening", "addr", s.cfg.Addr, "auth", s.cfg.APIKey != "")
	return nil
}

// Stop gracefully shuts the SSE transport down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// toolResultJSON wraps a JSON document as a tool result. MCP carries JSON
// payloads in a text content part.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
