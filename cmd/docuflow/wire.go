package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuflow/docuflow/internal/adapter/memstate"
	"github.com/docuflow/docuflow/internal/adapter/memtrail"
	dfnats "github.com/docuflow/docuflow/internal/adapter/nats"
	dfotel "github.com/docuflow/docuflow/internal/adapter/otel"
	"github.com/docuflow/docuflow/internal/adapter/postgres"
	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/export"
	"github.com/docuflow/docuflow/internal/port/audittrail"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
	"github.com/docuflow/docuflow/internal/port/state"
	"github.com/docuflow/docuflow/internal/service"
)

// core bundles the wired services and the infrastructure handles shared by
// the serve and sim entrypoints.
type core struct {
	store    state.Store
	trail    audittrail.Trail
	hub      *ws.Hub
	bus      messagequeue.Queue // nil when NATS is disabled
	pool     *pgxpool.Pool      // nil when the audit archive is disabled
	registry *service.RegistryService
	tasks    *service.TaskService
	orch     *service.OrchestratorService
}

// wireCore builds the in-memory state, the optional Postgres audit archive,
// the optional NATS publisher and the three services, then registers the
// configured agent roster. The returned cleanup releases external
// connections.
func wireCore(ctx context.Context, cfg *config.Config, metrics *dfotel.Metrics) (*core, func(), error) {
	c := &core{
		store: memstate.New(),
		trail: memtrail.New(),
		hub:   ws.NewHub(),
	}

	cleanup := func() {
		if c.bus != nil {
			if err := c.bus.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}
		if c.pool != nil {
			c.pool.Close()
		}
	}

	if cfg.Postgres.DSN != "" {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		c.pool = pool
		c.trail = audittrail.Fork(c.trail, postgres.NewTrail(pool))
		slog.Info("audit archive enabled")
	}

	if cfg.NATS.URL != "" {
		queue, err := dfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		c.bus = queue
	}

	c.registry = service.NewRegistryService(c.store, c.hub, c.bus)
	c.tasks = service.NewTaskService(c.store, c.registry, c.hub, c.bus)
	c.orch = service.NewOrchestratorService(c.store, c.registry, c.tasks, c.trail, c.hub, c.bus, metrics)

	if err := registerRoster(ctx, c.registry, cfg.Orchestrator.Roster); err != nil {
		cleanup()
		return nil, nil, err
	}

	return c, cleanup, nil
}

// registerRoster registers the configured default agent fleet.
func registerRoster(ctx context.Context, registry *service.RegistryService, roster []config.AgentSpec) error {
	for _, spec := range roster {
		caps := make([]task.Type, 0, len(spec.Capabilities))
		for _, capability := range spec.Capabilities {
			caps = append(caps, task.Type(capability))
		}
		if _, err := registry.Register(ctx, agent.RegisterRequest{
			ID:           spec.ID,
			Name:         spec.Name,
			Capabilities: caps,
			Latency:      spec.Latency,
			SuccessRate:  spec.SuccessRate,
		}); err != nil {
			return fmt.Errorf("register agent %s: %w", spec.ID, err)
		}
	}
	return nil
}

// writeExport renders the orchestrator state to path as indented JSON.
func writeExport(ctx context.Context, c *core, path string) error {
	snap, err := export.Collect(ctx, c.store, c.trail)
	if err != nil {
		return fmt.Errorf("collect export: %w", err)
	}
	if err := export.WriteFile(path, snap); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	slog.Info("state exported", "path", path, "workflows", len(snap.Workflows), "transitions", len(snap.Transitions))
	return nil
}
