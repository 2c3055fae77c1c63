package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	dfotel "github.com/docuflow/docuflow/internal/adapter/otel"
	"github.com/docuflow/docuflow/internal/adapter/simworker"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/sim"
)

// runSim drives a batch of simulated documents through the pipeline and
// prints their decisions, without serving HTTP.
func runSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "path to YAML configuration")
	documents := fs.Int("documents", -1, "number of documents to simulate (default from config)")
	exportPath := fs.String("export", "", "write a state export to this file when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	resolveLogFormat(&cfg.Logging)
	slog.SetDefault(logger.New(cfg.Logging))

	if *documents >= 0 {
		cfg.Sim.Documents = *documents
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := dfotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	var metrics *dfotel.Metrics
	if cfg.Telemetry.Enabled {
		if metrics, err = dfotel.NewMetrics(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	c, cleanup, err := wireCore(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := sim.NewRunner(cfg.Sim, c.orch, c.tasks, c.registry, simworker.New(c.store, cfg.Sim.Seed))
	runner.Cooldown = cfg.Orchestrator.Cooldown

	slog.Info("simulation starting", "documents", cfg.Sim.Documents, "seed", cfg.Sim.Seed)
	start := time.Now()
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	slog.Info("simulation complete",
		"documents", cfg.Sim.Documents,
		"took", time.Since(start).Round(time.Millisecond),
	)

	if err := printDecisions(ctx, c); err != nil {
		return err
	}

	if *exportPath != "" {
		return writeExport(ctx, c, *exportPath)
	}
	return nil
}

// printDecisions renders one line per workflow with its final decision.
func printDecisions(ctx context.Context, c *core) error {
	workflows, err := c.orch.ListWorkflows(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WORKFLOW\tTYPE\tSTAGE\tACTION\tCONFIDENCE\tANOMALIES\tRISK\tVERSION")
	for i := range workflows {
		wf := &workflows[i]
		action, confidence := "-", "-"
		if wf.Decision != nil {
			action = string(wf.Decision.Action)
			confidence = fmt.Sprintf("%.3f", wf.Decision.Confidence)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
			wf.ID, wf.DocumentType, wf.Stage, action, confidence, len(wf.Anomalies), wf.Risk, wf.Version)
	}
	return w.Flush()
}
