// Package config provides hierarchical configuration loading for docuflow.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the docuflow service.
type Config struct {
	Server       Server       `yaml:"server"`
	Postgres     Postgres     `yaml:"postgres"`
	NATS         NATS         `yaml:"nats"`
	Logging      Logging      `yaml:"logging"`
	Cache        Cache        `yaml:"cache"`
	Telemetry    Telemetry    `yaml:"telemetry"`
	MCP          MCP          `yaml:"mcp"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Sim          Sim          `yaml:"sim"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Postgres holds the connection configuration for the optional audit trail
// archive. An empty DSN disables the archive; the trail then lives in
// memory only.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds NATS JetStream configuration for the pipeline event bus.
// An empty URL disables publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration. An empty Format means
// auto: the binary picks text on an interactive terminal, JSON otherwise.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Format  string `yaml:"format"` // "json", "text" or "" for auto
}

// Cache holds query-layer snapshot cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// MCP holds Model Context Protocol server configuration. An empty Addr
// disables the MCP endpoint. An empty APIKey disables authentication.
type MCP struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// AgentSpec describes one agent of the default roster registered at startup.
type AgentSpec struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Capabilities []string      `yaml:"capabilities"`
	Latency      time.Duration `yaml:"latency"`
	SuccessRate  float64       `yaml:"success_rate"`
}

// Orchestrator holds pipeline orchestration configuration. Cooldown is
// advisory pacing between an agent finishing and picking up new work; the
// core never sleeps, only drivers honor it.
type Orchestrator struct {
	Cooldown time.Duration `yaml:"cooldown"`
	Roster   []AgentSpec   `yaml:"roster"`
}

// Sim holds simulation driver configuration. Seed makes runs reproducible.
type Sim struct {
	Documents int           `yaml:"documents"`
	Seed      int64         `yaml:"seed"`
	Delay     time.Duration `yaml:"delay"`
}

// Defaults returns a Config with sensible default values for local
// development. The default roster mirrors the production fleet: one agent
// per task type, success rates from historical runs.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Postgres: Postgres{
			DSN:             "",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		NATS: NATS{
			URL: "",
		},
		Logging: Logging{
			Level:   "info",
			Service: "docuflow-core",
			Format:  "",
		},
		Cache: Cache{
			MaxSizeMB: 64,
			TTL:       30 * time.Second,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
		MCP: MCP{
			Addr:   "",
			APIKey: "",
		},
		Orchestrator: Orchestrator{
			Cooldown: time.Second,
			Roster: []AgentSpec{
				{ID: "extraction-01", Name: "Extraction Agent", Capabilities: []string{"extraction"}, Latency: 2 * time.Second, SuccessRate: 0.98},
				{ID: "contract-01", Name: "Contract Validator", Capabilities: []string{"contract"}, Latency: 1500 * time.Millisecond, SuccessRate: 0.95},
				{ID: "msa-01", Name: "MSA Validator", Capabilities: []string{"msa"}, Latency: 1800 * time.Millisecond, SuccessRate: 0.96},
				{ID: "master-data-01", Name: "Master Data Validator", Capabilities: []string{"master_data"}, Latency: 1200 * time.Millisecond, SuccessRate: 0.99},
				{ID: "quality-01", Name: "Quality Reviewer", Capabilities: []string{"quality_review"}, Latency: 2500 * time.Millisecond, SuccessRate: 0.93},
			},
		},
		Sim: Sim{
			Documents: 3,
			Seed:      1,
			Delay:     0,
		},
	}
}
