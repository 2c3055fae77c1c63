package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "docuflow.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DOCUFLOW_PORT")
	setString(&cfg.Server.CORSOrigin, "DOCUFLOW_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DOCUFLOW_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DOCUFLOW_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DOCUFLOW_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DOCUFLOW_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DOCUFLOW_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "DOCUFLOW_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DOCUFLOW_LOG_SERVICE")
	setString(&cfg.Logging.Format, "DOCUFLOW_LOG_FORMAT")
	setInt64(&cfg.Cache.MaxSizeMB, "DOCUFLOW_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "DOCUFLOW_CACHE_TTL")
	setBool(&cfg.Telemetry.Enabled, "DOCUFLOW_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.MCP.Addr, "DOCUFLOW_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "DOCUFLOW_MCP_API_KEY")
	setDuration(&cfg.Orchestrator.Cooldown, "DOCUFLOW_ORCH_COOLDOWN")
	setInt(&cfg.Sim.Documents, "DOCUFLOW_SIM_DOCUMENTS")
	setInt64(&cfg.Sim.Seed, "DOCUFLOW_SIM_SEED")
	setDuration(&cfg.Sim.Delay, "DOCUFLOW_SIM_DELAY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Cache.MaxSizeMB < 1 {
		return errors.New("cache.max_size_mb must be >= 1")
	}
	for i, spec := range cfg.Orchestrator.Roster {
		if spec.ID == "" {
			return fmt.Errorf("orchestrator.roster[%d]: id is required", i)
		}
		if len(spec.Capabilities) == 0 {
			return fmt.Errorf("orchestrator.roster[%d]: at least one capability is required", i)
		}
		if spec.SuccessRate <= 0 || spec.SuccessRate > 1 {
			return fmt.Errorf("orchestrator.roster[%d]: success_rate must be in (0,1]", i)
		}
	}
	if cfg.Sim.Documents < 0 {
		return errors.New("sim.documents must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
