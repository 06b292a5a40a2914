package config

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config holds all settings for the scheduler process.
//
// Durations are YAML strings in Go syntax (e.g. "10s", "1m").
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PostgresConfig struct {
	// URL is the connection string. The TASKFIRE_POSTGRES_URL environment
	// variable overrides it so credentials can stay out of the file.
	URL             string   `yaml:"url"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

type SchedulerConfig struct {
	PollInterval  Duration `yaml:"poll_interval"`
	BatchSize     int      `yaml:"batch_size"`
	MaxWorkers    int64    `yaml:"max_workers"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
	MigrationsDir string   `yaml:"migrations_dir"`
}

type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Pretty switches to the human console writer instead of JSON.
	Pretty bool `yaml:"pretty"`
}

// Default returns the configuration used when fields are omitted.
func Default() Config {
	return Config{
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Scheduler: SchedulerConfig{
			PollInterval:  Duration(10 * time.Second),
			BatchSize:     100,
			MaxWorkers:    10,
			ShutdownGrace: Duration(30 * time.Second),
			MigrationsDir: "./migrations",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path skips the file and uses defaults plus environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if url := os.Getenv("TASKFIRE_POSTGRES_URL"); url != "" {
		cfg.Postgres.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}
	if c.Scheduler.MaxWorkers <= 0 {
		return fmt.Errorf("scheduler.max_workers must be positive")
	}
	if c.Scheduler.ShutdownGrace <= 0 {
		return fmt.Errorf("scheduler.shutdown_grace must be positive")
	}
	return nil
}
