package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"taskfire/internal/config"
	"taskfire/internal/db"
	"taskfire/internal/scheduler"
	storepg "taskfire/internal/store/postgres"
	"taskfire/internal/task"
	"taskfire/internal/tasks"
)

func main() {
	configPath := flag.String("config", "taskfire.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Logging)

	sqlDB, err := db.Open(cfg.Postgres.URL, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime.Std())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer sqlDB.Close()

	if err := db.Init(sqlDB, cfg.Scheduler.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	jobStore := storepg.NewPostgresJobStore(sqlDB)
	execStore := storepg.NewPostgresExecutionStore(sqlDB)

	registry := task.NewRegistry()
	if err := tasks.RegisterBuiltins(registry); err != nil {
		log.Fatal().Err(err).Msg("failed to register built-in tasks")
	}
	log.Info().Strs("task_types", registry.Types()).Msg("task registry ready")

	env := &task.Env{
		Log:        log,
		DB:         sqlDB,
		Executions: execStore,
	}

	sched := scheduler.New(jobStore, execStore, registry, env, log, scheduler.Config{
		PollInterval:  cfg.Scheduler.PollInterval.Std(),
		BatchSize:     cfg.Scheduler.BatchSize,
		MaxWorkers:    cfg.Scheduler.MaxWorkers,
		ShutdownGrace: cfg.Scheduler.ShutdownGrace.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
