// Package main - точка входа для отчёта по студентам и группам.
//
// Report загружает список студентов (PostgreSQL или xlsx), отвечает на
// запросы движка и печатает GroupReport в формате JSON в stdout.
// Логи пишутся в stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/studentdb/config"
	"github.com/alem-hub/studentdb/internal/application/query"
	"github.com/alem-hub/studentdb/internal/domain/student"
	"github.com/alem-hub/studentdb/internal/infrastructure/external/spreadsheet"
	"github.com/alem-hub/studentdb/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/studentdb/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/studentdb/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if cfg.App.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.App.Timeout)
		defer cancel()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg, stderr)
	defer func() { _ = log.Sync() }()

	log.Info("starting studentdb report",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("roster_source", string(cfg.Roster.Source)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИСТОЧНИК СТУДЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	roster, closeRoster, err := setupRoster(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRoster()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var cache student.RosterCache
	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer func() { _ = redisCache.Close() }()
			cache = redis.NewRosterCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ДВИЖОК И СЕРВИС ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	engine := query.NewEngine(query.EngineConfig{
		ParallelThreshold: cfg.Query.ParallelThreshold,
		Workers:           cfg.Query.Workers,
	})

	svc := query.NewRosterService(roster, cache, engine, log, query.RosterServiceConfig{
		CacheTTL:     cfg.Redis.RosterTTL,
		LoadAttempts: cfg.Roster.LoadAttempts,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОТЧЁТ
	// ─────────────────────────────────────────────────────────────────────────
	report, err := svc.Report(ctx)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	log.Info("report completed",
		logger.StudentCount(report.TotalStudents),
		logger.GroupCount(len(report.Groups)),
		logger.String("largest_group", report.LargestGroup),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
// В production логи всегда в JSON.
func setupLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	format := logger.Format(cfg.Observability.LogFormat)
	if format != logger.FormatConsole || cfg.IsProduction() {
		format = logger.FormatJSON
	}

	return logger.New(logger.Options{
		Output:    out,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    format,
		AddCaller: cfg.IsDevelopment(),
	}).With(logger.String("app", cfg.App.Name))
}

// setupRoster открывает источник студентов. Возвращаемая функция
// освобождает ресурсы источника.
func setupRoster(ctx context.Context, cfg *config.Config, log *logger.Logger) (student.Roster, func(), error) {
	if cfg.Roster.Source == config.RosterSourceXLSX {
		log.Info("reading roster from spreadsheet",
			logger.String("path", cfg.Roster.XLSXPath),
			logger.String("sheet", cfg.Roster.XLSXSheet),
		)
		return spreadsheet.NewRoster(cfg.Roster.XLSXPath, cfg.Roster.XLSXSheet), func() {}, nil
	}

	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}
	logPoolHealth(ctx, dbConn, log)

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logMigrationStatus(ctx, migrator, log)
	}

	repo := postgres.NewStudentRepository(dbConn, cfg.Database.QueryTimeout)

	if cfg.Roster.SeedFromXLSX {
		if err := seedFromSpreadsheet(ctx, cfg, repo, log); err != nil {
			closeDB()
			return nil, nil, err
		}
	}

	return repo, closeDB, nil
}

// logPoolHealth пишет в лог состояние пула соединений.
func logPoolHealth(ctx context.Context, dbConn *postgres.Connection, log *logger.Logger) {
	health, err := dbConn.Health(ctx)
	if err != nil {
		log.Warn("database health check failed", logger.Err(err))
		return
	}
	if !health.Healthy {
		log.Warn("database is unhealthy", logger.String("error", health.Error))
		return
	}

	log.Info("database connected",
		logger.Latency(health.PingLatency),
		logger.Int("total_conns", int(health.TotalConns)),
		logger.Int("idle_conns", int(health.IdleConns)),
		logger.Int("max_conns", int(health.MaxConns)),
	)
}

// logMigrationStatus пишет в лог применённые миграции.
func logMigrationStatus(ctx context.Context, migrator *postgres.Migrator, log *logger.Logger) {
	migrations, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to read migration status", logger.Err(err))
		return
	}

	applied := 0
	for _, m := range migrations {
		if !m.IsApplied {
			log.Warn("migration is not applied",
				logger.Int("version", m.Version),
				logger.String("name", m.Name),
			)
			continue
		}
		applied++
		log.Debug("migration applied",
			logger.Int("version", m.Version),
			logger.String("name", m.Name),
			logger.Time("applied_at", m.AppliedAt),
		)
	}

	log.Info("database schema is up to date",
		logger.Int("applied", applied),
		logger.Int("total", len(migrations)),
	)
}

// seedFromSpreadsheet копирует студентов из xlsx в таблицу students.
func seedFromSpreadsheet(ctx context.Context, cfg *config.Config, repo *postgres.StudentRepository, log *logger.Logger) error {
	students, err := spreadsheet.NewRoster(cfg.Roster.XLSXPath, cfg.Roster.XLSXSheet).ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read seed spreadsheet: %w", err)
	}

	if err := repo.Upsert(ctx, students); err != nil {
		return fmt.Errorf("failed to seed students: %w", err)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count students: %w", err)
	}

	log.Info("students seeded from spreadsheet",
		logger.Int("seeded", len(students)),
		logger.StudentCount(total),
	)
	return nil
}

func redisConfig(c config.RedisConfig) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Password = c.Password
	cfg.DB = c.DB
	if c.PoolSize > 0 {
		cfg.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		cfg.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		cfg.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	return cfg
}
