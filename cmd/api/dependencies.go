package api

import (
	"fmt"
	"log/slog"
	"time"

	analyticshandler "github.com/FACorreiaa/statement-pilot/internal/domain/analytics/handler"
	analyticsrepo "github.com/FACorreiaa/statement-pilot/internal/domain/analytics/repository"
	analyticsservice "github.com/FACorreiaa/statement-pilot/internal/domain/analytics/service"
	ingesthandler "github.com/FACorreiaa/statement-pilot/internal/domain/ingest/handler"
	ingestrepo "github.com/FACorreiaa/statement-pilot/internal/domain/ingest/repository"
	ingestservice "github.com/FACorreiaa/statement-pilot/internal/domain/ingest/service"

	"github.com/FACorreiaa/statement-pilot/internal/cache"
	"github.com/FACorreiaa/statement-pilot/internal/domain/analytics/engine"
	"github.com/FACorreiaa/statement-pilot/pkg/config"
	"github.com/FACorreiaa/statement-pilot/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	IngestRepo    ingestrepo.IngestRepository
	AnalyticsRepo analyticsrepo.AnalyticsRepository

	// Services
	IngestService    *ingestservice.IngestService
	DashboardService *analyticsservice.DashboardService

	// Handlers
	IngestHandler    *ingesthandler.IngestHandler
	AnalyticsHandler *analyticshandler.AnalyticsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.IngestRepo = ingestrepo.NewPostgresIngestRepository(d.DB.Pool, d.Config.Pipeline.BatchSize)
	d.AnalyticsRepo = analyticsrepo.NewPostgresAnalyticsRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	if d.Config.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if d.Config.Auth.ImportSecret == "" {
		return fmt.Errorf("import secret is required")
	}

	d.IngestService = ingestservice.NewIngestService(
		d.IngestRepo,
		d.Logger,
		d.Config.Pipeline.SampleTransactions,
	)

	var summaryCache cache.Cache[*analyticsservice.Summary] = cache.Noop[*analyticsservice.Summary]{}
	if d.Config.Cache.Enabled {
		summaryCache = cache.NewLRUCache[*analyticsservice.Summary](d.Config.Cache.MaxSize, d.Config.Cache.TTL)
	}

	thresholds := engine.Thresholds{
		LookbackDays:    d.Config.Recurring.LookbackDays,
		MinOccurrences:  d.Config.Recurring.MinOccurrences,
		MinIntervalDays: d.Config.Recurring.MinIntervalDays,
		MaxIntervalDays: d.Config.Recurring.MaxIntervalDays,
		MaxIntervalSD:   d.Config.Recurring.MaxIntervalSD,
		WeeklyMaxDays:   d.Config.Recurring.WeeklyMaxDays,
	}

	d.DashboardService = analyticsservice.NewDashboardService(
		d.AnalyticsRepo,
		summaryCache,
		thresholds,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.IngestHandler = ingesthandler.NewIngestHandler(d.IngestService, d.DashboardService, d.Logger)
	d.AnalyticsHandler = analyticshandler.NewAnalyticsHandler(d.DashboardService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
