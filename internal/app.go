// Package internal wires the application together: configuration, logging,
// storage, the aggregation engine, and the HTTP server.
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"vistrail/internal/analytics"
	"vistrail/internal/config"
	"vistrail/internal/database"
	"vistrail/internal/funnels"
	"vistrail/internal/jobs"
	"vistrail/internal/logging"
	"vistrail/internal/pkg/geoip"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

// Application owns the process-level components and their lifecycle.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *database.Manager

	Sessions *sessions.Store
	Funnels  *funnels.Store
	Rules    *rules.Store
	Engine   *analytics.Engine
	Jobs     *jobs.Scheduler

	server *fiber.App
}

// NewApp builds the application from the process configuration.
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig builds the application from an explicit configuration.
// The analytics cache is subscribed to session writes here so every ingest
// invalidates it.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)
	geoip.InitLogger(logger)

	db := database.NewManager(cfg, logger)
	if err := db.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	conn := db.GetConnection()
	sessionStore := sessions.NewStore(conn, logger)
	funnelStore := funnels.NewStore(conn, logger)
	ruleStore := rules.NewStore(conn, logger)

	engine := analytics.NewEngine(sessionStore, logger)
	sessionStore.OnChange(engine.Invalidate)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Sessions: sessionStore,
		Funnels:  funnelStore,
		Rules:    ruleStore,
		Engine:   engine,
		Jobs:     jobs.NewScheduler(db, logger, cfg),
	}
	app.server = newServer(app)
	return app, nil
}

// MigrateDatabase runs the schema migrations.
func (a *Application) MigrateDatabase() error {
	return a.DB.MigrateDatabase()
}

// Start serves HTTP on the configured port and blocks until shutdown.
// Background jobs start alongside the server.
func (a *Application) Start() error {
	a.Jobs.Start()
	addr := ":" + a.Config.AppPort
	a.Logger.Info("Starting server",
		slog.String("addr", addr),
		slog.String("environment", a.Config.Environment))
	return a.server.Listen(addr)
}

// StartAsync serves HTTP without blocking; startup errors are logged.
func (a *Application) StartAsync() {
	go func() {
		if err := a.Start(); err != nil {
			a.Logger.Error("Server stopped", slog.Any("error", err))
		}
	}()
}

// Shutdown drains the server, stops background jobs, and closes the
// database.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Jobs.Stop()
	if err := a.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	a.Logger.Info("Shutdown complete")
	return nil
}

// Server exposes the fiber app, used by tests to issue requests in-process.
func (a *Application) Server() *fiber.App {
	return a.server
}
