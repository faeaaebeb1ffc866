// Package database manages the sqlite connection and schema migrations.
package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vistrail/internal/config"
	"vistrail/internal/funnels"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

// Manager owns the gorm connection used by the whole application.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
}

// NewManager creates a database manager for the configured sqlite file.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Init opens the connection and applies the sqlite pragmas we rely on.
func (m *Manager) Init() error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", m.cfg.DatabaseName)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", m.cfg.DatabaseName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(m.cfg.GetMaxIdleConns())
	sqlDB.SetConnMaxLifetime(time.Hour)

	m.db = db
	m.logger.Info("Database connection established", slog.String("path", m.cfg.DatabaseName))
	return nil
}

// GetConnection returns the shared gorm connection.
func (m *Manager) GetConnection() *gorm.DB {
	return m.db
}

// MigrateDatabase runs all model migrations in a single transaction.
func (m *Manager) MigrateDatabase() error {
	if m.db == nil {
		return gorm.ErrInvalidDB
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&sessions.Session{},
			&funnels.Step{},
			&funnels.Completion{},
			&rules.Rule{},
			&rules.Trigger{},
		)
	})
	if err != nil {
		m.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	m.logger.Info("Database migration completed successfully")
	return nil
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
