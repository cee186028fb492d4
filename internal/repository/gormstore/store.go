// Package gormstore implements the repository interfaces on top of gorm.
//
// Production runs on PostgreSQL (gorm.io/driver/postgres). Development and
// tests run on SQLite through github.com/glebarez/sqlite, a pure Go
// dialector on the modernc engine, so no C toolchain is needed. Use
// ":memory:" as the DSN for a throwaway database.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/model"
)

// Store owns the gorm connection pool and hands out per-entity repositories.
type Store struct {
	db *gorm.DB
}

// Open connects using cfg.Driver ("postgres" or "sqlite") and verifies the
// connection with a ping. Query logging goes to log at warn level, or info
// when log has debug enabled.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("gormstore: unknown driver %q", cfg.Driver)
	}

	level := logger.Warn
	if log.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.NewSlogLogger(log, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: opening %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: getting sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// Every new connection to ":memory:" is a new empty database.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &Store{db: db}
	if err := s.Ping(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or alters tables to match the models.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Agency{},
		&model.Complaint{},
		&model.Notification{},
		&model.NotificationPreferences{},
	)
	if err != nil {
		return fmt.Errorf("gormstore: migrating: %w", err)
	}
	return nil
}

// Ping checks the database is reachable. Used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("gormstore: getting sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("gormstore: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Repository accessors. They share the store's connection pool.
func (s *Store) Users() *UserDB                 { return &UserDB{db: s.db} }
func (s *Store) Categories() *CategoryDB        { return &CategoryDB{db: s.db} }
func (s *Store) Agencies() *AgencyDB            { return &AgencyDB{db: s.db} }
func (s *Store) Complaints() *ComplaintDB       { return &ComplaintDB{db: s.db} }
func (s *Store) Notifications() *NotificationDB { return &NotificationDB{db: s.db} }

// translate maps gorm errors onto the apperror taxonomy.
func translate(err error, resource, id, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return apperror.Conflict(resource, id)
	}
	return fmt.Errorf("gormstore: %s %s %s: %w", op, resource, id, err)
}

// isUniqueViolation catches driver errors that escaped TranslateError.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func paginate(db *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}
	return db
}
