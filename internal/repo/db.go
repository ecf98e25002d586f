// Package repo is the GORM persistence layer. Functions take the *gorm.DB
// explicitly so callers decide whether they run inside a transaction.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// ErrNotFound aliases gorm.ErrRecordNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// Options tunes OpenSQLite. The zero value opens a silent, untraced handle
// with up to 10 connections.
type Options struct {
	// Tracing turns every statement into a span under the request span.
	Tracing bool
	// LogLevel for GORM's statement logger; zero means Silent.
	LogLevel logger.LogLevel
	// MaxOpenConns caps the pool; zero means 10.
	MaxOpenConns int
}

// sqlitePragmas run once per handle. WAL lets list requests read while a
// summary insert is in flight.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// OpenSQLite opens or creates the database at path. The parent directory
// must already exist.
func OpenSQLite(path string, opts ...Options) (*gorm.DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.LogLevel == 0 {
		o.LogLevel = logger.Silent
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(o.LogLevel)})
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if o.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.Comment{},
		&domain.Upload{},
		&domain.Summary{},
		&domain.Idempotency{},
	)
}
