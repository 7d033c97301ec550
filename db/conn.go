// Package db opens the gorm connection and keeps the schema up to date
package db

import (
	"bitwise74/user-api/pkg/util"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrations embed.FS

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

// New opens the database described by c and applies every pending migration
func New(c Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch c.Driver {
	case DriverPostgres:
		dialector = postgres.Open(c.DSN)
	case DriverSQLite:
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() && !strings.Contains(c.DSN, "mode=memory") {
			path, _, _ := strings.Cut(strings.TrimPrefix(c.DSN, "file:"), "?")
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %v", path)
			}
		}

		dialector = sqlite.Open(c.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	level := logger.Silent
	if c.Debug {
		level = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %v database, %w", c.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying connection pool, %w", err)
	}

	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}

	if err := Migrate(context.Background(), db, c.Driver); err != nil {
		return nil, err
	}

	return db, nil
}

func provider(db *gorm.DB, driver string) (*goose.Provider, error) {
	dialect, dir, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying connection pool, %w", err)
	}

	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations, %w", err)
	}

	p, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider, %w", err)
	}

	return p, nil
}

// Migrate runs the embedded goose migrations for the given driver
func Migrate(ctx context.Context, db *gorm.DB, driver string) error {
	p, err := provider(db, driver)
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations, %w", err)
	}

	for _, r := range results {
		zap.L().Debug("Migration applied",
			zap.String("source", r.Source.Path),
			zap.Duration("took", r.Duration))
	}

	return nil
}

func gooseDialect(driver string) (goose.Dialect, string, error) {
	switch driver {
	case DriverPostgres:
		return goose.DialectPostgres, "postgres", nil
	case DriverSQLite:
		return goose.DialectSQLite3, "sqlite", nil
	}

	return "", "", fmt.Errorf("unsupported database driver %q", driver)
}

// Status lists every embedded migration and whether it has been applied
func Status(ctx context.Context, db *gorm.DB, driver string) ([]*goose.MigrationStatus, error) {
	p, err := provider(db, driver)
	if err != nil {
		return nil, err
	}

	return p.Status(ctx)
}
