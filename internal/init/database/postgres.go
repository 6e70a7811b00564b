package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"bloodlink/config"

	"github.com/golang-migrate/migrate/v4"
	ps "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*
var sqlFiles embed.FS

// KVEntry is one row of the key-value table. Postgres gets it from the embedded
// migrations, SQLite through AutoMigrate.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;column:key;size:255"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

type Storage struct {
	Db *gorm.DB
}

func NewStorage(storageCfg config.StorageConfig, cfg config.DbConfig) (*Storage, error) {
	switch storageCfg.Driver {
	case "postgres":
		return newPostgres(cfg)
	case "sqlite":
		return NewSQLite(storageCfg.SQLitePath)
	default:
		return nil, fmt.Errorf("database storage requested with unsupported driver %q", storageCfg.Driver)
	}
}

func newPostgres(cfg config.DbConfig) (*Storage, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.Username, os.Getenv("DB_PASSWORD"), cfg.DbName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	migrator, err := NewMigrator(sqlFiles, "migrations")
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := migrator.ApplyMigrations(sqlDB); err != nil {
		return nil, err
	}

	return &Storage{Db: db}, nil
}

// NewSQLite opens a file (or ":memory:") database for local runs and tests.
func NewSQLite(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// An in-memory database lives inside a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("sqlite automigrate: %w", err)
	}
	return &Storage{Db: db}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.Db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type Migrator struct {
	srcDriver source.Driver
}

func NewMigrator(sqlFiles embed.FS, dirName string) (*Migrator, error) {
	srcDriver, err := iofs.New(sqlFiles, dirName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize source driver: %w", err)
	}
	return &Migrator{srcDriver: srcDriver}, nil
}

func (m *Migrator) ApplyMigrations(db *sql.DB) error {
	driver, err := ps.WithInstance(db, &ps.Config{})
	if err != nil {
		return fmt.Errorf("unable to create postgres driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance(
		"iofs", m.srcDriver, "postgres", driver,
	)
	if err != nil {
		return fmt.Errorf("unable to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}

	return nil
}
