// Package database owns the gorm connection and the persisted models.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/castellan/muse/internal/config"
)

var db *gorm.DB

// Initialize opens the database connection described by cfg and stores it as
// the process-wide handle.
func Initialize(cfg config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// Open connects to the configured backend without touching the global handle.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Type {
	case "postgres":
		return connectPostgres(cfg)
	case "sqlite":
		return connectSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

func connectSQLite(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}
