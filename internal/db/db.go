package db

import (
	"fmt"
	"time"

	"github.com/diewo77/nimblestore/internal/config"
	"github.com/diewo77/nimblestore/internal/models"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the PostgreSQL database, retrying while the server comes up.
func Connect(dbCfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{})
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return db, nil
}

// Migrate applies the schema. With sqlMigrations it runs the SQL files in
// ./migrations through golang-migrate; otherwise it falls back to GORM
// AutoMigrate (dev convenience).
func Migrate(db *gorm.DB, dbCfg config.DatabaseConfig, sqlMigrations bool) error {
	if sqlMigrations {
		return runSQLMigrations(dbCfg.URL())
	}
	return AutoMigrate(db)
}

// AutoMigrate creates or updates the storefront tables from the models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// runSQLMigrations executes migrations in ./migrations using the golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
