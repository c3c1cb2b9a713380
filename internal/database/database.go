package database

import (
	"fmt"

	"github.com/ksred/intake-api/internal/database/migrations"
	"github.com/ksred/intake-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection.
// The pool is pinned to a single open connection: sqlite allows one
// writer at a time, and this makes the store the serialization point for
// sequence-number assignment and per-order updates.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&types.Order{},
		&types.Execution{},
		&types.DispatchRecord{},
	)
	if err != nil {
		return nil, err
	}

	if err := migrations.AddDispatchIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
