// Package databasetest provides migrated in-memory databases for tests.
package databasetest

import (
	"github.com/juju/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lmis-backend/internal/database"
)

// OpenInMemory opens a migrated sqlite database held in memory with
// foreign keys enforced.
func OpenInMemory() (*gorm.DB, error) {
	db, err := database.Open(sqlite.Open("file::memory:?_foreign_keys=1"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		return nil, errors.Trace(err)
	}
	return db, nil
}
