// Package repotest provides throwaway databases for tests.
package repotest

import (
	"testing"

	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory sqlite database that is closed with the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := repositories.Open(config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = repositories.Close(db)
	})
	return db
}
