// Package complainttest holds database helpers shared by complaint and
// payment tests.
package complainttest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/grievance-portal/internal/migration"
	"gorm.io/gorm"
)

// OpenDB returns an isolated in-memory database carrying the sqlite
// migrations. Connections are capped at one so concurrent callers
// serialize instead of failing with a locked table.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	statements, err := migration.UpStatements("sqlite")
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// Backdate moves a complaint's updated_at into the past, as if it had been
// sitting in its current status for age.
func Backdate(ctx context.Context, db *gorm.DB, complaintID int64, age time.Duration) error {
	return db.WithContext(ctx).Exec(
		`UPDATE complaints
		 SET updated_at = ?
		 WHERE id = ?`,
		time.Now().UTC().Add(-age),
		complaintID,
	).Error
}

func CountRows(t *testing.T, db *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
