package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-generic-dao/pkg/config"
	"github.com/goliatone/go-generic-dao/pkg/database"
)

// NewSQLiteDB opens a private in-memory sqlite database with a table for
// every test model. The database is closed when the test ends.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	// one connection keeps the in-memory database alive and private
	db, err := database.Open(ctx, config.Database{
		Driver:       config.DriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.CreateTables(ctx, db, Models()...); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return db
}

// NewMockDB returns a bun database over sqlmock using the sqlite dialect.
// Unmet expectations fail the test at cleanup.
func NewMockDB(t testing.TB) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		sqldb.Close()
	})
	return bun.NewDB(sqldb, sqlitedialect.New()), mock
}

// Insert writes rows directly, bypassing any unit-of-work.
func Insert(t testing.TB, db bun.IDB, rows ...any) {
	t.Helper()

	for _, row := range rows {
		if _, err := db.NewInsert().Model(row).Exec(context.Background()); err != nil {
			t.Fatalf("failed to insert %T: %v", row, err)
		}
	}
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, db bun.IDB, table string) int {
	t.Helper()

	var n int
	err := db.NewSelect().TableExpr("?", bun.Ident(table)).ColumnExpr("count(*)").Scan(context.Background(), &n)
	if err != nil && err != sql.ErrNoRows {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
