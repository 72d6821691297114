package database

import (
	"context"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-generic-dao/pkg/config"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.Database{Driver: config.DriverSQLite, DSN: "file::memory:", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if db.Dialect().Name() != dialect.SQLite {
		t.Errorf("expected sqlite dialect, got %v", db.Dialect().Name())
	}

	if err := CreateTables(ctx, db, (*widget)(nil)); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	// second run is a no-op
	if err := CreateTables(ctx, db, (*widget)(nil)); err != nil {
		t.Fatalf("create tables again: %v", err)
	}

	w := &widget{Name: "gear"}
	if _, err := db.NewInsert().Model(w).Exec(ctx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if w.ID == 0 {
		t.Error("expected generated id")
	}

	if err := DropTables(ctx, db, (*widget)(nil)); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Database
	}{
		{name: "unknown driver", cfg: config.Database{Driver: "oracle", DSN: "x"}},
		{name: "missing dsn", cfg: config.Database{Driver: config.DriverSQLite}},
		{name: "missing driver", cfg: config.Database{DSN: "file::memory:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(context.Background(), tt.cfg)
			if err == nil {
				db.Close()
				t.Fatal("expected error")
			}
		})
	}
}
