// Package database opens bun databases for the supported drivers.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-generic-dao/pkg/config"
)

// Open connects with the driver named in cfg and pings the database.
func Open(ctx context.Context, cfg config.Database) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var dialect schema.Dialect
	switch cfg.Driver {
	case config.DriverSQLite:
		dialect = sqlitedialect.New()
	case config.DriverPostgres, config.DriverPgx:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Driver, err)
	}

	return bun.NewDB(sqldb, dialect), nil
}

// CreateTables creates a table for every model that does not have one yet.
func CreateTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("database: create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of models, ignoring missing ones.
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("database: drop table for %T: %w", model, err)
		}
	}
	return nil
}
