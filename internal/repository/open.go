package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/lukasedel/docsorter/internal/common"
)

// Open connects to the configured database. Supported drivers are "pgx"
// (Postgres) and "sqlite" (embedded, used for local runs and tests).
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "pgx", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, common.WrapError(err, "ping database")
	}
	return db, nil
}

// EnsureSchema creates the documents table when it is missing. The DDL is
// written to the common subset both drivers accept.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content BYTEA,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return common.WrapError(err, "ensure documents schema")
	}
	return nil
}
