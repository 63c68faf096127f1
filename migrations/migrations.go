// Package migrations holds the SQL schema of the import pipeline.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed *.sql
var embedded embed.FS

// FS is the embedded migration set.
func FS() fs.FS { return embedded }

// NewProvider opens a goose provider over pool. The returned close func
// releases the database/sql handle, not the pool.
func NewProvider(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	p, err := goose.NewProvider(database.DialectPostgres, db, embedded)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, db.Close, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, pool *pgxpool.Pool) ([]*goose.MigrationResult, error) {
	p, closeDB, err := NewProvider(pool)
	if err != nil {
		return nil, err
	}
	defer closeDB()
	return p.Up(ctx)
}
