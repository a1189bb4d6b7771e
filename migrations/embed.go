package migrations

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
)

const Dir = "organization"

//go:embed organization/*.sql
var FS embed.FS

// NewProvider returns a goose provider over the embedded organization migrations.
func NewProvider(db *sql.DB) (*goose.Provider, error) {
	sub, err := fs.Sub(FS, Dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectPostgres, db, sub)
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB) ([]*goose.MigrationResult, error) {
	p, err := NewProvider(db)
	if err != nil {
		return nil, err
	}
	return p.Up(ctx)
}
