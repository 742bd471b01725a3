package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/machly/dirsync/internal/client/migrations"
	"github.com/machly/dirsync/internal/client/repositories/metadata"
	"github.com/machly/dirsync/internal/client/repositories/roles"
	"github.com/machly/dirsync/internal/client/repositories/users"
	"github.com/pressly/goose/v3"
)

// Repositories bundles the local cache repositories sharing one database
// handle. Services that need transactions use DB directly.
type Repositories struct {
	Roles    roles.Repository
	Users    users.Repository
	Metadata metadata.Repository
	DB       *sql.DB
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite cache at dsn, migrates it, and returns the
// repository set.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Roles:    roles.NewSQLiteRepository(db),
		Users:    users.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
