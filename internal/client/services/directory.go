package services

import (
	"context"
	"database/sql"

	"github.com/machly/dirsync/internal/client/models"
	"github.com/machly/dirsync/internal/client/repositories/roles"
	"github.com/machly/dirsync/internal/client/repositories/users"
	"github.com/machly/dirsync/internal/client/vault"
)

// DirectoryService serves the cached collections for display. Reads never
// touch the network; the data is whatever the last sync pass left behind.
type DirectoryService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	GetUser(ctx context.Context, localID int64) (*models.User, error)
	LastSync(ctx context.Context) (int64, error)
}

type directoryService struct {
	db    *sql.DB
	vault *vault.Vault
}

func NewDirectoryService(db *sql.DB, v *vault.Vault) DirectoryService {
	return &directoryService{db: db, vault: v}
}

func (d *directoryService) ListUsers(ctx context.Context) ([]models.User, error) {
	return users.NewSQLiteRepository(d.db).GetAll(ctx)
}

func (d *directoryService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return roles.NewSQLiteRepository(d.db).GetAll(ctx)
}

func (d *directoryService) GetUser(ctx context.Context, localID int64) (*models.User, error) {
	return users.NewSQLiteRepository(d.db).GetByLocalID(ctx, localID)
}

func (d *directoryService) LastSync(ctx context.Context) (int64, error) {
	return d.vault.LastSync(ctx)
}
