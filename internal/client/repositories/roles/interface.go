// Package roles stores the cached directory roles.
package roles

import (
	"context"

	"github.com/machly/dirsync/internal/client/models"
)

// Repository is the local store for cached roles.
type Repository interface {
	// Upsert inserts the role or, when a role with the same server id is
	// already cached, overwrites its name and description in place. The
	// role's local id is returned in both cases, so at most one cached row
	// per server role ever exists.
	Upsert(ctx context.Context, role *models.Role) (int64, error)

	// ResolveLocalID maps a server role id to the cached role's local id.
	// Returns common.ErrorNotFound when the mapping is unknown.
	ResolveLocalID(ctx context.Context, serverRoleID int64) (int64, error)

	// GetAll lists all cached roles in insertion order.
	GetAll(ctx context.Context) ([]models.Role, error)

	// Clear removes every cached role. Used only by the explicit reset
	// path, never by sync.
	Clear(ctx context.Context) error
}
