// Package users stores the cached directory users.
package users

import (
	"context"

	"github.com/machly/dirsync/internal/client/models"
)

// Repository is the local store for cached users.
type Repository interface {
	// Upsert reconciles by email, not by server id. When a user with the
	// same email exists, all mutable fields are overwritten while the local
	// id is preserved; otherwise a new row is inserted. The local id is
	// returned in both cases.
	Upsert(ctx context.Context, user *models.User) (int64, error)

	// GetByEmail returns the cached user with the given email, or
	// common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByLocalID returns the cached user with the given local id, with
	// RoleName filled in from the joined role. Returns common.ErrorNotFound
	// for unknown ids.
	GetByLocalID(ctx context.Context, localID int64) (*models.User, error)

	// GetAll lists all cached users in insertion order, with RoleName
	// filled in.
	GetAll(ctx context.Context) ([]models.User, error)

	// Clear removes every cached user. Used only by the explicit reset
	// path, never by sync.
	Clear(ctx context.Context) error
}
