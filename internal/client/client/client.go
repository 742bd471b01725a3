package client

import (
	"context"

	"github.com/machly/dirsync/internal/client/models"
)

// Client is the remote directory API. All calls are subject to a per-call
// timeout applied by the implementation; callers may tighten it further via
// ctx.
type Client interface {
	Close() error
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	ListRoles(ctx context.Context) ([]models.RoleDTO, error)
	ListUsers(ctx context.Context) ([]models.UserDTO, error)
	GetUser(ctx context.Context, serverUserID int64) (*models.UserDTO, error)
	Ping(ctx context.Context) error
}
