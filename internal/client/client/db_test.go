package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/machly/dirsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

func TestInitDatabase_MigratesAndServesRepositories(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	repos, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.DB.Close() })

	roleID, err := repos.Roles.Upsert(ctx, &models.Role{Name: "Admin"})
	require.NoError(t, err)

	_, err = repos.Users.Upsert(ctx, &models.User{
		FullName: "Ana", Email: "a@x.com", PasswordVerifier: "H", RoleLocalID: roleID,
	})
	require.NoError(t, err)

	require.NoError(t, repos.Metadata.Set(ctx, "k", []byte("v")))

	got, err := repos.Users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FullName)

	// migrations are idempotent on an already migrated database
	repos2, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer repos2.DB.Close()

	all, err := repos2.Users.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
