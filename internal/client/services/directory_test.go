package services

import (
	"context"
	"errors"
	"testing"

	"github.com/machly/dirsync/internal/client/models"
	"github.com/machly/dirsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryService_ServesCachedData(t *testing.T) {
	db := setupDB(t)
	v := testVault(db)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		Users: []models.UserDTO{{
			UserID: 10, FullName: "Ana", Email: "a@x.com",
			Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H",
		}},
	}
	ctx := context.Background()

	_, err := NewSyncService(c, db, v, testLogger()).Run(ctx)
	require.NoError(t, err)

	d := NewDirectoryService(db, v)

	listed, err := d.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Ana", listed[0].FullName)
	assert.Equal(t, "Admin", listed[0].RoleName)

	rolesGot, err := d.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, rolesGot, 1)
	assert.Equal(t, "Admin", rolesGot[0].Name)

	one, err := d.GetUser(ctx, listed[0].LocalID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", one.Email)

	_, err = d.GetUser(ctx, 9999)
	require.True(t, errors.Is(err, common.ErrorNotFound))

	last, err := d.LastSync(ctx)
	require.NoError(t, err)
	assert.NotZero(t, last)
}

func TestDirectoryService_EmptyCache(t *testing.T) {
	db := setupDB(t)
	d := NewDirectoryService(db, testVault(db))
	ctx := context.Background()

	listed, err := d.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	last, err := d.LastSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)
}
