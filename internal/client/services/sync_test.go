package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/machly/dirsync/internal/client/models"
	"github.com/machly/dirsync/internal/client/repositories/metadata"
	"github.com/machly/dirsync/internal/client/repositories/users"
	"github.com/machly/dirsync/internal/client/vault"
	"github.com/machly/dirsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:svctests?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE roles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  server_role_id INTEGER UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  server_user_id INTEGER,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_verifier TEXT NOT NULL,
  role_id_local INTEGER NOT NULL REFERENCES roles(id),
  last_updated INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE metadata (
  key TEXT PRIMARY KEY,
  value BLOB
);
`)
	require.NoError(t, err)

	return db
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testVault(db *sql.DB) *vault.Vault {
	return vault.New(metadata.NewSQLiteRepository(db))
}

// fakeClient implements client.Client for service tests. When RolesStarted
// and RolesRelease are set, ListRoles signals on the former and then blocks
// until the latter is closed, letting tests hold a pass mid-fetch.
type fakeClient struct {
	LoginRet   *models.LoginResult
	LoginErr   error
	Roles      []models.RoleDTO
	RolesErr   error
	Users      []models.UserDTO
	UsersErr   error
	GetUserRet *models.UserDTO
	GetUserErr error
	PingErr    error

	RolesStarted chan struct{}
	RolesRelease chan struct{}

	LastLoginEmail    string
	LastLoginPassword string
	ListRolesCalls    int
	ListUsersCalls    int
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	f.LastLoginEmail = email
	f.LastLoginPassword = password
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return f.LoginRet, nil
}

func (f *fakeClient) ListRoles(ctx context.Context) ([]models.RoleDTO, error) {
	f.ListRolesCalls++
	if f.RolesStarted != nil {
		f.RolesStarted <- struct{}{}
	}
	if f.RolesRelease != nil {
		<-f.RolesRelease
	}
	if f.RolesErr != nil {
		return nil, f.RolesErr
	}
	return f.Roles, nil
}

func (f *fakeClient) ListUsers(ctx context.Context) ([]models.UserDTO, error) {
	f.ListUsersCalls++
	if f.UsersErr != nil {
		return nil, f.UsersErr
	}
	return f.Users, nil
}

func (f *fakeClient) GetUser(ctx context.Context, serverUserID int64) (*models.UserDTO, error) {
	if f.GetUserErr != nil {
		return nil, f.GetUserErr
	}
	return f.GetUserRet, nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

// dumpTables renders the cached collections into a stable textual form, used
// to compare full database state across sync passes.
func dumpTables(t *testing.T, db *sql.DB) string {
	t.Helper()
	var out string

	rows, err := db.Query(`SELECT id, server_role_id, name, description FROM roles ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id int64
		var serverID sql.NullInt64
		var name, desc string
		require.NoError(t, rows.Scan(&id, &serverID, &name, &desc))
		out += fmt.Sprintf("role|%d|%v|%s|%s\n", id, serverID, name, desc)
	}
	require.NoError(t, rows.Err())

	urows, err := db.Query(`SELECT id, server_user_id, full_name, email, password_verifier, role_id_local, last_updated FROM users ORDER BY id`)
	require.NoError(t, err)
	defer urows.Close()
	for urows.Next() {
		var id, roleID, updated int64
		var serverID sql.NullInt64
		var name, email, verifier string
		require.NoError(t, urows.Scan(&id, &serverID, &name, &email, &verifier, &roleID, &updated))
		out += fmt.Sprintf("user|%d|%v|%s|%s|%s|%d|%d\n", id, serverID, name, email, verifier, roleID, updated)
	}
	require.NoError(t, urows.Err())

	return out
}

func TestRun_MergesRolesThenUsers(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		Users: []models.UserDTO{{
			UserID: 10, FullName: "Ana", Email: "a@x.com",
			Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H", LastUpdated: 5000,
		}},
	}
	v := testVault(db)
	s := NewSyncService(c, db, v, testLogger())
	ctx := context.Background()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Roles)
	assert.Equal(t, 1, report.Users)
	assert.Empty(t, report.Skipped)

	got, err := users.NewSQLiteRepository(db).GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FullName)
	assert.Equal(t, "H", got.PasswordVerifier)
	assert.Equal(t, int64(10), got.ServerUserID.Int64)

	// the user's role reference resolves to the locally assigned role id
	var roleID int64
	require.NoError(t, db.QueryRow(`SELECT id FROM roles WHERE server_role_id = 1`).Scan(&roleID))
	assert.Equal(t, roleID, got.RoleLocalID)

	last, err := v.LastSync(ctx)
	require.NoError(t, err)
	assert.NotZero(t, last)
}

func TestRun_Idempotent(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}, {RoleID: 2, Name: "Viewer"}},
		Users: []models.UserDTO{
			{UserID: 10, FullName: "Ana", Email: "a@x.com", Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H"},
			{UserID: 11, FullName: "Bob", Email: "b@x.com", Role: models.RoleDTO{RoleID: 2}, PasswordVerifier: "H2"},
		},
	}
	s := NewSyncService(c, db, testVault(db), testLogger())
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.NoError(t, err)
	first := dumpTables(t, db)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, dumpTables(t, db))
	assert.Equal(t, 2, report.Users)
}

func TestRun_RoleRenameKeepsLocalID(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}}}
	s := NewSyncService(c, db, testVault(db), testLogger())
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.NoError(t, err)

	var before int64
	require.NoError(t, db.QueryRow(`SELECT id FROM roles WHERE server_role_id = 1`).Scan(&before))

	c.Roles = []models.RoleDTO{{RoleID: 1, Name: "Administrator"}}
	_, err = s.Run(ctx)
	require.NoError(t, err)

	var after int64
	var name string
	require.NoError(t, db.QueryRow(`SELECT id, name FROM roles WHERE server_role_id = 1`).Scan(&after, &name))
	assert.Equal(t, before, after)
	assert.Equal(t, "Administrator", name)
}

func TestRun_SkipsUserWithUnknownRole(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		Users: []models.UserDTO{
			{UserID: 10, FullName: "Ana", Email: "a@x.com", Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H"},
			{UserID: 11, FullName: "Bob", Email: "b@x.com", Role: models.RoleDTO{RoleID: 99}, PasswordVerifier: "H"},
		},
	}
	s := NewSyncService(c, db, testVault(db), testLogger())
	ctx := context.Background()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b@x.com", report.Skipped[0].Email)
	assert.Equal(t, int64(99), report.Skipped[0].ServerRoleID)
	assert.Equal(t, SkipUnresolvedRole, report.Skipped[0].Reason)

	// the good record still landed
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRun_MissingVerifierPolicy(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		Users: []models.UserDTO{{
			UserID: 10, FullName: "Ana", Email: "a@x.com",
			Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H", LastUpdated: 1000,
		}},
	}
	s := NewSyncService(c, db, testVault(db), testLogger())
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.NoError(t, err)

	// next pass omits verifiers and adds an unseen user
	c.Users = []models.UserDTO{
		{UserID: 10, FullName: "Ana Maria", Email: "a@x.com", Role: models.RoleDTO{RoleID: 1}, LastUpdated: 2000},
		{UserID: 11, FullName: "Bob", Email: "b@x.com", Role: models.RoleDTO{RoleID: 1}},
	}
	report, err := s.Run(ctx)
	require.NoError(t, err)

	// known user: updated, cached verifier kept
	got, err := users.NewSQLiteRepository(db).GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.FullName)
	assert.Equal(t, "H", got.PasswordVerifier)
	assert.Equal(t, int64(2000), got.LastUpdated)

	// unseen user without verifier: skipped, not stored
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b@x.com", report.Skipped[0].Email)
	assert.Equal(t, SkipMissingVerifier, report.Skipped[0].Reason)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRun_RolesPersistWhenUserFetchFails(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles:    []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		UsersErr: errors.New("connection reset"),
	}
	v := testVault(db)
	s := NewSyncService(c, db, v, testLogger())
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.Error(t, err)

	// the role merge committed before the user fetch failed
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&count))
	assert.Equal(t, 1, count)

	// the pass did not complete: no sync timestamp
	last, lerr := v.LastSync(ctx)
	require.NoError(t, lerr)
	assert.Zero(t, last)
}

func TestRun_ConcurrentTriggersShareOnePass(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{
		Roles: []models.RoleDTO{{RoleID: 1, Name: "Admin"}},
		Users: []models.UserDTO{{
			UserID: 10, FullName: "Ana", Email: "a@x.com",
			Role: models.RoleDTO{RoleID: 1}, PasswordVerifier: "H",
		}},
		RolesStarted: make(chan struct{}),
		RolesRelease: make(chan struct{}),
	}
	s := NewSyncService(c, db, testVault(db), testLogger())
	ctx := context.Background()

	type result struct {
		report *SyncReport
		err    error
	}
	results := make(chan result, 2)

	go func() {
		r, err := s.Run(ctx)
		results <- result{r, err}
	}()

	// first pass is now held mid-fetch; a trigger arriving here must join it
	<-c.RolesStarted
	go func() {
		r, err := s.Run(ctx)
		results <- result{r, err}
	}()
	time.Sleep(100 * time.Millisecond)
	close(c.RolesRelease)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)

	// one fetch, one merge, one shared report
	assert.Equal(t, 1, c.ListRolesCalls)
	assert.Equal(t, 1, c.ListUsersCalls)
	assert.Same(t, first.report, second.report)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRun_RoleFetchFailureLeavesNoState(t *testing.T) {
	db := setupDB(t)
	c := &fakeClient{RolesErr: errors.New("unreachable")}
	v := testVault(db)
	s := NewSyncService(c, db, v, testLogger())
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&count))
	assert.Zero(t, count)

	last, lerr := v.LastSync(ctx)
	require.NoError(t, lerr)
	assert.Zero(t, last)
}
