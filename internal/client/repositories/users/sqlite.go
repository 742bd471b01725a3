package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/machly/dirsync/internal/client/models"
	"github.com/machly/dirsync/internal/common"
	"github.com/machly/dirsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert reconciles by the unique email. On conflict, every mutable field is
// overwritten while the local id stays stable.
func (r *SQLiteRepository) Upsert(ctx context.Context, u *models.User) (int64, error) {
	query := `INSERT INTO users (server_user_id, full_name, email, password_verifier, role_id_local, last_updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(email) DO UPDATE SET server_user_id = excluded.server_user_id,
				full_name = excluded.full_name,
				password_verifier = excluded.password_verifier,
				role_id_local = excluded.role_id_local,
				last_updated = excluded.last_updated
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ServerUserID, u.FullName, u.Email, u.PasswordVerifier, u.RoleLocalID, u.LastUpdated)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, u.Email).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read back user id: %w", err)
	}
	return id, nil
}

// GetByEmail is the point lookup used by offline login. No join: the caller
// only needs the verifier and identity fields.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, server_user_id, full_name, email, password_verifier, role_id_local, last_updated
		 FROM users WHERE email = ?`, email)

	u := &models.User{}
	err := row.Scan(&u.LocalID, &u.ServerUserID, &u.FullName, &u.Email,
		&u.PasswordVerifier, &u.RoleLocalID, &u.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByLocalID returns a single user with the role name joined in for display.
func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.server_user_id, u.full_name, u.email, u.password_verifier,
		        u.role_id_local, u.last_updated, COALESCE(r.name, '')
		 FROM users u
		 LEFT JOIN roles r ON u.role_id_local = r.id
		 WHERE u.id = ?`, localID)

	u := &models.User{}
	err := row.Scan(&u.LocalID, &u.ServerUserID, &u.FullName, &u.Email,
		&u.PasswordVerifier, &u.RoleLocalID, &u.LastUpdated, &u.RoleName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// GetAll lists all cached users with role names, ordered by local id.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.server_user_id, u.full_name, u.email, u.password_verifier,
		        u.role_id_local, u.last_updated, COALESCE(r.name, '')
		 FROM users u
		 LEFT JOIN roles r ON u.role_id_local = r.id
		 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var item models.User
		if err := rows.Scan(&item.LocalID, &item.ServerUserID, &item.FullName, &item.Email,
			&item.PasswordVerifier, &item.RoleLocalID, &item.LastUpdated, &item.RoleName); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear deletes every cached user.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	return nil
}
