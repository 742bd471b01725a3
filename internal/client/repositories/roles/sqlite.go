package roles

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

// Upsert keys on server_role_id when the role has one. Roles without a
// server id (never confirmed against the server) are plain inserts.
func (r *SQLiteRepository) Upsert(ctx context.Context, role *models.Role) (int64, error) {
	if !role.ServerRoleID.Valid {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO roles (server_role_id, name, description) VALUES (NULL, ?, ?)`,
			role.Name, role.Description)
		if err != nil {
			return 0, fmt.Errorf("failed to insert role: %w", err)
		}
		return res.LastInsertId()
	}

	query := `INSERT INTO roles (server_role_id, name, description)
			VALUES (?, ?, ?)
			ON CONFLICT(server_role_id) DO UPDATE SET name = excluded.name,
				description = excluded.description
	`
	_, err := r.db.ExecContext(ctx, query, role.ServerRoleID.Int64, role.Name, role.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert role: %w", err)
	}
	return r.ResolveLocalID(ctx, role.ServerRoleID.Int64)
}

// ResolveLocalID returns the local id of the role with the given server id.
func (r *SQLiteRepository) ResolveLocalID(ctx context.Context, serverRoleID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM roles WHERE server_role_id = ?`, serverRoleID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.ErrorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve role %d: %w", serverRoleID, err)
	}
	return id, nil
}

// GetAll lists all cached roles ordered by local id (insertion order).
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, server_role_id, name, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select roles: %w", err)
	}
	defer rows.Close()

	var result []models.Role
	for rows.Next() {
		var item models.Role
		if err := rows.Scan(&item.LocalID, &item.ServerRoleID, &item.Name, &item.Description); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear deletes every cached role.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM roles`)
	if err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	return nil
}
