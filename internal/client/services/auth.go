package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/machly/dirsync/internal/client/client"
	"github.com/machly/dirsync/internal/client/models"
	"github.com/machly/dirsync/internal/client/repositories/roles"
	"github.com/machly/dirsync/internal/client/repositories/users"
	"github.com/machly/dirsync/internal/client/vault"
	"github.com/machly/dirsync/internal/common"
	"github.com/machly/dirsync/internal/dbx"
	"github.com/machly/dirsync/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server, cache the user and its
//     verifier, and persist the session.
//   - OfflineLogin: verify the password against the locally cached verifier;
//     makes no network call and never blocks on one.
//   - Resume: report whether a stored session token is still usable.
//   - Logout: clear the session (cached collections stay).
//   - Reset: wipe the cached collections and the vault.
//   - Ping: check server liveness.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	OnlineLogin(ctx context.Context, email, password string) (*models.User, error)
	OfflineLogin(ctx context.Context, email, password string) (*models.User, error)
	Resume(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
	vault  *vault.Vault
	log    logging.Logger
}

// NewAuthService constructs an AuthService bound to the given API client,
// local database, and vault.
func NewAuthService(c client.Client, db *sql.DB, v *vault.Vault, log logging.Logger) AuthService {
	return &authService{client: c, db: db, vault: v, log: log.With("component", "auth")}
}

func (a *authService) userRepo() users.Repository {
	return users.NewSQLiteRepository(a.db)
}

// OnlineLogin authenticates against the server and caches everything a later
// offline login needs: the user row with its verifier, the role it
// references, and the session token.
func (a *authService) OnlineLogin(ctx context.Context, email, password string) (*models.User, error) {
	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	verifier := res.User.PasswordVerifier
	if verifier == "" {
		// The server kept its verifier; derive one from the password that
		// was just accepted online.
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("verifier derivation error: %w", err)
		}
		verifier = string(hash)
	}

	var user *models.User
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		roleRepo := roles.NewSQLiteRepository(tx)
		userRepo := users.NewSQLiteRepository(tx)

		localRoleID, err := roleRepo.ResolveLocalID(ctx, res.User.Role.RoleID)
		if errors.Is(err, common.ErrorNotFound) {
			// First contact with this role: cache the copy embedded in the
			// login response; the post-login sync fills in the rest.
			localRoleID, err = roleRepo.Upsert(ctx, &models.Role{
				ServerRoleID: sql.NullInt64{Int64: res.User.Role.RoleID, Valid: true},
				Name:         res.User.Role.Name,
				Description:  res.User.Role.Description,
			})
		}
		if err != nil {
			return err
		}

		u := &models.User{
			ServerUserID:     sql.NullInt64{Int64: res.User.UserID, Valid: true},
			FullName:         res.User.FullName,
			Email:            res.User.Email,
			PasswordVerifier: verifier,
			RoleLocalID:      localRoleID,
			LastUpdated:      res.User.LastUpdated,
		}
		id, err := userRepo.Upsert(ctx, u)
		if err != nil {
			return err
		}
		u.LocalID = id
		u.RoleName = res.User.Role.Name
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("login caching error: %w", err)
	}

	var expiry int64
	if res.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second).UnixMilli()
	} else {
		expiry = vault.ExpiryFromToken(res.Token)
	}
	if err := a.vault.SaveSession(ctx, res.Token, user.Email, expiry); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	a.log.Info(ctx, "online login succeeded", "email", user.Email)
	return user, nil
}

// OfflineLogin verifies the password against the cached bcrypt verifier.
// Returns common.ErrUnknownAccount when this email has never logged in
// online on this device, common.ErrInvalidCredentials on a mismatch.
func (a *authService) OfflineLogin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.userRepo().GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordVerifier), []byte(password)) != nil {
		return nil, common.ErrInvalidCredentials
	}

	a.log.Info(ctx, "offline login succeeded", "email", email)
	return user, nil
}

// Resume reports whether a stored session token is still usable. The stored
// expiry is checked against the clock: a stale token never counts as logged
// in.
func (a *authService) Resume(ctx context.Context) (bool, error) {
	return a.vault.SessionValid(ctx, time.Now())
}

// Logout clears the persisted session. The cached collections are kept so
// offline login keeps working.
func (a *authService) Logout(ctx context.Context) error {
	return a.vault.ClearSession(ctx)
}

// Reset wipes the cached collections and the vault. This is the only
// destructive path; sync never deletes.
func (a *authService) Reset(ctx context.Context) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Users first: they reference roles.
		if err := users.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return roles.NewSQLiteRepository(tx).Clear(ctx)
	})
	if err != nil {
		return err
	}
	return a.vault.Reset(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
