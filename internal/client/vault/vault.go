// Package vault persists session and sync bookkeeping in the local cache's
// metadata region: the active token and its expiry, the last successful sync
// timestamp, the first-run flag, and the per-install device id. One session
// at a time; everything survives restarts.
package vault

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/machly/dirsync/internal/client/repositories/metadata"
)

const (
	keyToken        = "token"
	keyTokenExpiry  = "token_expiry"
	keySessionEmail = "session_email"
	keyLastSync     = "last_sync"
	keyFirstRun     = "first_run_done"
	keyDeviceID     = "device_id"
)

type Vault struct {
	repo metadata.Repository
}

func New(repo metadata.Repository) *Vault {
	return &Vault{repo: repo}
}

// SaveSession stores the session token, the email it belongs to, and the
// absolute expiry in unix milliseconds.
func (v *Vault) SaveSession(ctx context.Context, token, email string, expiry int64) error {
	if err := v.repo.Set(ctx, keyToken, []byte(token)); err != nil {
		return err
	}
	if err := v.repo.Set(ctx, keySessionEmail, []byte(email)); err != nil {
		return err
	}
	return v.setInt(ctx, keyTokenExpiry, expiry)
}

// ClearSession removes the stored token, email, and expiry.
func (v *Vault) ClearSession(ctx context.Context) error {
	for _, key := range []string{keyToken, keySessionEmail, keyTokenExpiry} {
		if err := v.repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Token returns the stored session token, or "" when none is stored.
func (v *Vault) Token(ctx context.Context) (string, error) {
	b, err := v.repo.Get(ctx, keyToken)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SessionEmail returns the email of the stored session, or "".
func (v *Vault) SessionEmail(ctx context.Context) (string, error) {
	b, err := v.repo.Get(ctx, keySessionEmail)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TokenExpiry returns the stored expiry in unix milliseconds, 0 when unset.
func (v *Vault) TokenExpiry(ctx context.Context) (int64, error) {
	return v.getInt(ctx, keyTokenExpiry)
}

// SessionValid reports whether a token is stored and not yet expired at now.
// A stored token without a usable expiry counts as expired.
func (v *Vault) SessionValid(ctx context.Context, now time.Time) (bool, error) {
	token, err := v.Token(ctx)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}
	expiry, err := v.TokenExpiry(ctx)
	if err != nil {
		return false, err
	}
	if expiry == 0 {
		expiry = ExpiryFromToken(token)
	}
	return expiry > now.UnixMilli(), nil
}

// SetLastSync records the completion time of a sync pass (unix milliseconds).
func (v *Vault) SetLastSync(ctx context.Context, timestamp int64) error {
	return v.setInt(ctx, keyLastSync, timestamp)
}

// LastSync returns the last recorded sync time, 0 when never synced.
func (v *Vault) LastSync(ctx context.Context) (int64, error) {
	return v.getInt(ctx, keyLastSync)
}

// IsFirstRun reports whether MarkFirstRunDone has never been called.
func (v *Vault) IsFirstRun(ctx context.Context) (bool, error) {
	b, err := v.repo.Get(ctx, keyFirstRun)
	if err != nil {
		return false, err
	}
	return b == nil, nil
}

func (v *Vault) MarkFirstRunDone(ctx context.Context) error {
	return v.repo.Set(ctx, keyFirstRun, []byte("1"))
}

// DeviceID returns the per-install identifier, generating and persisting one
// on first use.
func (v *Vault) DeviceID(ctx context.Context) (string, error) {
	b, err := v.repo.Get(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if len(b) > 0 {
		return string(b), nil
	}
	id := uuid.NewString()
	if err := v.repo.Set(ctx, keyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// Reset wipes the whole metadata region. Part of the explicit full cache
// reset; the device id is regenerated on next use.
func (v *Vault) Reset(ctx context.Context) error {
	return v.repo.Clear(ctx)
}

func (v *Vault) setInt(ctx context.Context, key string, value int64) error {
	return v.repo.Set(ctx, key, []byte(strconv.FormatInt(value, 10)))
}

func (v *Vault) getInt(ctx context.Context, key string) (int64, error) {
	b, err := v.repo.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ExpiryFromToken extracts the exp claim from a JWT without verifying the
// signature: the client has no signing key and only needs the timestamp.
// Returns 0 when the token is not a JWT or carries no exp claim.
func ExpiryFromToken(token string) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.UnixMilli()
}
