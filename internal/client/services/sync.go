// Package services contains the application services of the directory
// client: the sync orchestrator, authentication, and cached directory reads.
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
	"golang.org/x/sync/singleflight"
)

// phase names the steps of a sync pass, attached to logs and wrapped errors.
type phase string

const (
	phaseFetchingRoles phase = "fetching_roles"
	phaseMergingRoles  phase = "merging_roles"
	phaseFetchingUsers phase = "fetching_users"
	phaseMergingUsers  phase = "merging_users"
	phaseDone          phase = "done"
	phaseErrored       phase = "errored"
)

// SkipReason explains why a remote user was left out of a pass.
type SkipReason string

const (
	SkipUnresolvedRole  SkipReason = "unresolved role"
	SkipMissingVerifier SkipReason = "missing verifier"
	SkipStorageError    SkipReason = "storage error"
)

// SkippedUser identifies a remote record that was not merged.
type SkippedUser struct {
	Email        string
	ServerRoleID int64
	Reason       SkipReason
}

// SyncReport summarizes a completed pass.
type SyncReport struct {
	Roles   int
	Users   int
	Skipped []SkippedUser
}

// SyncService runs full sync passes against the directory API.
//
// A pass fetches the remote role collection, merges it, then fetches users,
// translating each user's server role reference into a local role id before
// merging. Role merge strictly precedes user merge: a user cannot be
// persisted without a resolvable role. Each collection's merge runs inside
// one transaction; roles already committed when the user fetch fails stay
// persisted (an intentional, observable partial effect). Concurrent triggers
// share a single in-flight pass.
type SyncService interface {
	Run(ctx context.Context) (*SyncReport, error)
}

type syncService struct {
	client client.Client
	db     *sql.DB
	vault  *vault.Vault
	log    logging.Logger
	group  singleflight.Group
}

// NewSyncService constructs a SyncService bound to the given API client,
// local database, and vault.
func NewSyncService(c client.Client, db *sql.DB, v *vault.Vault, log logging.Logger) SyncService {
	return &syncService{client: c, db: db, vault: v, log: log.With("component", "sync")}
}

// Run executes one sync pass, or joins the pass already in flight: callers
// that trigger while a pass is running receive that pass's report and error.
func (s *syncService) Run(ctx context.Context) (*SyncReport, error) {
	res, err, _ := s.group.Do("sync", func() (any, error) {
		return s.runPass(ctx)
	})
	if err != nil {
		s.log.Error(ctx, "sync pass failed", "phase", phaseErrored, "error", err)
		return nil, err
	}
	return res.(*SyncReport), nil
}

func (s *syncService) runPass(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	s.log.Info(ctx, "sync pass started", "phase", phaseFetchingRoles)
	remoteRoles, err := s.client.ListRoles(ctx)
	if err != nil {
		// Nothing written yet: a failed role fetch leaves no partial state.
		return nil, fmt.Errorf("fetch roles: %w", err)
	}

	s.log.Debug(ctx, "merging roles", "phase", phaseMergingRoles, "count", len(remoteRoles))
	if err := s.mergeRoles(ctx, remoteRoles); err != nil {
		return nil, fmt.Errorf("merge roles: %w", err)
	}
	report.Roles = len(remoteRoles)

	s.log.Debug(ctx, "fetching users", "phase", phaseFetchingUsers)
	remoteUsers, err := s.client.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}

	s.log.Debug(ctx, "merging users", "phase", phaseMergingUsers, "count", len(remoteUsers))
	if err := s.mergeUsers(ctx, remoteUsers, report); err != nil {
		return nil, fmt.Errorf("merge users: %w", err)
	}

	if err := s.vault.SetLastSync(ctx, time.Now().UnixMilli()); err != nil {
		return nil, fmt.Errorf("record sync time: %w", err)
	}

	s.log.Info(ctx, "sync pass finished", "phase", phaseDone,
		"roles", report.Roles, "users", report.Users, "skipped", len(report.Skipped))
	return report, nil
}

// mergeRoles upserts the remote roles sequentially inside one transaction,
// so a failing record rolls the collection back as a unit. Sequential merge
// keeps local id assignment deterministic.
func (s *syncService) mergeRoles(ctx context.Context, remote []models.RoleDTO) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := roles.NewSQLiteRepository(tx)
		for _, dto := range remote {
			role := &models.Role{
				ServerRoleID: sql.NullInt64{Int64: dto.RoleID, Valid: true},
				Name:         dto.Name,
				Description:  dto.Description,
			}
			if _, err := repo.Upsert(ctx, role); err != nil {
				return fmt.Errorf("role %d: %w", dto.RoleID, err)
			}
		}
		return nil
	})
}

// mergeUsers translates each remote user's role reference and upserts the
// user by email. Records that cannot be merged are reported as skipped
// instead of failing the pass or being dropped silently.
func (s *syncService) mergeUsers(ctx context.Context, remote []models.UserDTO, report *SyncReport) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		roleRepo := roles.NewSQLiteRepository(tx)
		userRepo := users.NewSQLiteRepository(tx)

		for _, dto := range remote {
			localRoleID, err := roleRepo.ResolveLocalID(ctx, dto.Role.RoleID)
			if errors.Is(err, common.ErrorNotFound) {
				s.log.Warn(ctx, "skipping user with unknown role",
					"email", dto.Email, "server_role_id", dto.Role.RoleID)
				report.Skipped = append(report.Skipped, SkippedUser{
					Email: dto.Email, ServerRoleID: dto.Role.RoleID, Reason: SkipUnresolvedRole})
				continue
			}
			if err != nil {
				return err
			}

			verifier := dto.PasswordVerifier
			if verifier == "" {
				// The server did not share one: keep the locally cached
				// verifier, or skip a user we have never seen. A user is
				// never stored without a verifier.
				existing, err := userRepo.GetByEmail(ctx, dto.Email)
				if err != nil && !errors.Is(err, common.ErrorNotFound) {
					return err
				}
				if existing == nil {
					s.log.Warn(ctx, "skipping new user without verifier", "email", dto.Email)
					report.Skipped = append(report.Skipped, SkippedUser{
						Email: dto.Email, ServerRoleID: dto.Role.RoleID, Reason: SkipMissingVerifier})
					continue
				}
				verifier = existing.PasswordVerifier
			}

			u := &models.User{
				ServerUserID:     sql.NullInt64{Int64: dto.UserID, Valid: true},
				FullName:         dto.FullName,
				Email:            dto.Email,
				PasswordVerifier: verifier,
				RoleLocalID:      localRoleID,
				LastUpdated:      dto.LastUpdated,
			}
			if _, err := userRepo.Upsert(ctx, u); err != nil {
				s.log.Warn(ctx, "skipping user after storage error", "email", dto.Email, "error", err)
				report.Skipped = append(report.Skipped, SkippedUser{
					Email: dto.Email, ServerRoleID: dto.Role.RoleID, Reason: SkipStorageError})
				continue
			}
			report.Users++
		}
		return nil
	})
}
