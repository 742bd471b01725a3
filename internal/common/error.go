// Package common defines shared constants and sentinel errors used across
// the directory client. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Authentication outcomes. ErrUnknownAccount means this email has never
	// completed an online login on this device, so there is nothing cached
	// to verify against; ErrInvalidCredentials means the account is cached
	// but the password does not match.
	ErrUnknownAccount     = errors.New("no local account, log in online first")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
