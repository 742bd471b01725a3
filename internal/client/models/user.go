package models

import "database/sql"

// User is a cached directory user. Email is the natural key used for
// reconciliation: it is guaranteed present at every entry point (login,
// sync) whereas a server identifier may not yet be known to every caller.
//
// PasswordVerifier is a one-way bcrypt verifier of the user's password; it
// is what offline login checks against, and a user is never persisted
// without one. RoleName is filled by joined reads for display and never
// persisted itself.
type User struct {
	LocalID          int64
	ServerUserID     sql.NullInt64
	FullName         string
	Email            string
	PasswordVerifier string
	RoleLocalID      int64
	LastUpdated      int64 // server-supplied, epoch milliseconds
	RoleName         string
}
