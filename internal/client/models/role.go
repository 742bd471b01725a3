// Package models defines the rows cached by the local store and the wire
// shapes returned by the directory API.
package models

import "database/sql"

// Role is a cached directory role.
//
// LocalID is assigned by the local store on first insert and stays stable
// for the life of the record. ServerRoleID is the remote identifier once the
// role has been confirmed against the server; it is unique among all roles
// that have one.
type Role struct {
	LocalID      int64
	ServerRoleID sql.NullInt64
	Name         string
	Description  string
}
