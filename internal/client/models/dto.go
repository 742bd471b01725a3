package models

// RoleDTO is a role as returned by the directory API.
type RoleDTO struct {
	RoleID      int64  `json:"roleId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserDTO is a user as returned by the directory API. PasswordVerifier is
// optional: the server only shares it with trusted device clients.
type UserDTO struct {
	UserID           int64   `json:"userId"`
	FullName         string  `json:"fullName"`
	Email            string  `json:"email"`
	Role             RoleDTO `json:"role"`
	PasswordVerifier string  `json:"passwordVerifier,omitempty"`
	LastUpdated      int64   `json:"lastUpdated"`
}

// LoginResult is the payload of a successful login call.
type LoginResult struct {
	Token     string  `json:"token"`
	ExpiresIn int64   `json:"expiresIn"` // seconds until the token expires
	User      UserDTO `json:"user"`
}
