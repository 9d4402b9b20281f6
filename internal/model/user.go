package model

import "time"

// Role is the closed set of account roles.  Any value read from storage or a
// token that is not one of the constants below is treated as RoleCustomer.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored or claimed role string onto the closed enum.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// User represents an application user record as stored in the
// `users` table.  PasswordHash never leaves the service layer; handlers
// render PublicUser instead.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name given at registration.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – customer or admin.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
}

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public strips the credential hash.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Identity is the authenticated caller decoded from an access token.
type Identity struct {
	UserID uint64
	Email  string
	Role   Role
}

// IsAdmin reports whether the identity may enter admin operations.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the signed token is stored.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	Revoked   bool      // refresh_tokens.revoked
	ExpiresAt time.Time // refresh_tokens.expires_at
}
