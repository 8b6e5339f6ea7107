package types

import "time"

// Member represents a registered chat participant.
// It carries the credential material used by the token scheme.
type Member struct {
	// ID is the unique identifier of the member.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the member.
	// It is immutable after registration.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the member's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AuthToken is the member's current opaque bearer token, or empty
	// when the member holds no token. Each login overwrites it, so at
	// most one token is valid per member at any time.
	AuthToken string `json:"-" db:"auth_token"`

	// CreatedAt is the timestamp when the member registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
