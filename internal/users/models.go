package users

import "time"

// User is an intercom account. IDs are small integers; they feed directly
// into private-call channel names, so they must be stable.
type User struct {
	ID       int    `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Role     string `json:"role" db:"role"`

	// PasswordHash is a bcrypt hash. Never serialize it.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
