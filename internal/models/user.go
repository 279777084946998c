package models

import "time"

// User represents an account stored in the users table. Ownership of files
// and folders is always a single user; sharing never transfers it.
type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	FullName      string    `db:"full_name" json:"full_name"`
	Admin         bool      `db:"admin" json:"admin"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Principal is the resolved caller of a request: an authenticated user or the
// anonymous share-link actor. Credential validation happens upstream; the
// core only ever sees this struct.
type Principal struct {
	UserID    string `json:"user_id"`
	Admin     bool   `json:"admin"`
	Anonymous bool   `json:"anonymous"`
}

// AnonymousPrincipal is the principal attached to public share-link requests.
var AnonymousPrincipal = Principal{Anonymous: true}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
