package models

import "time"

// ResourceType discriminates between the two shareable resource kinds.
type ResourceType string

const (
	ResourceFile   ResourceType = "file"
	ResourceFolder ResourceType = "folder"
)

// CollaboratorRole is an ordered capability set: editor > commenter > viewer.
type CollaboratorRole string

const (
	RoleViewer    CollaboratorRole = "viewer"
	RoleCommenter CollaboratorRole = "commenter"
	RoleEditor    CollaboratorRole = "editor"
)

var roleRank = map[CollaboratorRole]int{
	RoleViewer:    1,
	RoleCommenter: 2,
	RoleEditor:    3,
}

// Valid reports whether the role is one of the known values.
func (r CollaboratorRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Includes reports whether the role's capability set covers the required one.
func (r CollaboratorRole) Includes(required CollaboratorRole) bool {
	return roleRank[r] >= roleRank[required]
}

// Collaborator is a role grant for one user on one file or folder. A grant on
// a folder applies to all current and future descendants unless a more
// specific grant overrides it.
type Collaborator struct {
	ID           string           `db:"id" json:"id"`
	ResourceType ResourceType     `db:"resource_type" json:"resource_type"`
	ResourceID   string           `db:"resource_id" json:"resource_id"`
	UserID       string           `db:"user_id" json:"user_id"`
	Role         CollaboratorRole `db:"role" json:"role"`
	ExpiresAt    *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	GrantedBy    string           `db:"granted_by" json:"granted_by"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the grant has lapsed at the given instant.
func (c *Collaborator) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
