package models

import "time"

// SharePermission bounds what an anonymous bearer of the link may do.
type SharePermission string

const (
	ShareView    SharePermission = "view"
	ShareComment SharePermission = "comment"
	ShareEdit    SharePermission = "edit"
)

// Valid reports whether the permission is a known value.
func (p SharePermission) Valid() bool {
	switch p {
	case ShareView, ShareComment, ShareEdit:
		return true
	}
	return false
}

// Role maps the link permission onto the collaborator capability ladder.
func (p SharePermission) Role() CollaboratorRole {
	switch p {
	case ShareEdit:
		return RoleEditor
	case ShareComment:
		return RoleCommenter
	default:
		return RoleViewer
	}
}

// ShareLink is a public, tokenized grant on exactly one file or folder.
// It becomes unusable when deactivated, expired, or download-capped;
// all three are evaluated lazily at access time.
type ShareLink struct {
	ID            string          `db:"id" json:"id"`
	Token         string          `db:"token" json:"token"`
	FileID        *string         `db:"file_id" json:"file_id,omitempty"`
	FolderID      *string         `db:"folder_id" json:"folder_id,omitempty"`
	Permission    SharePermission `db:"permission" json:"permission"`
	PasswordHash  *string         `db:"password_hash" json:"-"`
	ExpiresAt     *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	MaxDownloads  int             `db:"max_downloads" json:"max_downloads"`
	DownloadCount int             `db:"download_count" json:"download_count"`
	ViewCount     int             `db:"view_count" json:"view_count"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	OwnerID       string          `db:"owner_id" json:"owner_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// HasPassword reports whether the link is password protected.
func (l *ShareLink) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// Expired reports whether the link has lapsed at the given instant.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// CapReached reports whether the download cap has been consumed.
func (l *ShareLink) CapReached() bool {
	return l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads
}

// PublicShareInfo is the anonymous-facing projection of a resolved link.
// It never exposes the password hash or the owner's identity.
type PublicShareInfo struct {
	Token            string          `json:"token"`
	Permission       SharePermission `json:"permission"`
	RequiresPassword bool            `json:"requires_password"`
	File             *File           `json:"file,omitempty"`
	Folder           *Folder         `json:"folder,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
}
