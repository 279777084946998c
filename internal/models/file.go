package models

import (
	"strings"
	"time"
)

// File is a stored file's metadata row. The bytes live in the blob store
// under StorageKey; this table never holds content.
type File struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	OriginalName  string     `db:"original_name" json:"original_name"`
	Size          int64      `db:"size" json:"size"`
	MimeType      string     `db:"mime_type" json:"mime_type"`
	StorageKey    string     `db:"storage_key" json:"-"`
	OwnerID       string     `db:"owner_id" json:"owner_id"`
	FolderID      *string    `db:"folder_id" json:"folder_id,omitempty"`
	IsPublic      bool       `db:"is_public" json:"is_public"`
	Starred       bool       `db:"starred" json:"starred"`
	Description   string     `db:"description" json:"description"`
	Tags          string     `db:"tags" json:"tags"`
	DownloadCount int64      `db:"download_count" json:"download_count"`
	TrashedAt     *time.Time `db:"trashed_at" json:"trashed_at,omitempty"`
	TrashBatchID  *string    `db:"trash_batch_id" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Trashed reports whether the file is in the trash.
func (f *File) Trashed() bool {
	return f.TrashedAt != nil
}

// TagList splits the comma-separated tags column.
func (f *File) TagList() []string {
	if f.Tags == "" {
		return nil
	}
	parts := strings.Split(f.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FileFilter captures filtering criteria for file listings.
type FileFilter struct {
	FolderID  *string
	Search    string
	Starred   *bool
	Page      int
	PageSize  int
}
