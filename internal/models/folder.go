package models

import "time"

// Folder is a node in the parent-pointer tree. Path is a denormalized cache
// of slash-separated ancestor names, recomputed on rename and move; the
// parent chain is the source of truth.
type Folder struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Color        string     `db:"color" json:"color"`
	OwnerID      string     `db:"owner_id" json:"owner_id"`
	ParentID     *string    `db:"parent_id" json:"parent_id,omitempty"`
	Path         string     `db:"path" json:"path"`
	TrashedAt    *time.Time `db:"trashed_at" json:"trashed_at,omitempty"`
	TrashBatchID *string    `db:"trash_batch_id" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Derived counts, populated by list queries. Never stored.
	FileCount   int `db:"file_count" json:"file_count"`
	FolderCount int `db:"folder_count" json:"folder_count"`
}

// Trashed reports whether the folder is in the trash.
func (f *Folder) Trashed() bool {
	return f.TrashedAt != nil
}

// Breadcrumb is one entry of the root-to-folder ancestor chain.
type Breadcrumb struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Path string `db:"path" json:"path"`
}

// ListChildrenFilter captures paging and search for folder content listings.
type ListChildrenFilter struct {
	Search   string
	Page     int
	PageSize int
}

// FolderContent aggregates one page of a folder listing. The totals count
// every matching row, not just the page returned.
type FolderContent struct {
	Folder       *Folder      `json:"folder,omitempty"`
	Breadcrumbs  []Breadcrumb `json:"breadcrumbs,omitempty"`
	Subfolders   []Folder     `json:"subfolders"`
	Files        []File       `json:"files"`
	TotalFolders int          `json:"total_folders"`
	TotalFiles   int          `json:"total_files"`
}

// Pagination builds the envelope metadata for one page of this content.
func (c *FolderContent) Pagination(filter ListChildrenFilter) *Pagination {
	return &Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: c.TotalFolders + c.TotalFiles,
	}
}
