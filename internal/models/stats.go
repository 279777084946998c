package models

import "time"

// UserStats is the per-user rollup consumed by dashboard views. The row is
// derived, recomputable state: incremental deltas keep it warm and a full
// recompute path corrects drift.
type UserStats struct {
	UserID          string    `db:"user_id" json:"user_id"`
	FileCount       int64     `db:"file_count" json:"file_count"`
	StorageBytes    int64     `db:"storage_bytes" json:"storage_bytes"`
	SharedFileCount int64     `db:"shared_file_count" json:"shared_file_count"`
	DownloadCount   int64     `db:"download_count" json:"download_count"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StatsDelta is an incremental adjustment applied after a mutating event.
type StatsDelta struct {
	Files     int64
	Bytes     int64
	Downloads int64
}

// AdminOverview aggregates totals across all users for the admin dashboard.
type AdminOverview struct {
	TotalUsers     int64 `db:"total_users" json:"total_users"`
	TotalFiles     int64 `db:"total_files" json:"total_files"`
	TotalBytes     int64 `db:"total_bytes" json:"total_bytes"`
	TotalDownloads int64 `db:"total_downloads" json:"total_downloads"`
	ActiveShares   int64 `db:"active_shares" json:"active_shares"`
}
