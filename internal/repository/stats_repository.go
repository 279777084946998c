package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/drivehub-api/internal/models"
)

// StatsRepository maintains the per-user rollup rows.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs a StatsRepository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Get returns the rollup for a user, zero-valued when no row exists yet.
func (r *StatsRepository) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	const query = `SELECT user_id, file_count, storage_bytes, shared_file_count, download_count, updated_at
        FROM user_stats WHERE user_id = $1`
	var stats models.UserStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return &models.UserStats{UserID: userID, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	return &stats, nil
}

// ApplyDelta adjusts counters incrementally, creating the row on first use.
// Shared-file count is excluded: it depends on link state and is only ever
// recomputed.
func (r *StatsRepository) ApplyDelta(ctx context.Context, userID string, delta models.StatsDelta) error {
	const query = `INSERT INTO user_stats (user_id, file_count, storage_bytes, shared_file_count, download_count, updated_at)
        VALUES ($1, GREATEST($2, 0), GREATEST($3, 0), 0, GREATEST($4, 0), $5)
        ON CONFLICT (user_id) DO UPDATE SET
            file_count = GREATEST(user_stats.file_count + $2, 0),
            storage_bytes = GREATEST(user_stats.storage_bytes + $3, 0),
            download_count = GREATEST(user_stats.download_count + $4, 0),
            updated_at = $5`
	if _, err := r.db.ExecContext(ctx, query, userID, delta.Files, delta.Bytes, delta.Downloads, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}
	return nil
}

// Recompute rebuilds the rollup from source tables. This is the drift
// correction path; incremental counters can desync under partial failures.
func (r *StatsRepository) Recompute(ctx context.Context, userID string) (*models.UserStats, error) {
	const query = `INSERT INTO user_stats (user_id, file_count, storage_bytes, shared_file_count, download_count, updated_at)
        SELECT $1,
            COALESCE((SELECT COUNT(*) FROM files WHERE owner_id = $1 AND trashed_at IS NULL), 0),
            COALESCE((SELECT SUM(size) FROM files WHERE owner_id = $1 AND trashed_at IS NULL), 0),
            COALESCE((SELECT COUNT(*) FROM files f WHERE f.owner_id = $1 AND f.trashed_at IS NULL
                AND (f.is_public OR EXISTS (
                    SELECT 1 FROM share_links l WHERE l.file_id = f.id AND l.is_active
                      AND (l.expires_at IS NULL OR l.expires_at > $2)))), 0),
            COALESCE((SELECT SUM(download_count) FROM files WHERE owner_id = $1), 0),
            $2
        ON CONFLICT (user_id) DO UPDATE SET
            file_count = EXCLUDED.file_count,
            storage_bytes = EXCLUDED.storage_bytes,
            shared_file_count = EXCLUDED.shared_file_count,
            download_count = EXCLUDED.download_count,
            updated_at = EXCLUDED.updated_at
        RETURNING user_id, file_count, storage_bytes, shared_file_count, download_count, updated_at`
	var stats models.UserStats
	if err := r.db.GetContext(ctx, &stats, query, userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recompute user stats: %w", err)
	}
	return &stats, nil
}

// ActiveUserIDs returns every active account, for scheduled reconciliation.
func (r *StatsRepository) ActiveUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users WHERE active ORDER BY id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("active user ids: %w", err)
	}
	return ids, nil
}

// Overview aggregates totals across all users for the admin dashboard.
func (r *StatsRepository) Overview(ctx context.Context) (*models.AdminOverview, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM users WHERE active) AS total_users,
        (SELECT COUNT(*) FROM files WHERE trashed_at IS NULL) AS total_files,
        COALESCE((SELECT SUM(size) FROM files WHERE trashed_at IS NULL), 0) AS total_bytes,
        COALESCE((SELECT SUM(download_count) FROM files), 0) AS total_downloads,
        (SELECT COUNT(*) FROM share_links WHERE is_active) AS active_shares`
	var overview models.AdminOverview
	if err := r.db.GetContext(ctx, &overview, query); err != nil {
		return nil, fmt.Errorf("admin overview: %w", err)
	}
	return &overview, nil
}
