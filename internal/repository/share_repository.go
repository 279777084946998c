package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivehub-api/internal/models"
)

const shareColumns = `id, token, file_id, folder_id, permission, password_hash, expires_at, max_downloads, download_count, view_count, is_active, owner_id, created_at, updated_at`

// ShareRepository manages persistence for share links.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository constructs a ShareRepository.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create inserts a new share link.
func (r *ShareRepository) Create(ctx context.Context, link *models.ShareLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	const query = `INSERT INTO share_links (id, token, file_id, folder_id, permission, password_hash, expires_at, max_downloads, download_count, view_count, is_active, owner_id, created_at, updated_at)
        VALUES (:id, :token, :file_id, :folder_id, :permission, :password_hash, :expires_at, :max_downloads, :download_count, :view_count, :is_active, :owner_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create share link: %w", err)
	}
	return nil
}

// FindByToken fetches a link by its public token.
func (r *ShareRepository) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM share_links WHERE token = $1`, shareColumns)
	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		return nil, err
	}
	return &link, nil
}

// FindByID fetches a link by ID.
func (r *ShareRepository) FindByID(ctx context.Context, id string) (*models.ShareLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM share_links WHERE id = $1`, shareColumns)
	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByOwner returns all links created by the user, newest first.
func (r *ShareRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM share_links WHERE owner_id = $1 ORDER BY created_at DESC, id ASC`, shareColumns)
	var links []models.ShareLink
	if err := r.db.SelectContext(ctx, &links, query, ownerID); err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	return links, nil
}

// Update persists the mutable link settings.
func (r *ShareRepository) Update(ctx context.Context, link *models.ShareLink) error {
	link.UpdatedAt = time.Now().UTC()
	const query = `UPDATE share_links SET permission = :permission, password_hash = :password_hash, expires_at = :expires_at, max_downloads = :max_downloads, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("update share link: %w", err)
	}
	return nil
}

// Delete removes the link permanently.
func (r *ShareRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM share_links WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete share link: %w", err)
	}
	return nil
}

// ConsumeDownload atomically increments the download counter, deactivating
// the link in the same statement when the increment reaches the cap. It
// returns sql.ErrNoRows when the link is missing or already gated, so two
// concurrent downloads against a near-exhausted link cannot both pass.
func (r *ShareRepository) ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	query := fmt.Sprintf(`UPDATE share_links SET
            download_count = download_count + 1,
            is_active = CASE WHEN max_downloads > 0 AND download_count + 1 >= max_downloads THEN FALSE ELSE is_active END,
            updated_at = $2
        WHERE token = $1
          AND is_active = TRUE
          AND (expires_at IS NULL OR expires_at > $2)
          AND (max_downloads = 0 OR download_count < max_downloads)
        RETURNING %s`, shareColumns)

	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, token, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &link, nil
}

// IncrementView bumps the landing-page view counter.
func (r *ShareRepository) IncrementView(ctx context.Context, token string) error {
	const query = `UPDATE share_links SET view_count = view_count + 1, updated_at = $2 WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment view: %w", err)
	}
	return nil
}

// DeleteByFileIDs removes links pointing at purged files.
func (r *ShareRepository) DeleteByFileIDs(ctx context.Context, tx *sqlx.Tx, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM share_links WHERE file_id = ANY($1)`
	if _, err := tx.ExecContext(ctx, query, pq.Array(fileIDs)); err != nil {
		return fmt.Errorf("delete file share links: %w", err)
	}
	return nil
}

// DeleteByFolderIDs removes links pointing at purged folders.
func (r *ShareRepository) DeleteByFolderIDs(ctx context.Context, tx *sqlx.Tx, folderIDs []string) error {
	if len(folderIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM share_links WHERE folder_id = ANY($1)`
	if _, err := tx.ExecContext(ctx, query, pq.Array(folderIDs)); err != nil {
		return fmt.Errorf("delete folder share links: %w", err)
	}
	return nil
}
