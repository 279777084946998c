package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/drivehub-api/internal/models"
)

const fileColumns = `id, name, original_name, size, mime_type, storage_key, owner_id, folder_id, is_public, starred, description, tags, download_count, trashed_at, trash_batch_id, created_at, updated_at`

// FileRepository manages persistence for file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs a FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// FindByID fetches a file by ID.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// Create inserts a new file row.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	const query = `INSERT INTO files (id, name, original_name, size, mime_type, storage_key, owner_id, folder_id, is_public, starred, description, tags, download_count, trashed_at, trash_batch_id, created_at, updated_at)
        VALUES (:id, :name, :original_name, :size, :mime_type, :storage_key, :owner_id, :folder_id, :is_public, :starred, :description, :tags, :download_count, :trashed_at, :trash_batch_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// UpdateMeta persists the mutable metadata fields.
func (r *FileRepository) UpdateMeta(ctx context.Context, file *models.File) error {
	file.UpdatedAt = time.Now().UTC()
	const query = `UPDATE files SET name = :name, description = :description, tags = :tags, starred = :starred, is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// UpdateFolder relocates the file to another folder (nil = root).
func (r *FileRepository) UpdateFolder(ctx context.Context, id string, folderID *string) error {
	const query = `UPDATE files SET folder_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, folderID, time.Now().UTC()); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

// ListByFolder returns one page of live files in a folder (nil = root).
func (r *FileRepository) ListByFolder(ctx context.Context, ownerID string, folderID *string, filter models.ListChildrenFilter) ([]models.File, int, error) {
	conditions := []string{"owner_id = $1", "trashed_at IS NULL"}
	args := []interface{}{ownerID}

	if folderID == nil {
		conditions = append(conditions, "folder_id IS NULL")
	} else {
		args = append(args, *folderID)
		conditions = append(conditions, fmt.Sprintf("folder_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(original_name) LIKE $%d)", len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d`,
		fileColumns, where, size, offset)

	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM files WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}
	return files, total, nil
}

// IncrementDownload bumps the per-file download counter.
func (r *FileRepository) IncrementDownload(ctx context.Context, id string) error {
	const query = `UPDATE files SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment download: %w", err)
	}
	return nil
}
