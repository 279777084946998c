package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/drivehub-api/internal/models"
)

const folderColumns = `id, name, color, owner_id, parent_id, path, trashed_at, trash_batch_id, created_at, updated_at`

// FolderRepository manages persistence for the folder tree.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository constructs a FolderRepository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// FindByID fetches a folder by ID.
func (r *FolderRepository) FindByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE id = $1`, folderColumns)
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, query, id); err != nil {
		return nil, err
	}
	return &folder, nil
}

// ExistsByName checks for a live sibling folder with the same name,
// optionally excluding an ID (used by rename).
func (r *FolderRepository) ExistsByName(ctx context.Context, ownerID string, parentID *string, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM folders WHERE owner_id = $1 AND LOWER(name) = LOWER($2) AND trashed_at IS NULL`
	args := []interface{}{ownerID, name}
	if parentID == nil {
		query += " AND parent_id IS NULL"
	} else {
		args = append(args, *parentID)
		query += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check folder name: %w", err)
	}
	return true, nil
}

// Create inserts a new folder.
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = now
	const query = `INSERT INTO folders (id, name, color, owner_id, parent_id, path, trashed_at, trash_batch_id, created_at, updated_at)
        VALUES (:id, :name, :color, :owner_id, :parent_id, :path, :trashed_at, :trash_batch_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, folder); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

// ListChildren returns one page of subfolders under the parent (nil = root)
// with derived file/subfolder counts, plus the total subfolder count.
func (r *FolderRepository) ListChildren(ctx context.Context, ownerID string, parentID *string, filter models.ListChildrenFilter) ([]models.Folder, int, error) {
	conditions := []string{"f.owner_id = $1", "f.trashed_at IS NULL"}
	args := []interface{}{ownerID}

	if parentID == nil {
		conditions = append(conditions, "f.parent_id IS NULL")
	} else {
		args = append(args, *parentID)
		conditions = append(conditions, fmt.Sprintf("f.parent_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(f.name) LIKE $%d", len(args)))
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

	query := fmt.Sprintf(`SELECT f.id, f.name, f.color, f.owner_id, f.parent_id, f.path, f.trashed_at, f.trash_batch_id, f.created_at, f.updated_at,
        (SELECT COUNT(*) FROM files fi WHERE fi.folder_id = f.id AND fi.trashed_at IS NULL) AS file_count,
        (SELECT COUNT(*) FROM folders sf WHERE sf.parent_id = f.id AND sf.trashed_at IS NULL) AS folder_count
        FROM folders f WHERE %s ORDER BY f.created_at DESC, f.id ASC LIMIT %d OFFSET %d`, where, size, offset)

	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subfolders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM folders f WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subfolders: %w", err)
	}
	return folders, total, nil
}

// Breadcrumbs returns the root-to-folder chain inclusive.
func (r *FolderRepository) Breadcrumbs(ctx context.Context, id string) ([]models.Breadcrumb, error) {
	const query = `WITH RECURSIVE chain AS (
        SELECT id, name, path, parent_id, 0 AS depth FROM folders WHERE id = $1
        UNION ALL
        SELECT f.id, f.name, f.path, f.parent_id, c.depth + 1 FROM folders f
        JOIN chain c ON f.id = c.parent_id
    )
    SELECT id, name, path FROM chain ORDER BY depth DESC`
	var crumbs []models.Breadcrumb
	if err := r.db.SelectContext(ctx, &crumbs, query, id); err != nil {
		return nil, fmt.Errorf("breadcrumbs: %w", err)
	}
	return crumbs, nil
}

// AncestorIDs returns folder IDs from the immediate parent toward root. The
// starting folder itself is excluded.
func (r *FolderRepository) AncestorIDs(ctx context.Context, id string) ([]string, error) {
	const query = `WITH RECURSIVE chain AS (
        SELECT id, parent_id, 0 AS depth FROM folders WHERE id = $1
        UNION ALL
        SELECT f.id, f.parent_id, c.depth + 1 FROM folders f
        JOIN chain c ON f.id = c.parent_id
    )
    SELECT id FROM chain WHERE depth > 0 ORDER BY depth ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, id); err != nil {
		return nil, fmt.Errorf("ancestor ids: %w", err)
	}
	return ids, nil
}

// RenameTree renames the folder and rewrites the cached paths of every
// descendant in one transaction.
func (r *FolderRepository) RenameTree(ctx context.Context, id, name, oldPath, newPath string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var ownerID string
	if err := tx.GetContext(ctx, &ownerID, `SELECT owner_id FROM folders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock folder: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE folders SET name = $2, path = $3, updated_at = $4 WHERE id = $1`, id, name, newPath, now); err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	if err := rewriteDescendantPaths(ctx, tx, ownerID, oldPath, newPath, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}
	return nil
}

// MoveTree reparents the folder and rewrites the cached paths of every
// descendant in one transaction. Cycle validation happens in the service
// before the move; the row lock keeps concurrent moves of the same folder
// from interleaving.
func (r *FolderRepository) MoveTree(ctx context.Context, id string, newParentID *string, oldPath, newPath string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var ownerID string
	if err := tx.GetContext(ctx, &ownerID, `SELECT owner_id FROM folders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock folder: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE folders SET parent_id = $2, path = $3, updated_at = $4 WHERE id = $1`, id, newParentID, newPath, now); err != nil {
		return fmt.Errorf("move folder: %w", err)
	}
	if err := rewriteDescendantPaths(ctx, tx, ownerID, oldPath, newPath, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move: %w", err)
	}
	return nil
}

// rewriteDescendantPaths swaps the path prefix on every folder under oldPath.
// Paths are only unique per owner, so the rewrite is scoped to one owner's
// tree. LEFT + char_length keeps the prefix match exact: no LIKE
// metacharacter surprises from % or _ in folder names, and the splice offset
// is computed in SQL characters rather than Go bytes.
func rewriteDescendantPaths(ctx context.Context, tx *sqlx.Tx, ownerID, oldPath, newPath string, now time.Time) error {
	const query = `UPDATE folders SET path = $3 || SUBSTRING(path FROM char_length($2) + 1), updated_at = $4
        WHERE owner_id = $1 AND LEFT(path, char_length($2) + 1) = $2 || '/'`
	if _, err := tx.ExecContext(ctx, query, ownerID, oldPath, newPath, now); err != nil {
		return fmt.Errorf("rewrite descendant paths: %w", err)
	}
	return nil
}
