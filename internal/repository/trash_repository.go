package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivehub-api/internal/models"
)

// TrashRepository owns the soft-delete state machine's storage side. Cascades
// touch folders, files, share links, and collaborator grants together, so the
// transactions live here; the share and collaborator repositories contribute
// their own delete statements to the purge transactions.
type TrashRepository struct {
	db     *sqlx.DB
	shares *ShareRepository
	grants *CollaboratorRepository
}

// NewTrashRepository constructs a TrashRepository.
func NewTrashRepository(db *sqlx.DB, shares *ShareRepository, grants *CollaboratorRepository) *TrashRepository {
	return &TrashRepository{db: db, shares: shares, grants: grants}
}

// TrashFile soft-deletes a single file under a fresh batch. Trashing an
// already-trashed file returns its existing batch unchanged.
func (r *TrashRepository) TrashFile(ctx context.Context, id string) (string, time.Time, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("begin trash file: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current struct {
		TrashedAt    *time.Time `db:"trashed_at"`
		TrashBatchID *string    `db:"trash_batch_id"`
	}
	if err := tx.GetContext(ctx, &current, `SELECT trashed_at, trash_batch_id FROM files WHERE id = $1 FOR UPDATE`, id); err != nil {
		return "", time.Time{}, err
	}
	if current.TrashedAt != nil {
		batch := ""
		if current.TrashBatchID != nil {
			batch = *current.TrashBatchID
		}
		return batch, *current.TrashedAt, tx.Commit()
	}

	batchID := uuid.NewString()
	at := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE files SET trashed_at = $2, trash_batch_id = $3, updated_at = $2 WHERE id = $1`, id, at, batchID); err != nil {
		return "", time.Time{}, fmt.Errorf("trash file: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", time.Time{}, fmt.Errorf("commit trash file: %w", err)
	}
	return batchID, at, nil
}

// TrashFolderCascade soft-deletes the folder and every live descendant,
// stamping all of them with one batch id and one timestamp. Descendants that
// were already individually trashed keep their own earlier batch so their
// restore semantics survive. Idempotent on an already-trashed folder.
func (r *TrashRepository) TrashFolderCascade(ctx context.Context, id string) (string, time.Time, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("begin trash cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current struct {
		TrashedAt    *time.Time `db:"trashed_at"`
		TrashBatchID *string    `db:"trash_batch_id"`
	}
	if err := tx.GetContext(ctx, &current, `SELECT trashed_at, trash_batch_id FROM folders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return "", time.Time{}, err
	}
	if current.TrashedAt != nil {
		batch := ""
		if current.TrashBatchID != nil {
			batch = *current.TrashBatchID
		}
		return batch, *current.TrashedAt, tx.Commit()
	}

	folderIDs, err := descendantFolderIDs(ctx, tx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	folderIDs = append(folderIDs, id)

	batchID := uuid.NewString()
	at := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE folders SET trashed_at = $2, trash_batch_id = $3, updated_at = $2
        WHERE id = ANY($1) AND trashed_at IS NULL`, pq.Array(folderIDs), at, batchID); err != nil {
		return "", time.Time{}, fmt.Errorf("trash folders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE files SET trashed_at = $2, trash_batch_id = $3, updated_at = $2
        WHERE folder_id = ANY($1) AND trashed_at IS NULL`, pq.Array(folderIDs), at, batchID); err != nil {
		return "", time.Time{}, fmt.Errorf("trash folder files: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", time.Time{}, fmt.Errorf("commit trash cascade: %w", err)
	}
	return batchID, at, nil
}

// RestoreFile clears the trash state, optionally reparenting to root when the
// original folder is itself trashed or gone.
func (r *TrashRepository) RestoreFile(ctx context.Context, id string, reparentToRoot bool) error {
	query := `UPDATE files SET trashed_at = NULL, trash_batch_id = NULL, updated_at = $2 WHERE id = $1`
	if reparentToRoot {
		query = `UPDATE files SET trashed_at = NULL, trash_batch_id = NULL, folder_id = NULL, updated_at = $2 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore file: %w", err)
	}
	return nil
}

// RestoreFolderCascade restores the folder, rewriting its placement and path,
// and optionally un-trashes the descendants that share its trash batch.
// Descendants trashed under a different batch stay trashed.
func (r *TrashRepository) RestoreFolderCascade(ctx context.Context, folder *models.Folder, newParentID *string, newPath string, cascade bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE folders SET trashed_at = NULL, trash_batch_id = NULL, parent_id = $2, path = $3, updated_at = $4 WHERE id = $1`,
		folder.ID, newParentID, newPath, now); err != nil {
		return fmt.Errorf("restore folder: %w", err)
	}
	if newPath != folder.Path {
		if err := rewriteDescendantPaths(ctx, tx, folder.OwnerID, folder.Path, newPath, now); err != nil {
			return err
		}
	}

	if cascade && folder.TrashBatchID != nil {
		batch := *folder.TrashBatchID
		if _, err := tx.ExecContext(ctx, `UPDATE folders SET trashed_at = NULL, trash_batch_id = NULL, updated_at = $3
            WHERE trash_batch_id = $1 AND id <> $2`, batch, folder.ID, now); err != nil {
			return fmt.Errorf("restore batch folders: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE files SET trashed_at = NULL, trash_batch_id = NULL, updated_at = $2
            WHERE trash_batch_id = $1`, batch, now); err != nil {
			return fmt.Errorf("restore batch files: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore cascade: %w", err)
	}
	return nil
}

// PurgeFile permanently deletes the row plus its share links and grants, and
// returns the storage key so the caller can delete the blob.
func (r *TrashRepository) PurgeFile(ctx context.Context, id string) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin purge file: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var storageKey string
	if err := tx.GetContext(ctx, &storageKey, `SELECT storage_key FROM files WHERE id = $1 FOR UPDATE`, id); err != nil {
		return "", err
	}
	if err := r.shares.DeleteByFileIDs(ctx, tx, []string{id}); err != nil {
		return "", err
	}
	if err := r.grants.DeleteByResourceIDs(ctx, tx, models.ResourceFile, []string{id}); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return "", fmt.Errorf("purge file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit purge file: %w", err)
	}
	return storageKey, nil
}

// PurgeFolderCascade permanently deletes the folder, every descendant folder
// and file regardless of individual trash state, and all share links and
// grants referencing any of them. It returns the storage keys of every purged
// file for blob deletion.
func (r *TrashRepository) PurgeFolderCascade(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purge cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM folders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}

	folderIDs, err := descendantFolderIDs(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	folderIDs = append(folderIDs, id)

	var purged []struct {
		ID         string `db:"id"`
		StorageKey string `db:"storage_key"`
	}
	if err := tx.SelectContext(ctx, &purged, `SELECT id, storage_key FROM files WHERE folder_id = ANY($1)`, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("purge file rows: %w", err)
	}
	fileIDs := make([]string, 0, len(purged))
	storageKeys := make([]string, 0, len(purged))
	for _, row := range purged {
		fileIDs = append(fileIDs, row.ID)
		storageKeys = append(storageKeys, row.StorageKey)
	}

	if err := r.shares.DeleteByFileIDs(ctx, tx, fileIDs); err != nil {
		return nil, err
	}
	if err := r.shares.DeleteByFolderIDs(ctx, tx, folderIDs); err != nil {
		return nil, err
	}
	if err := r.grants.DeleteByResourceIDs(ctx, tx, models.ResourceFile, fileIDs); err != nil {
		return nil, err
	}
	if err := r.grants.DeleteByResourceIDs(ctx, tx, models.ResourceFolder, folderIDs); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE folder_id = ANY($1)`, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("purge files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ANY($1)`, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("purge folders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purge cascade: %w", err)
	}
	return storageKeys, nil
}

// ListTrashedTopLevel returns trashed folders and files whose parent is gone
// or not itself trashed. Items buried inside a trashed ancestor stay hidden
// behind it in the trash view.
func (r *TrashRepository) ListTrashedTopLevel(ctx context.Context, ownerID string) ([]models.Folder, []models.File, error) {
	const folderQuery = `SELECT f.id, f.name, f.color, f.owner_id, f.parent_id, f.path, f.trashed_at, f.trash_batch_id, f.created_at, f.updated_at,
        0 AS file_count, 0 AS folder_count
        FROM folders f
        LEFT JOIN folders p ON p.id = f.parent_id
        WHERE f.owner_id = $1 AND f.trashed_at IS NOT NULL
          AND (f.parent_id IS NULL OR p.id IS NULL OR p.trashed_at IS NULL)
        ORDER BY f.trashed_at DESC, f.id ASC`
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, folderQuery, ownerID); err != nil {
		return nil, nil, fmt.Errorf("list trashed folders: %w", err)
	}

	fileQuery := fmt.Sprintf(`SELECT %s FROM files f
        WHERE f.owner_id = $1 AND f.trashed_at IS NOT NULL
          AND (f.folder_id IS NULL OR NOT EXISTS (
                SELECT 1 FROM folders p WHERE p.id = f.folder_id AND p.trashed_at IS NOT NULL))
        ORDER BY f.trashed_at DESC, f.id ASC`, prefixColumns("f", fileColumns))
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, fileQuery, ownerID); err != nil {
		return nil, nil, fmt.Errorf("list trashed files: %w", err)
	}
	return folders, files, nil
}

func descendantFolderIDs(ctx context.Context, tx *sqlx.Tx, id string) ([]string, error) {
	const query = `WITH RECURSIVE sub AS (
        SELECT id FROM folders WHERE parent_id = $1
        UNION ALL
        SELECT f.id FROM folders f JOIN sub s ON f.parent_id = s.id
    )
    SELECT id FROM sub`
	var ids []string
	if err := tx.SelectContext(ctx, &ids, query, id); err != nil {
		return nil, fmt.Errorf("descendant folder ids: %w", err)
	}
	return ids, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
