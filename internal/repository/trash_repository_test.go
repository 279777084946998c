package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivehub-api/internal/models"
)

func TestTrashRepositoryTrashFileStampsBatch(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewTrashRepository(db, NewShareRepository(db), NewCollaboratorRepository(db))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trashed_at, trash_batch_id FROM files")).
		WithArgs("file-1").
		WillReturnRows(sqlmock.NewRows([]string{"trashed_at", "trash_batch_id"}).AddRow(nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET trashed_at = $2, trash_batch_id = $3")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batchID, at, err := repo.TrashFile(context.Background(), "file-1")
	require.NoError(t, err)
	require.NotEmpty(t, batchID)
	require.False(t, at.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrashRepositoryTrashFileIdempotent(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewTrashRepository(db, NewShareRepository(db), NewCollaboratorRepository(db))
	earlier := time.Now().Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trashed_at, trash_batch_id FROM files")).
		WithArgs("file-1").
		WillReturnRows(sqlmock.NewRows([]string{"trashed_at", "trash_batch_id"}).AddRow(earlier, "batch-1"))
	mock.ExpectCommit()

	batchID, at, err := repo.TrashFile(context.Background(), "file-1")
	require.NoError(t, err)
	require.Equal(t, "batch-1", batchID)
	require.WithinDuration(t, earlier, at, time.Second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrashRepositoryTrashFolderCascade(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewTrashRepository(db, NewShareRepository(db), NewCollaboratorRepository(db))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trashed_at, trash_batch_id FROM folders")).
		WithArgs("folder-1").
		WillReturnRows(sqlmock.NewRows([]string{"trashed_at", "trash_batch_id"}).AddRow(nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("WITH RECURSIVE sub AS")).
		WithArgs("folder-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sub-1").AddRow("sub-2"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET trashed_at = $2")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET trashed_at = $2")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	batchID, _, err := repo.TrashFolderCascade(context.Background(), "folder-1")
	require.NoError(t, err)
	require.NotEmpty(t, batchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrashRepositoryPurgeFileReturnsStorageKey(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewTrashRepository(db, NewShareRepository(db), NewCollaboratorRepository(db))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT storage_key FROM files")).
		WithArgs("file-1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("user-1/blob-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM share_links WHERE file_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collaborators WHERE resource_type = $1 AND resource_id = ANY($2)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	key, err := repo.PurgeFile(context.Background(), "file-1")
	require.NoError(t, err)
	require.Equal(t, "user-1/blob-1", key)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrashRepositoryPurgeFolderCascadeCollectsKeys(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewTrashRepository(db, NewShareRepository(db), NewCollaboratorRepository(db))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT 1 FROM folders WHERE id = $1 FOR UPDATE")).
		WithArgs("folder-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WITH RECURSIVE sub AS")).
		WithArgs("folder-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sub-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, storage_key FROM files")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_key"}).
			AddRow("file-a", "user-1/a").
			AddRow("file-b", "user-1/b"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM share_links WHERE file_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM share_links WHERE folder_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collaborators WHERE resource_type = $1 AND resource_id = ANY($2)")).
		WithArgs(models.ResourceFile, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collaborators WHERE resource_type = $1 AND resource_id = ANY($2)")).
		WithArgs(models.ResourceFolder, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	keys, err := repo.PurgeFolderCascade(context.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, []string{"user-1/a", "user-1/b"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}
