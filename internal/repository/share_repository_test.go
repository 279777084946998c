package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivehub-api/internal/models"
)

func shareRowColumns() []string {
	return []string{"id", "token", "file_id", "folder_id", "permission", "password_hash", "expires_at", "max_downloads", "download_count", "view_count", "is_active", "owner_id", "created_at", "updated_at"}
}

func TestShareRepositoryCreateAndFindByToken(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO share_links")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fileID := "file-1"
	link := &models.ShareLink{
		Token:      "tok-abc",
		FileID:     &fileID,
		Permission: models.ShareView,
		IsActive:   true,
		OwnerID:    "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), link))
	require.NotEmpty(t, link.ID)

	rows := sqlmock.NewRows(shareRowColumns()).
		AddRow(link.ID, "tok-abc", fileID, nil, "view", nil, nil, 0, 0, 0, true, "user-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, token, file_id")).
		WithArgs("tok-abc").
		WillReturnRows(rows)

	found, err := repo.FindByToken(context.Background(), "tok-abc")
	require.NoError(t, err)
	require.Equal(t, link.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryConsumeDownload(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	rows := sqlmock.NewRows(shareRowColumns()).
		AddRow("link-1", "tok-abc", "file-1", nil, "view", nil, nil, 5, 3, 10, true, "user-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE share_links SET")).
		WillReturnRows(rows)

	link, err := repo.ConsumeDownload(context.Background(), "tok-abc")
	require.NoError(t, err)
	require.EqualValues(t, 3, link.DownloadCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryConsumeDownloadGated(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	// Conditional update matches no row when the link is inactive, expired,
	// or already at its cap.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE share_links SET")).
		WillReturnRows(sqlmock.NewRows(shareRowColumns()))

	_, err := repo.ConsumeDownload(context.Background(), "tok-abc")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryIncrementView(t *testing.T) {
	db, mock, cleanup := newFolderRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE share_links SET view_count = view_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementView(context.Background(), "tok-abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}
