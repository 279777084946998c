package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type mockTrashRepo struct {
	batchID        string
	trashedFiles   []string
	trashedFolders []string
	restoredFiles  map[string]bool // id -> reparented
	restoreCalls   []restoreCall
	purgedFiles    []string
	purgedFolders  []string
	fileKeys       map[string]string
	folderKeys     map[string][]string
	topFolders     []models.Folder
	topFiles       []models.File
}

type restoreCall struct {
	folderID    string
	newParentID *string
	newPath     string
	cascade     bool
}

func (m *mockTrashRepo) TrashFile(ctx context.Context, id string) (string, time.Time, error) {
	m.trashedFiles = append(m.trashedFiles, id)
	return m.batchID, time.Now().UTC(), nil
}

func (m *mockTrashRepo) TrashFolderCascade(ctx context.Context, id string) (string, time.Time, error) {
	m.trashedFolders = append(m.trashedFolders, id)
	return m.batchID, time.Now().UTC(), nil
}

func (m *mockTrashRepo) RestoreFile(ctx context.Context, id string, reparentToRoot bool) error {
	if m.restoredFiles == nil {
		m.restoredFiles = make(map[string]bool)
	}
	m.restoredFiles[id] = reparentToRoot
	return nil
}

func (m *mockTrashRepo) RestoreFolderCascade(ctx context.Context, folder *models.Folder, newParentID *string, newPath string, cascade bool) error {
	m.restoreCalls = append(m.restoreCalls, restoreCall{folderID: folder.ID, newParentID: newParentID, newPath: newPath, cascade: cascade})
	return nil
}

func (m *mockTrashRepo) PurgeFile(ctx context.Context, id string) (string, error) {
	m.purgedFiles = append(m.purgedFiles, id)
	return m.fileKeys[id], nil
}

func (m *mockTrashRepo) PurgeFolderCascade(ctx context.Context, id string) ([]string, error) {
	m.purgedFolders = append(m.purgedFolders, id)
	return m.folderKeys[id], nil
}

func (m *mockTrashRepo) ListTrashedTopLevel(ctx context.Context, ownerID string) ([]models.Folder, []models.File, error) {
	return m.topFolders, m.topFiles, nil
}

func trashFixture() (*TrashService, *mockTrashRepo, *mockFolderRepo, *mockAuthorizer, *stubBlobs, *mockStatsSink) {
	repo := &mockTrashRepo{batchID: "batch-1", fileKeys: map[string]string{}, folderKeys: map[string][]string{}}
	folders := &mockFolderRepo{existing: map[string]string{}}
	authz := &mockAuthorizer{files: map[string]*models.File{}, folders: map[string]*models.Folder{}}
	blobs := &stubBlobs{}
	stats := &mockStatsSink{}
	svc := NewTrashService(repo, folders, authz, blobs, stats, zap.NewNop())
	return svc, repo, folders, authz, blobs, stats
}

func TestTrashServiceTrashFolderCascades(t *testing.T) {
	svc, repo, _, authz, _, stats := trashFixture()
	authz.folders["d1"] = &models.Folder{ID: "d1", Name: "Docs", OwnerID: "u1", Path: "/Docs"}

	summary, err := svc.TrashFolder(context.Background(), models.Principal{UserID: "u1"}, "d1")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", summary.BatchID)
	assert.Equal(t, []string{"d1"}, repo.trashedFolders)
	assert.Equal(t, []string{"u1"}, stats.recomputes)
}

func TestTrashServiceRestoreFileReparentsWhenParentTrashed(t *testing.T) {
	svc, repo, folders, authz, _, _ := trashFixture()
	folderID := "gone"
	trashedAt := time.Now().Add(-time.Hour)
	batch := "batch-1"
	authz.files["f1"] = &models.File{ID: "f1", Name: "a.txt", OwnerID: "u1", FolderID: &folderID, TrashedAt: &trashedAt, TrashBatchID: &batch}
	folders.folders = map[string]models.Folder{
		"gone": {ID: "gone", Name: "Old", OwnerID: "u1", Path: "/Old", TrashedAt: &trashedAt},
	}

	file, err := svc.RestoreFile(context.Background(), models.Principal{UserID: "u1"}, "f1")
	require.NoError(t, err)
	assert.Nil(t, file.FolderID)
	assert.Nil(t, file.TrashedAt)
	assert.True(t, repo.restoredFiles["f1"])
}

func TestTrashServiceRestoreFileKeepsLiveParent(t *testing.T) {
	svc, repo, folders, authz, _, _ := trashFixture()
	folderID := "live"
	trashedAt := time.Now().Add(-time.Hour)
	batch := "batch-1"
	authz.files["f1"] = &models.File{ID: "f1", Name: "a.txt", OwnerID: "u1", FolderID: &folderID, TrashedAt: &trashedAt, TrashBatchID: &batch}
	folders.folders = map[string]models.Folder{
		"live": {ID: "live", Name: "Okay", OwnerID: "u1", Path: "/Okay"},
	}

	file, err := svc.RestoreFile(context.Background(), models.Principal{UserID: "u1"}, "f1")
	require.NoError(t, err)
	require.NotNil(t, file.FolderID)
	assert.Equal(t, "live", *file.FolderID)
	assert.False(t, repo.restoredFiles["f1"])
}

func TestTrashServiceRestoreFolderReparentsToRootWhenParentGone(t *testing.T) {
	svc, repo, _, authz, _, _ := trashFixture()
	parentID := "vanished"
	trashedAt := time.Now().Add(-time.Hour)
	batch := "batch-1"
	authz.folders["d1"] = &models.Folder{ID: "d1", Name: "Deep", OwnerID: "u1", Path: "/Gone/Deep", ParentID: &parentID, TrashedAt: &trashedAt, TrashBatchID: &batch}

	folder, err := svc.RestoreFolder(context.Background(), models.Principal{UserID: "u1"}, "d1", RestoreFolderRequest{Cascade: true})
	require.NoError(t, err)
	assert.Nil(t, folder.ParentID)
	assert.Equal(t, "/Deep", folder.Path)
	require.Equal(t, 1, len(repo.restoreCalls))
	assert.True(t, repo.restoreCalls[0].cascade)
	assert.Equal(t, "/Deep", repo.restoreCalls[0].newPath)
}

func TestTrashServiceRestoreFolderNameCollision(t *testing.T) {
	svc, repo, folders, authz, _, _ := trashFixture()
	trashedAt := time.Now().Add(-time.Hour)
	batch := "batch-1"
	authz.folders["d1"] = &models.Folder{ID: "d1", Name: "Reports", OwnerID: "u1", Path: "/Reports", TrashedAt: &trashedAt, TrashBatchID: &batch}
	folders.existing["/Reports"] = "newer"

	_, err := svc.RestoreFolder(context.Background(), models.Principal{UserID: "u1"}, "d1", RestoreFolderRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, len(repo.restoreCalls))
}

func TestTrashServicePurgeFileRequiresTrashedState(t *testing.T) {
	svc, _, _, authz, _, _ := trashFixture()
	authz.files["f1"] = &models.File{ID: "f1", Name: "live.txt", OwnerID: "u1"}

	err := svc.PurgeFile(context.Background(), models.Principal{UserID: "u1"}, "f1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestTrashServicePurgeFolderDeletesBlobs(t *testing.T) {
	svc, repo, _, authz, blobs, stats := trashFixture()
	trashedAt := time.Now().Add(-time.Hour)
	authz.folders["d1"] = &models.Folder{ID: "d1", Name: "Docs", OwnerID: "u1", Path: "/Docs", TrashedAt: &trashedAt}
	repo.folderKeys["d1"] = []string{"u1/k1", "u1/k2"}

	err := svc.PurgeFolder(context.Background(), models.Principal{UserID: "u1"}, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, repo.purgedFolders)
	assert.Equal(t, []string{"u1/k1", "u1/k2"}, blobs.deleted)
	assert.Equal(t, []string{"u1"}, stats.recomputes)
}

func TestTrashServiceEmptyPurgesEverything(t *testing.T) {
	svc, repo, _, _, blobs, _ := trashFixture()
	trashedAt := time.Now().Add(-time.Hour)
	repo.topFolders = []models.Folder{{ID: "d1", OwnerID: "u1", TrashedAt: &trashedAt}}
	repo.topFiles = []models.File{{ID: "f1", OwnerID: "u1", TrashedAt: &trashedAt}}
	repo.folderKeys["d1"] = []string{"u1/k1"}
	repo.fileKeys["f1"] = "u1/k2"

	err := svc.Empty(context.Background(), models.Principal{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, repo.purgedFolders)
	assert.Equal(t, []string{"f1"}, repo.purgedFiles)
	assert.ElementsMatch(t, []string{"u1/k1", "u1/k2"}, blobs.deleted)
}
