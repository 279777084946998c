package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type trashRepository interface {
	TrashFile(ctx context.Context, id string) (string, time.Time, error)
	TrashFolderCascade(ctx context.Context, id string) (string, time.Time, error)
	RestoreFile(ctx context.Context, id string, reparentToRoot bool) error
	RestoreFolderCascade(ctx context.Context, folder *models.Folder, newParentID *string, newPath string, cascade bool) error
	PurgeFile(ctx context.Context, id string) (string, error)
	PurgeFolderCascade(ctx context.Context, id string) ([]string, error)
	ListTrashedTopLevel(ctx context.Context, ownerID string) ([]models.Folder, []models.File, error)
}

type trashFolderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	ExistsByName(ctx context.Context, ownerID string, parentID *string, name, excludeID string) (bool, error)
}

type trashAuthorizer interface {
	AuthorizeFile(ctx context.Context, principal models.Principal, fileID string, action access.Action) (*models.File, error)
	AuthorizeFolder(ctx context.Context, principal models.Principal, folderID string, action access.Action) (*models.Folder, error)
}

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
}

type statsRecomputer interface {
	EnqueueRecompute(userID string)
}

// TrashSummary reports the outcome of a trash operation.
type TrashSummary struct {
	BatchID   string    `json:"batch_id"`
	TrashedAt time.Time `json:"trashed_at"`
}

// RestoreFolderRequest controls restore placement and depth.
type RestoreFolderRequest struct {
	// Cascade also restores descendants trashed in the same batch.
	Cascade bool `json:"cascade"`
}

// TrashContent is the trash listing: items whose parent is live or gone.
type TrashContent struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

// TrashService drives the soft-delete lifecycle. Trashing needs edit rights;
// restore and purge are owner-only, delegated to the access resolver.
type TrashService struct {
	repo    trashRepository
	folders trashFolderRepository
	authz   trashAuthorizer
	blobs   blobDeleter
	stats   statsRecomputer
	logger  *zap.Logger
}

// NewTrashService constructs the trash service.
func NewTrashService(repo trashRepository, folders trashFolderRepository, authz trashAuthorizer, blobs blobDeleter, stats statsRecomputer, logger *zap.Logger) *TrashService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrashService{repo: repo, folders: folders, authz: authz, blobs: blobs, stats: stats, logger: logger}
}

// TrashFile soft-deletes a file. Trashing an already-trashed file is a no-op
// returning its existing batch.
func (s *TrashService) TrashFile(ctx context.Context, principal models.Principal, id string) (*TrashSummary, error) {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionDelete)
	if err != nil {
		if isInvalidState(err) {
			// Already trashed; fetch the current batch instead of failing.
			return s.currentFileBatch(ctx, principal, id)
		}
		return nil, err
	}

	batchID, at, err := s.repo.TrashFile(ctx, file.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to trash file")
	}
	s.stats.EnqueueRecompute(file.OwnerID)
	s.logger.Info("file trashed", zap.String("file_id", file.ID), zap.String("batch_id", batchID))
	return &TrashSummary{BatchID: batchID, TrashedAt: at}, nil
}

// TrashFolder soft-deletes the folder and its whole live subtree under one
// batch.
func (s *TrashService) TrashFolder(ctx context.Context, principal models.Principal, id string) (*TrashSummary, error) {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionDelete)
	if err != nil {
		if isInvalidState(err) {
			return s.currentFolderBatch(ctx, principal, id)
		}
		return nil, err
	}

	batchID, at, err := s.repo.TrashFolderCascade(ctx, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to trash folder")
	}
	s.stats.EnqueueRecompute(folder.OwnerID)
	s.logger.Info("folder trashed", zap.String("folder_id", folder.ID), zap.String("batch_id", batchID))
	return &TrashSummary{BatchID: batchID, TrashedAt: at}, nil
}

// RestoreFile brings a file back. When its original folder is gone or still
// trashed, the file lands at the root instead.
func (s *TrashService) RestoreFile(ctx context.Context, principal models.Principal, id string) (*models.File, error) {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionRestore)
	if err != nil {
		return nil, err
	}
	if !file.Trashed() {
		return file, nil
	}

	reparent := false
	if file.FolderID != nil {
		parent, err := s.folders.FindByID(ctx, *file.FolderID)
		if err != nil {
			if err != sql.ErrNoRows {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent folder")
			}
			reparent = true
		} else if parent.Trashed() {
			reparent = true
		}
	}

	if err := s.repo.RestoreFile(ctx, file.ID, reparent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore file")
	}
	file.TrashedAt = nil
	file.TrashBatchID = nil
	if reparent {
		file.FolderID = nil
	}
	s.stats.EnqueueRecompute(file.OwnerID)
	s.logger.Info("file restored", zap.String("file_id", file.ID), zap.Bool("reparented", reparent))
	return file, nil
}

// RestoreFolder brings a folder back, optionally cascading to the rest of
// its trash batch. A missing or trashed original parent reparents the folder
// to the root; a sibling name collision at the landing spot is a conflict.
func (s *TrashService) RestoreFolder(ctx context.Context, principal models.Principal, id string, req RestoreFolderRequest) (*models.Folder, error) {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionRestore)
	if err != nil {
		return nil, err
	}
	if !folder.Trashed() {
		return folder, nil
	}

	newParentID := folder.ParentID
	newPath := folder.Path
	if folder.ParentID != nil {
		parent, err := s.folders.FindByID(ctx, *folder.ParentID)
		switch {
		case err == sql.ErrNoRows:
			newParentID = nil
			newPath = "/" + folder.Name
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent folder")
		case parent.Trashed():
			newParentID = nil
			newPath = "/" + folder.Name
		default:
			newPath = parent.Path + "/" + folder.Name
		}
	}

	exists, err := s.folders.ExistsByName(ctx, folder.OwnerID, newParentID, folder.Name, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check folder name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a folder with this name already exists at the restore destination")
	}

	if err := s.repo.RestoreFolderCascade(ctx, folder, newParentID, newPath, req.Cascade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore folder")
	}
	folder.TrashedAt = nil
	folder.TrashBatchID = nil
	folder.ParentID = newParentID
	folder.Path = newPath
	s.stats.EnqueueRecompute(folder.OwnerID)
	s.logger.Info("folder restored", zap.String("folder_id", folder.ID), zap.Bool("cascade", req.Cascade))
	return folder, nil
}

// PurgeFile permanently deletes a trashed file, its grants and links, and
// its blob. Purging something not in the trash is rejected.
func (s *TrashService) PurgeFile(ctx context.Context, principal models.Principal, id string) error {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionPurge)
	if err != nil {
		return err
	}
	if !file.Trashed() {
		return appErrors.Clone(appErrors.ErrInvalidState, "file must be in the trash before purging")
	}

	storageKey, err := s.repo.PurgeFile(ctx, file.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge file")
	}
	s.deleteBlobs(ctx, []string{storageKey})
	s.stats.EnqueueRecompute(file.OwnerID)
	s.logger.Info("file purged", zap.String("file_id", file.ID))
	return nil
}

// PurgeFolder permanently deletes a trashed folder subtree and every blob
// under it.
func (s *TrashService) PurgeFolder(ctx context.Context, principal models.Principal, id string) error {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionPurge)
	if err != nil {
		return err
	}
	if !folder.Trashed() {
		return appErrors.Clone(appErrors.ErrInvalidState, "folder must be in the trash before purging")
	}

	storageKeys, err := s.repo.PurgeFolderCascade(ctx, folder.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge folder")
	}
	s.deleteBlobs(ctx, storageKeys)
	s.stats.EnqueueRecompute(folder.OwnerID)
	s.logger.Info("folder purged", zap.String("folder_id", folder.ID), zap.Int("blobs", len(storageKeys)))
	return nil
}

// List returns the caller's trash view: trashed items whose parent is not
// itself trashed.
func (s *TrashService) List(ctx context.Context, principal models.Principal) (*TrashContent, error) {
	folders, files, err := s.repo.ListTrashedTopLevel(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trash")
	}
	return &TrashContent{Folders: folders, Files: files}, nil
}

// Empty purges everything in the caller's trash. Failures on individual
// items are logged and skipped so one bad row cannot wedge the whole sweep.
func (s *TrashService) Empty(ctx context.Context, principal models.Principal) error {
	folders, files, err := s.repo.ListTrashedTopLevel(ctx, principal.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trash")
	}

	for i := range folders {
		keys, err := s.repo.PurgeFolderCascade(ctx, folders[i].ID)
		if err != nil {
			s.logger.Error("failed to purge folder during empty", zap.String("folder_id", folders[i].ID), zap.Error(err))
			continue
		}
		s.deleteBlobs(ctx, keys)
	}
	for i := range files {
		key, err := s.repo.PurgeFile(ctx, files[i].ID)
		if err != nil {
			s.logger.Error("failed to purge file during empty", zap.String("file_id", files[i].ID), zap.Error(err))
			continue
		}
		s.deleteBlobs(ctx, []string{key})
	}

	s.stats.EnqueueRecompute(principal.UserID)
	s.logger.Info("trash emptied",
		zap.String("user_id", principal.UserID),
		zap.Int("folders", len(folders)),
		zap.Int("files", len(files)))
	return nil
}

// deleteBlobs best-effort removes purged content from the blob store. The
// metadata transaction already committed, so an S3 failure only leaks a blob
// and is worth a log line, not a rollback.
func (s *TrashService) deleteBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete blob", zap.String("storage_key", key), zap.Error(err))
		}
	}
}

func (s *TrashService) currentFileBatch(ctx context.Context, principal models.Principal, id string) (*TrashSummary, error) {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionRestore)
	if err != nil {
		return nil, err
	}
	if file.TrashedAt == nil || file.TrashBatchID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "inconsistent trash state")
	}
	return &TrashSummary{BatchID: *file.TrashBatchID, TrashedAt: *file.TrashedAt}, nil
}

func (s *TrashService) currentFolderBatch(ctx context.Context, principal models.Principal, id string) (*TrashSummary, error) {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionRestore)
	if err != nil {
		return nil, err
	}
	if folder.TrashedAt == nil || folder.TrashBatchID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "inconsistent trash state")
	}
	return &TrashSummary{BatchID: *folder.TrashBatchID, TrashedAt: *folder.TrashedAt}, nil
}

func isInvalidState(err error) bool {
	e := appErrors.FromError(err)
	return e != nil && e.Code == appErrors.ErrInvalidState.Code
}
