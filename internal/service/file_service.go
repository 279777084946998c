package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type fileRepository interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
	Create(ctx context.Context, file *models.File) error
	UpdateMeta(ctx context.Context, file *models.File) error
	UpdateFolder(ctx context.Context, id string, folderID *string) error
	IncrementDownload(ctx context.Context, id string) error
}

type fileAuthorizer interface {
	AuthorizeFile(ctx context.Context, principal models.Principal, fileID string, action access.Action) (*models.File, error)
	AuthorizeFolder(ctx context.Context, principal models.Principal, folderID string, action access.Action) (*models.Folder, error)
}

type blobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key, filename string) (string, time.Time, error)
}

type statsRecorder interface {
	RecordUpload(ctx context.Context, userID string, bytes int64)
	RecordDownload(ctx context.Context, userID string)
}

// UploadFileRequest holds an incoming upload stream and its metadata.
type UploadFileRequest struct {
	Name        string
	Size        int64
	MimeType    string
	FolderID    *string
	Description string
	Tags        string
	Body        io.Reader
}

// UpdateFileRequest holds mutable file metadata. Nil fields are untouched.
type UpdateFileRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
	Tags        *string `json:"tags" validate:"omitempty,max=512"`
	Starred     *bool   `json:"starred"`
	IsPublic    *bool   `json:"is_public"`
}

// MoveFileRequest holds payload for moving a file. A nil folder moves it to
// the root.
type MoveFileRequest struct {
	FolderID *string `json:"folder_id"`
}

// DownloadTicket is a short-lived presigned URL for fetching file bytes.
type DownloadTicket struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileServiceConfig tunes upload limits.
type FileServiceConfig struct {
	MaxFileSizeBytes int64
}

// FileService handles file metadata and content use-cases. Bytes go straight
// to the blob store; the database only ever holds metadata.
type FileService struct {
	repo      fileRepository
	authz     fileAuthorizer
	blobs     blobStore
	stats     statsRecorder
	cfg       FileServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFileService constructs the file service.
func NewFileService(repo fileRepository, authz fileAuthorizer, blobs blobStore, stats statsRecorder, cfg FileServiceConfig, validate *validator.Validate, logger *zap.Logger) *FileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{repo: repo, authz: authz, blobs: blobs, stats: stats, cfg: cfg, validator: validate, logger: logger}
}

// Upload stores the stream in the blob store and records the metadata row.
// The stats rollup is bumped incrementally; a failed bump never fails the
// upload.
func (s *FileService) Upload(ctx context.Context, principal models.Principal, req UploadFileRequest) (*models.File, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	if req.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if s.cfg.MaxFileSizeBytes > 0 && req.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}

	ownerID := principal.UserID
	if req.FolderID != nil {
		folder, err := s.authz.AuthorizeFolder(ctx, principal, *req.FolderID, access.ActionWrite)
		if err != nil {
			return nil, err
		}
		ownerID = folder.OwnerID
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	storageKey := ownerID + "/" + uuid.NewString()
	if err := s.blobs.Upload(ctx, storageKey, req.Body, req.Size, mimeType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file content")
	}

	file := &models.File{
		Name:         name,
		OriginalName: name,
		Size:         req.Size,
		MimeType:     mimeType,
		StorageKey:   storageKey,
		OwnerID:      ownerID,
		FolderID:     req.FolderID,
		Description:  req.Description,
		Tags:         req.Tags,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		// Orphaned blob; remove it so storage does not leak.
		if delErr := s.blobs.Delete(ctx, storageKey); delErr != nil {
			s.logger.Warn("failed to delete orphaned blob", zap.String("storage_key", storageKey), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save file metadata")
	}

	s.stats.RecordUpload(ctx, ownerID, file.Size)
	s.logger.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("owner_id", ownerID),
		zap.Int64("size", file.Size))
	return file, nil
}

// Get returns file metadata if the principal may read it.
func (s *FileService) Get(ctx context.Context, principal models.Principal, id string) (*models.File, error) {
	return s.authz.AuthorizeFile(ctx, principal, id, access.ActionRead)
}

// Update applies partial metadata changes.
func (s *FileService) Update(ctx context.Context, principal models.Principal, id string, req UpdateFileRequest) (*models.File, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid file payload")
	}

	action := access.ActionWrite
	if req.Name != nil {
		action = access.ActionRename
	}
	file, err := s.authz.AuthorizeFile(ctx, principal, id, action)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file name must be non-empty")
		}
		file.Name = name
	}
	if req.Description != nil {
		file.Description = *req.Description
	}
	if req.Tags != nil {
		file.Tags = *req.Tags
	}
	if req.Starred != nil {
		file.Starred = *req.Starred
	}
	if req.IsPublic != nil {
		file.IsPublic = *req.IsPublic
	}

	if err := s.repo.UpdateMeta(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update file")
	}
	return file, nil
}

// Move reparents the file into another folder, or to the root.
func (s *FileService) Move(ctx context.Context, principal models.Principal, id string, req MoveFileRequest) (*models.File, error) {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionMove)
	if err != nil {
		return nil, err
	}
	if sameParent(file.FolderID, req.FolderID) {
		return file, nil
	}
	if req.FolderID != nil {
		if _, err := s.authz.AuthorizeFolder(ctx, principal, *req.FolderID, access.ActionWrite); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateFolder(ctx, file.ID, req.FolderID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move file")
	}
	file.FolderID = req.FolderID
	return file, nil
}

// Download issues a presigned URL and bumps the download counters.
func (s *FileService) Download(ctx context.Context, principal models.Principal, id string) (*DownloadTicket, error) {
	file, err := s.authz.AuthorizeFile(ctx, principal, id, access.ActionDownload)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.blobs.PresignDownload(ctx, file.StorageKey, file.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to presign download")
	}
	if err := s.repo.IncrementDownload(ctx, file.ID); err != nil {
		s.logger.Warn("failed to bump download count", zap.String("file_id", file.ID), zap.Error(err))
	}
	s.stats.RecordDownload(ctx, file.OwnerID)

	return &DownloadTicket{URL: url, FileName: file.Name, ExpiresAt: expiresAt}, nil
}
