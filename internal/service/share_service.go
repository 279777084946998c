package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/token"
)

type shareRepository interface {
	Create(ctx context.Context, link *models.ShareLink) error
	FindByToken(ctx context.Context, token string) (*models.ShareLink, error)
	FindByID(ctx context.Context, id string) (*models.ShareLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error)
	Update(ctx context.Context, link *models.ShareLink) error
	Delete(ctx context.Context, id string) error
	ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error)
	IncrementView(ctx context.Context, token string) error
}

type shareFolderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	AncestorIDs(ctx context.Context, id string) ([]string, error)
	ListChildren(ctx context.Context, ownerID string, parentID *string, filter models.ListChildrenFilter) ([]models.Folder, int, error)
}

type shareFileRepository interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
	ListByFolder(ctx context.Context, ownerID string, folderID *string, filter models.ListChildrenFilter) ([]models.File, int, error)
	IncrementDownload(ctx context.Context, id string) error
}

type shareAuthorizer interface {
	AuthorizeFile(ctx context.Context, principal models.Principal, fileID string, action access.Action) (*models.File, error)
	AuthorizeFolder(ctx context.Context, principal models.Principal, folderID string, action access.Action) (*models.Folder, error)
}

// CreateShareRequest holds payload for minting a share link. Exactly one of
// FileID and FolderID must be set.
type CreateShareRequest struct {
	FileID       *string                `json:"file_id"`
	FolderID     *string                `json:"folder_id"`
	Permission   models.SharePermission `json:"permission" validate:"required"`
	Password     string                 `json:"password"`
	ExpiresAt    *time.Time             `json:"expires_at"`
	MaxDownloads int                    `json:"max_downloads" validate:"min=0"`
}

// UpdateShareRequest holds partial share-link updates. Nil fields are
// untouched; an empty Password string removes protection.
type UpdateShareRequest struct {
	Permission   *models.SharePermission `json:"permission"`
	Password     *string                 `json:"password"`
	ExpiresAt    *time.Time              `json:"expires_at"`
	MaxDownloads *int                    `json:"max_downloads"`
	IsActive     *bool                   `json:"is_active"`
}

// ShareServiceConfig tunes link minting and password hashing.
type ShareServiceConfig struct {
	DefaultTTL    time.Duration
	BcryptCost    int
	PublicBaseURL string
}

// ShareService mints and resolves tokenized public links. Expiry, the
// download cap, and deactivation are all checked lazily at resolve time, so
// no background sweeper is needed.
type ShareService struct {
	repo      shareRepository
	folders   shareFolderRepository
	files     shareFileRepository
	authz     shareAuthorizer
	blobs     blobStore
	stats     statsRecorder
	cfg       ShareServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewShareService constructs the share service.
func NewShareService(repo shareRepository, folders shareFolderRepository, files shareFileRepository, authz shareAuthorizer, blobs blobStore, stats statsRecorder, cfg ShareServiceConfig, validate *validator.Validate, logger *zap.Logger) *ShareService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &ShareService{repo: repo, folders: folders, files: files, authz: authz, blobs: blobs, stats: stats, cfg: cfg, validator: validate, logger: logger}
}

// Create mints a link on a file or folder the caller may share.
func (s *ShareService) Create(ctx context.Context, principal models.Principal, req CreateShareRequest) (*models.ShareLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid share payload")
	}
	if (req.FileID == nil) == (req.FolderID == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of file_id and folder_id must be set")
	}
	if !req.Permission.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown share permission")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiry must be in the future")
	}

	var ownerID string
	if req.FileID != nil {
		file, err := s.authz.AuthorizeFile(ctx, principal, *req.FileID, access.ActionShare)
		if err != nil {
			return nil, err
		}
		ownerID = file.OwnerID
	} else {
		folder, err := s.authz.AuthorizeFolder(ctx, principal, *req.FolderID, access.ActionShare)
		if err != nil {
			return nil, err
		}
		ownerID = folder.OwnerID
	}

	tok, err := token.New()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token")
	}

	link := &models.ShareLink{
		Token:        tok,
		FileID:       req.FileID,
		FolderID:     req.FolderID,
		Permission:   req.Permission,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
		IsActive:     true,
		OwnerID:      ownerID,
	}
	if link.ExpiresAt == nil && s.cfg.DefaultTTL > 0 {
		expires := time.Now().UTC().Add(s.cfg.DefaultTTL)
		link.ExpiresAt = &expires
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}

	if err := s.repo.Create(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create share link")
	}
	s.logger.Info("share link created",
		zap.String("share_id", link.ID),
		zap.String("owner_id", ownerID),
		zap.String("permission", string(link.Permission)))
	return link, nil
}

// List returns all links owned by the caller.
func (s *ShareService) List(ctx context.Context, principal models.Principal) ([]models.ShareLink, error) {
	links, err := s.repo.ListByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list share links")
	}
	return links, nil
}

// Update applies partial changes to a link owned by the caller.
func (s *ShareService) Update(ctx context.Context, principal models.Principal, id string, req UpdateShareRequest) (*models.ShareLink, error) {
	link, err := s.ownedLink(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if req.Permission != nil {
		if !req.Permission.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown share permission")
		}
		link.Permission = *req.Permission
	}
	if req.Password != nil {
		if *req.Password == "" {
			link.PasswordHash = nil
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.cfg.BcryptCost)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
			}
			hashed := string(hash)
			link.PasswordHash = &hashed
		}
	}
	if req.ExpiresAt != nil {
		link.ExpiresAt = req.ExpiresAt
	}
	if req.MaxDownloads != nil {
		if *req.MaxDownloads < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_downloads must not be negative")
		}
		link.MaxDownloads = *req.MaxDownloads
	}
	if req.IsActive != nil {
		link.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update share link")
	}
	return link, nil
}

// Delete removes a link owned by the caller. The underlying resource is
// untouched.
func (s *ShareService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if _, err := s.ownedLink(ctx, principal, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete share link")
	}
	return nil
}

// PublicURL renders the anonymous-facing URL for a link.
func (s *ShareService) PublicURL(link *models.ShareLink) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	return base + "/s/" + link.Token
}

// ResolvePublic validates a token for anonymous access and returns the
// shared resource. Detailed denial reasons are logged but collapsed in the
// response so the token probe surface stays small.
func (s *ShareService) ResolvePublic(ctx context.Context, tok, password string) (*models.PublicShareInfo, error) {
	link, err := s.guardedLink(ctx, tok, password)
	if err != nil {
		return nil, err
	}

	info := &models.PublicShareInfo{
		Token:            link.Token,
		Permission:       link.Permission,
		RequiresPassword: link.HasPassword(),
		ExpiresAt:        link.ExpiresAt,
	}
	if link.FileID != nil {
		file, err := s.files.FindByID(ctx, *link.FileID)
		if err != nil {
			return nil, s.missingTarget(tok, err)
		}
		if file.Trashed() {
			return nil, s.denied(tok, "target file is trashed")
		}
		info.File = file
	} else if link.FolderID != nil {
		folder, err := s.folders.FindByID(ctx, *link.FolderID)
		if err != nil {
			return nil, s.missingTarget(tok, err)
		}
		if folder.Trashed() {
			return nil, s.denied(tok, "target folder is trashed")
		}
		info.Folder = folder
	}

	if err := s.repo.IncrementView(ctx, tok); err != nil {
		s.logger.Warn("failed to bump view count", zap.String("token", tok), zap.Error(err))
	}
	return info, nil
}

// BrowsePublic lists a folder reachable through a folder link. An empty
// folderID browses the shared root; anything else must live inside the
// shared subtree.
func (s *ShareService) BrowsePublic(ctx context.Context, tok, password, folderID string, filter models.ListChildrenFilter) (*models.FolderContent, error) {
	link, err := s.guardedLink(ctx, tok, password)
	if err != nil {
		return nil, err
	}
	if link.FolderID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "link does not target a folder")
	}

	targetID := *link.FolderID
	if folderID != "" && folderID != targetID {
		inside, err := s.insideSubtree(ctx, folderID, *link.FolderID)
		if err != nil {
			return nil, err
		}
		if !inside {
			return nil, s.denied(tok, "requested folder is outside the shared subtree")
		}
		targetID = folderID
	}

	folder, err := s.folders.FindByID(ctx, targetID)
	if err != nil {
		return nil, s.missingTarget(tok, err)
	}
	if folder.Trashed() {
		return nil, s.denied(tok, "target folder is trashed")
	}

	id := folder.ID
	subfolders, folderTotal, err := s.folders.ListChildren(ctx, folder.OwnerID, &id, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subfolders")
	}
	files, fileTotal, err := s.files.ListByFolder(ctx, folder.OwnerID, &id, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return &models.FolderContent{
		Folder:       folder,
		Subfolders:   subfolders,
		Files:        files,
		TotalFolders: folderTotal,
		TotalFiles:   fileTotal,
	}, nil
}

// DownloadPublic consumes one download from the link's budget and presigns
// the file. The consume is a single conditional update, so two concurrent
// requests can never both take the last slot.
func (s *ShareService) DownloadPublic(ctx context.Context, tok, password, fileID string) (*DownloadTicket, error) {
	link, err := s.guardedLink(ctx, tok, password)
	if err != nil {
		return nil, err
	}

	var file *models.File
	switch {
	case link.FileID != nil:
		if fileID != "" && fileID != *link.FileID {
			return nil, s.denied(tok, "file does not match the link target")
		}
		file, err = s.files.FindByID(ctx, *link.FileID)
	case fileID == "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "file_id is required for folder links")
	default:
		file, err = s.files.FindByID(ctx, fileID)
		if err == nil {
			var inside bool
			if file.FolderID == nil {
				inside = false
			} else if *file.FolderID == *link.FolderID {
				inside = true
			} else {
				inside, err = s.insideSubtree(ctx, *file.FolderID, *link.FolderID)
				if err != nil {
					return nil, err
				}
			}
			if !inside {
				return nil, s.denied(tok, "file is outside the shared subtree")
			}
		}
	}
	if err != nil {
		return nil, s.missingTarget(tok, err)
	}
	if file.Trashed() {
		return nil, s.denied(tok, "target file is trashed")
	}

	consumed, err := s.repo.ConsumeDownload(ctx, tok)
	if err != nil {
		if err == sql.ErrNoRows {
			// The link was valid a moment ago; a concurrent consumer or an
			// update got there first. Re-fetch to classify.
			return nil, s.classifyDead(ctx, tok)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume download")
	}

	url, expiresAt, err := s.blobs.PresignDownload(ctx, file.StorageKey, file.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to presign download")
	}
	if err := s.files.IncrementDownload(ctx, file.ID); err != nil {
		s.logger.Warn("failed to bump download count", zap.String("file_id", file.ID), zap.Error(err))
	}
	s.stats.RecordDownload(ctx, file.OwnerID)

	s.logger.Info("share download",
		zap.String("token", tok),
		zap.String("file_id", file.ID),
		zap.Int("download_count", consumed.DownloadCount))
	return &DownloadTicket{URL: url, FileName: file.Name, ExpiresAt: expiresAt}, nil
}

func (s *ShareService) ownedLink(ctx context.Context, principal models.Principal, id string) (*models.ShareLink, error) {
	link, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share link")
	}
	if link.OwnerID != principal.UserID && !principal.Admin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this share link")
	}
	return link, nil
}

// guardedLink runs the resolve-time gauntlet: existence, active flag, expiry,
// download cap, then password.
func (s *ShareService) guardedLink(ctx context.Context, tok, password string) (*models.ShareLink, error) {
	link, err := s.repo.FindByToken(ctx, tok)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share link")
	}
	if !link.IsActive {
		return nil, s.denied(tok, "link is deactivated")
	}
	if link.Expired(time.Now().UTC()) {
		return nil, s.denied(tok, "link is expired")
	}
	if link.CapReached() {
		s.logger.Debug("share link exhausted", zap.String("token", tok))
		return nil, appErrors.Clone(appErrors.ErrExhausted, "download limit reached")
	}
	if link.HasPassword() {
		if password == "" {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "password required")
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			s.logger.Debug("share link password mismatch", zap.String("token", tok))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid password")
		}
	}
	return link, nil
}

// classifyDead explains why an atomic consume matched nothing.
func (s *ShareService) classifyDead(ctx context.Context, tok string) error {
	link, err := s.repo.FindByToken(ctx, tok)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "share link not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share link")
	}
	if link.CapReached() {
		return appErrors.Clone(appErrors.ErrExhausted, "download limit reached")
	}
	return s.denied(tok, "link became unusable")
}

// denied collapses the precise reason into a uniform forbidden response;
// the reason only reaches the logs.
func (s *ShareService) denied(tok, reason string) error {
	s.logger.Debug("share access denied", zap.String("token", tok), zap.String("reason", reason))
	return appErrors.Clone(appErrors.ErrForbidden, "this link is no longer available")
}

func (s *ShareService) missingTarget(tok string, err error) error {
	if err == sql.ErrNoRows {
		return s.denied(tok, "target resource is gone")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shared resource")
}

// insideSubtree reports whether candidate is rootID or sits under it.
func (s *ShareService) insideSubtree(ctx context.Context, candidateID, rootID string) (bool, error) {
	if candidateID == rootID {
		return true, nil
	}
	ancestors, err := s.folders.AncestorIDs(ctx, candidateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ancestors")
	}
	for _, id := range ancestors {
		if id == rootID {
			return true, nil
		}
	}
	return false, nil
}
