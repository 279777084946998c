package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type accessFolderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	AncestorIDs(ctx context.Context, id string) ([]string, error)
}

type accessFileRepository interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
}

type grantRepository interface {
	Upsert(ctx context.Context, grant *models.Collaborator) error
	Delete(ctx context.Context, resourceType models.ResourceType, resourceID, userID string) error
	ListForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]models.Collaborator, error)
	CandidateGrants(ctx context.Context, resourceType models.ResourceType, resourceID, userID string, ancestorIDs []string) ([]models.Collaborator, error)
}

type grantUserRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// GrantCollaboratorRequest holds payload for granting a collaborator role.
// The grantee is addressed by id or by email; exactly one must be set.
type GrantCollaboratorRequest struct {
	ResourceType models.ResourceType     `json:"resource_type" validate:"required"`
	ResourceID   string                  `json:"resource_id" validate:"required"`
	UserID       string                  `json:"user_id" validate:"required_without=Email"`
	Email        string                  `json:"email" validate:"omitempty,email"`
	Role         models.CollaboratorRole `json:"role" validate:"required"`
	ExpiresAt    *time.Time              `json:"expires_at"`
}

// AccessService resolves authorization decisions for files and folders and
// manages collaborator grants. Every other service routes its permission
// checks through here.
type AccessService struct {
	folders   accessFolderRepository
	files     accessFileRepository
	grants    grantRepository
	users     grantUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccessService constructs the access service.
func NewAccessService(folders accessFolderRepository, files accessFileRepository, grants grantRepository, users grantUserRepository, validate *validator.Validate, logger *zap.Logger) *AccessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{folders: folders, files: files, grants: grants, users: users, validator: validate, logger: logger}
}

// AuthorizeFile loads the file and checks the principal may perform the
// action on it. The loaded file is returned so callers avoid a second fetch.
func (s *AccessService) AuthorizeFile(ctx context.Context, principal models.Principal, fileID string, action access.Action) (*models.File, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	ancestors, err := s.fileAncestors(ctx, file)
	if err != nil {
		return nil, err
	}
	res := access.Resource{
		Type:      models.ResourceFile,
		ID:        file.ID,
		OwnerID:   file.OwnerID,
		Trashed:   file.Trashed(),
		Ancestors: ancestors,
	}
	if err := s.decide(ctx, principal, res, action); err != nil {
		return nil, err
	}
	return file, nil
}

// AuthorizeFolder loads the folder and checks the principal may perform the
// action on it.
func (s *AccessService) AuthorizeFolder(ctx context.Context, principal models.Principal, folderID string, action access.Action) (*models.Folder, error) {
	folder, err := s.folders.FindByID(ctx, folderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}

	ancestors, err := s.folders.AncestorIDs(ctx, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder ancestors")
	}
	res := access.Resource{
		Type:      models.ResourceFolder,
		ID:        folder.ID,
		OwnerID:   folder.OwnerID,
		Trashed:   folder.Trashed(),
		Ancestors: ancestors,
	}
	if err := s.decide(ctx, principal, res, action); err != nil {
		return nil, err
	}
	return folder, nil
}

// Grant creates or updates a collaborator role on a resource. The caller
// needs share rights on the resource; the grantee must be an existing user.
func (s *AccessService) Grant(ctx context.Context, principal models.Principal, req GrantCollaboratorRequest) (*models.Collaborator, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown collaborator role")
	}
	if req.ResourceType != models.ResourceFile && req.ResourceType != models.ResourceFolder {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource type")
	}

	var ownerID string
	switch req.ResourceType {
	case models.ResourceFile:
		file, err := s.AuthorizeFile(ctx, principal, req.ResourceID, access.ActionShare)
		if err != nil {
			return nil, err
		}
		ownerID = file.OwnerID
	default:
		folder, err := s.AuthorizeFolder(ctx, principal, req.ResourceID, access.ActionShare)
		if err != nil {
			return nil, err
		}
		ownerID = folder.OwnerID
	}

	userID := req.UserID
	if userID == "" {
		user, err := s.users.FindByEmail(ctx, req.Email)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
		}
		if !user.Active {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		userID = user.ID
	} else {
		exists, err := s.users.Exists(ctx, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
	}
	if userID == ownerID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "owner already has full access")
	}

	grant := &models.Collaborator{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		UserID:       userID,
		Role:         req.Role,
		ExpiresAt:    req.ExpiresAt,
		GrantedBy:    principal.UserID,
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grant")
	}
	s.logger.Info("collaborator granted",
		zap.String("resource_type", string(req.ResourceType)),
		zap.String("resource_id", req.ResourceID),
		zap.String("user_id", userID),
		zap.String("role", string(req.Role)))
	return grant, nil
}

// Revoke removes a collaborator grant. Requires share rights on the resource.
func (s *AccessService) Revoke(ctx context.Context, principal models.Principal, resourceType models.ResourceType, resourceID, userID string) error {
	if err := s.authorizeResource(ctx, principal, resourceType, resourceID, access.ActionShare); err != nil {
		return err
	}
	if err := s.grants.Delete(ctx, resourceType, resourceID, userID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "grant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke grant")
	}
	return nil
}

// ListCollaborators returns the direct grants on a resource. Requires read
// rights on the resource.
func (s *AccessService) ListCollaborators(ctx context.Context, principal models.Principal, resourceType models.ResourceType, resourceID string) ([]models.Collaborator, error) {
	if err := s.authorizeResource(ctx, principal, resourceType, resourceID, access.ActionRead); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListForResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list collaborators")
	}
	return grants, nil
}

func (s *AccessService) authorizeResource(ctx context.Context, principal models.Principal, resourceType models.ResourceType, resourceID string, action access.Action) error {
	switch resourceType {
	case models.ResourceFile:
		_, err := s.AuthorizeFile(ctx, principal, resourceID, action)
		return err
	case models.ResourceFolder:
		_, err := s.AuthorizeFolder(ctx, principal, resourceID, action)
		return err
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown resource type")
	}
}

// decide fetches candidate grants and runs the pure resolver. A trashed
// resource reached by its owner for a normal action maps to invalid state so
// the client can distinguish "restore first" from a plain permission failure.
func (s *AccessService) decide(ctx context.Context, principal models.Principal, res access.Resource, action access.Action) error {
	var grants []models.Collaborator
	if !principal.Anonymous && principal.UserID != res.OwnerID {
		var err error
		grants, err = s.grants.CandidateGrants(ctx, res.Type, res.ID, principal.UserID, res.Ancestors)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grants")
		}
	}

	decision := access.Evaluate(principal, res, grants, action, time.Now().UTC())
	if decision.Allowed {
		return nil
	}

	s.logger.Debug("access denied",
		zap.String("resource_type", string(res.Type)),
		zap.String("resource_id", res.ID),
		zap.String("action", string(action)),
		zap.String("reason", decision.Reason))

	if res.Trashed && !principal.Anonymous && principal.UserID == res.OwnerID {
		return appErrors.Clone(appErrors.ErrInvalidState, "resource is in the trash")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission for this action")
}

// fileAncestors builds the grant search chain for a file: its containing
// folder first, then that folder's ancestors toward root.
func (s *AccessService) fileAncestors(ctx context.Context, file *models.File) ([]string, error) {
	if file.FolderID == nil {
		return nil, nil
	}
	ancestors, err := s.folders.AncestorIDs(ctx, *file.FolderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder ancestors")
	}
	return append([]string{*file.FolderID}, ancestors...), nil
}
