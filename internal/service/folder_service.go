package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type folderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	ExistsByName(ctx context.Context, ownerID string, parentID *string, name, excludeID string) (bool, error)
	Create(ctx context.Context, folder *models.Folder) error
	ListChildren(ctx context.Context, ownerID string, parentID *string, filter models.ListChildrenFilter) ([]models.Folder, int, error)
	Breadcrumbs(ctx context.Context, id string) ([]models.Breadcrumb, error)
	AncestorIDs(ctx context.Context, id string) ([]string, error)
	RenameTree(ctx context.Context, id, name, oldPath, newPath string) error
	MoveTree(ctx context.Context, id string, newParentID *string, oldPath, newPath string) error
}

type folderFileLister interface {
	ListByFolder(ctx context.Context, ownerID string, folderID *string, filter models.ListChildrenFilter) ([]models.File, int, error)
}

type folderAuthorizer interface {
	AuthorizeFolder(ctx context.Context, principal models.Principal, folderID string, action access.Action) (*models.Folder, error)
}

// CreateFolderRequest holds payload for creating a folder.
type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Color    string  `json:"color" validate:"omitempty,max=32"`
	ParentID *string `json:"parent_id"`
}

// RenameFolderRequest holds payload for renaming a folder.
type RenameFolderRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// MoveFolderRequest holds payload for moving a folder. A nil parent moves it
// to the root.
type MoveFolderRequest struct {
	ParentID *string `json:"parent_id"`
}

// FolderService handles folder tree use-cases.
type FolderService struct {
	repo      folderRepository
	files     folderFileLister
	authz     folderAuthorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFolderService constructs the folder service.
func NewFolderService(repo folderRepository, files folderFileLister, authz folderAuthorizer, validate *validator.Validate, logger *zap.Logger) *FolderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderService{repo: repo, files: files, authz: authz, validator: validate, logger: logger}
}

// Create makes a new folder, at the root or inside an existing parent.
// Sibling names must be unique per owner.
func (s *FolderService) Create(ctx context.Context, principal models.Principal, req CreateFolderRequest) (*models.Folder, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid folder payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.Contains(name, "/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "folder name must be non-empty and must not contain '/'")
	}

	parentPath := ""
	ownerID := principal.UserID
	if req.ParentID != nil {
		parent, err := s.authz.AuthorizeFolder(ctx, principal, *req.ParentID, access.ActionWrite)
		if err != nil {
			return nil, err
		}
		parentPath = parent.Path
		ownerID = parent.OwnerID
	}

	exists, err := s.repo.ExistsByName(ctx, ownerID, req.ParentID, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check folder name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a folder with this name already exists here")
	}

	folder := &models.Folder{
		Name:     name,
		Color:    req.Color,
		OwnerID:  ownerID,
		ParentID: req.ParentID,
		Path:     parentPath + "/" + name,
	}
	if err := s.repo.Create(ctx, folder); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create folder")
	}
	s.logger.Info("folder created", zap.String("folder_id", folder.ID), zap.String("owner_id", ownerID))
	return folder, nil
}

// Get returns one page of a folder's contents along with its breadcrumb
// chain.
func (s *FolderService) Get(ctx context.Context, principal models.Principal, id string, filter models.ListChildrenFilter) (*models.FolderContent, error) {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.content(ctx, folder, filter)
}

// ListRoot returns the caller's top-level folders and files.
func (s *FolderService) ListRoot(ctx context.Context, principal models.Principal, filter models.ListChildrenFilter) (*models.FolderContent, error) {
	if principal.Anonymous {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	subfolders, folderTotal, err := s.repo.ListChildren(ctx, principal.UserID, nil, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folders")
	}
	files, fileTotal, err := s.files.ListByFolder(ctx, principal.UserID, nil, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return &models.FolderContent{
		Subfolders:   subfolders,
		Files:        files,
		TotalFolders: folderTotal,
		TotalFiles:   fileTotal,
	}, nil
}

// Rename changes the folder's name and rewrites the cached paths of its
// subtree.
func (s *FolderService) Rename(ctx context.Context, principal models.Principal, id string, req RenameFolderRequest) (*models.Folder, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid folder payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.Contains(name, "/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "folder name must be non-empty and must not contain '/'")
	}

	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionRename)
	if err != nil {
		return nil, err
	}
	if name == folder.Name {
		return folder, nil
	}

	exists, err := s.repo.ExistsByName(ctx, folder.OwnerID, folder.ParentID, name, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check folder name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a folder with this name already exists here")
	}

	newPath := parentPathOf(folder.Path) + "/" + name
	if err := s.repo.RenameTree(ctx, folder.ID, name, folder.Path, newPath); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename folder")
	}
	folder.Name = name
	folder.Path = newPath
	return folder, nil
}

// Move reparents the folder. Moving a folder into itself or any of its
// descendants is rejected.
func (s *FolderService) Move(ctx context.Context, principal models.Principal, id string, req MoveFolderRequest) (*models.Folder, error) {
	folder, err := s.authz.AuthorizeFolder(ctx, principal, id, access.ActionMove)
	if err != nil {
		return nil, err
	}
	if sameParent(folder.ParentID, req.ParentID) {
		return folder, nil
	}

	parentPath := ""
	if req.ParentID != nil {
		if *req.ParentID == folder.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cannot move a folder into itself")
		}
		dest, err := s.authz.AuthorizeFolder(ctx, principal, *req.ParentID, access.ActionWrite)
		if err != nil {
			return nil, err
		}
		destAncestors, err := s.repo.AncestorIDs(ctx, dest.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination ancestors")
		}
		for _, ancestorID := range destAncestors {
			if ancestorID == folder.ID {
				return nil, appErrors.Clone(appErrors.ErrConflict, "cannot move a folder into its own subtree")
			}
		}
		parentPath = dest.Path
	}

	exists, err := s.repo.ExistsByName(ctx, folder.OwnerID, req.ParentID, folder.Name, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check folder name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a folder with this name already exists at the destination")
	}

	newPath := parentPath + "/" + folder.Name
	if err := s.repo.MoveTree(ctx, folder.ID, req.ParentID, folder.Path, newPath); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move folder")
	}
	folder.ParentID = req.ParentID
	folder.Path = newPath
	return folder, nil
}

func (s *FolderService) content(ctx context.Context, folder *models.Folder, filter models.ListChildrenFilter) (*models.FolderContent, error) {
	breadcrumbs, err := s.repo.Breadcrumbs(ctx, folder.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load breadcrumbs")
	}
	folderID := folder.ID
	subfolders, folderTotal, err := s.repo.ListChildren(ctx, folder.OwnerID, &folderID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subfolders")
	}
	files, fileTotal, err := s.files.ListByFolder(ctx, folder.OwnerID, &folderID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return &models.FolderContent{
		Folder:       folder,
		Breadcrumbs:  breadcrumbs,
		Subfolders:   subfolders,
		Files:        files,
		TotalFolders: folderTotal,
		TotalFiles:   fileTotal,
	}, nil
}

// parentPathOf strips the last segment from a slash path: "/A/B" -> "/A",
// "/A" -> "".
func parentPathOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
