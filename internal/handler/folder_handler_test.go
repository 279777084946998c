package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/models"
	"github.com/noah-isme/drivehub-api/internal/service"
)

type pagedFolderLister struct {
	page  []models.Folder
	total int
}

func (l *pagedFolderLister) FindByID(ctx context.Context, id string) (*models.Folder, error) {
	return nil, nil
}

func (l *pagedFolderLister) ExistsByName(ctx context.Context, ownerID string, parentID *string, name, excludeID string) (bool, error) {
	return false, nil
}

func (l *pagedFolderLister) Create(ctx context.Context, folder *models.Folder) error { return nil }

func (l *pagedFolderLister) ListChildren(ctx context.Context, ownerID string, parentID *string, filter models.ListChildrenFilter) ([]models.Folder, int, error) {
	return l.page, l.total, nil
}

func (l *pagedFolderLister) Breadcrumbs(ctx context.Context, id string) ([]models.Breadcrumb, error) {
	return nil, nil
}

func (l *pagedFolderLister) AncestorIDs(ctx context.Context, id string) ([]string, error) {
	return nil, nil
}

func (l *pagedFolderLister) RenameTree(ctx context.Context, id, name, oldPath, newPath string) error {
	return nil
}

func (l *pagedFolderLister) MoveTree(ctx context.Context, id string, newParentID *string, oldPath, newPath string) error {
	return nil
}

type pagedFileLister struct {
	page  []models.File
	total int
}

func (l *pagedFileLister) ListByFolder(ctx context.Context, ownerID string, folderID *string, filter models.ListChildrenFilter) ([]models.File, int, error) {
	return l.page, l.total, nil
}

func TestFolderHandlerListRootReturnsPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	folders := &pagedFolderLister{page: []models.Folder{{ID: "a", Name: "A", OwnerID: "u1"}}, total: 7}
	files := &pagedFileLister{page: []models.File{{ID: "f1", OwnerID: "u1"}}, total: 12}
	svc := service.NewFolderService(folders, files, &trashedFolderSource{}, nil, zap.NewNop())
	h := NewFolderHandler(svc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/folders?page=2&limit=1", nil)
	c.Set(middleware.ContextPrincipalKey, models.Principal{UserID: "u1"})

	h.ListRoot(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data       models.FolderContent `json:"data"`
		Pagination *models.Pagination   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.Page)
	assert.Equal(t, 1, envelope.Pagination.PageSize)
	assert.Equal(t, 19, envelope.Pagination.TotalCount)
	assert.Equal(t, 7, envelope.Data.TotalFolders)
	assert.Equal(t, 12, envelope.Data.TotalFiles)
}
