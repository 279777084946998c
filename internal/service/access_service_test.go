package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/access"
	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type mockGrantRepo struct {
	grants   []models.Collaborator
	upserted []models.Collaborator
	deleted  []string // "<type>:<resource>:<user>"
}

func (m *mockGrantRepo) Upsert(ctx context.Context, grant *models.Collaborator) error {
	m.upserted = append(m.upserted, *grant)
	return nil
}

func (m *mockGrantRepo) Delete(ctx context.Context, resourceType models.ResourceType, resourceID, userID string) error {
	m.deleted = append(m.deleted, string(resourceType)+":"+resourceID+":"+userID)
	return nil
}

func (m *mockGrantRepo) ListForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]models.Collaborator, error) {
	var out []models.Collaborator
	for _, g := range m.grants {
		if g.ResourceType == resourceType && g.ResourceID == resourceID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGrantRepo) CandidateGrants(ctx context.Context, resourceType models.ResourceType, resourceID, userID string, ancestorIDs []string) ([]models.Collaborator, error) {
	match := func(g models.Collaborator) bool {
		if g.UserID != userID {
			return false
		}
		if g.ResourceType == resourceType && g.ResourceID == resourceID {
			return true
		}
		if g.ResourceType != models.ResourceFolder {
			return false
		}
		for _, id := range ancestorIDs {
			if g.ResourceID == id {
				return true
			}
		}
		return false
	}
	var out []models.Collaborator
	for _, g := range m.grants {
		if match(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

type mockUserSet struct {
	known  map[string]bool
	emails map[string]models.User
}

func (m *mockUserSet) Exists(ctx context.Context, id string) (bool, error) {
	return m.known[id], nil
}

func (m *mockUserSet) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.emails[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func accessFixture() (*AccessService, *mockFolderRepo, *mockFileRepo, *mockGrantRepo) {
	docs := "d1"
	folders := &mockFolderRepo{
		folders: map[string]models.Folder{
			"d1": {ID: "d1", Name: "Docs", Path: "/Docs", OwnerID: "owner"},
		},
	}
	files := &mockFileRepo{
		files: map[string]models.File{
			"f1": {ID: "f1", Name: "plan.txt", OwnerID: "owner", FolderID: &docs},
		},
	}
	grants := &mockGrantRepo{}
	users := &mockUserSet{
		known: map[string]bool{"owner": true, "bob": true},
		emails: map[string]models.User{
			"bob@example.com":      {ID: "bob", Email: "bob@example.com", Active: true},
			"inactive@example.com": {ID: "carl", Email: "inactive@example.com"},
		},
	}
	svc := NewAccessService(folders, files, grants, users, nil, zap.NewNop())
	return svc, folders, files, grants
}

func TestAccessServiceAuthorizeFileNotFound(t *testing.T) {
	svc, _, _, _ := accessFixture()

	_, err := svc.AuthorizeFile(context.Background(), models.Principal{UserID: "owner"}, "missing", access.ActionRead)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAccessServiceOwnerOnTrashedFileGetsInvalidState(t *testing.T) {
	svc, _, files, _ := accessFixture()
	now := time.Now().UTC()
	f := files.files["f1"]
	f.TrashedAt = &now
	files.files["f1"] = f

	_, err := svc.AuthorizeFile(context.Background(), models.Principal{UserID: "owner"}, "f1", access.ActionDownload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	// Restore is still the owner's to perform.
	_, err = svc.AuthorizeFile(context.Background(), models.Principal{UserID: "owner"}, "f1", access.ActionRestore)
	assert.NoError(t, err)
}

func TestAccessServiceInheritedFolderGrant(t *testing.T) {
	svc, _, _, grants := accessFixture()
	grants.grants = []models.Collaborator{
		{ResourceType: models.ResourceFolder, ResourceID: "d1", UserID: "bob", Role: models.RoleViewer},
	}

	_, err := svc.AuthorizeFile(context.Background(), models.Principal{UserID: "bob"}, "f1", access.ActionRead)
	assert.NoError(t, err)

	_, err = svc.AuthorizeFile(context.Background(), models.Principal{UserID: "bob"}, "f1", access.ActionWrite)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessServiceGrantToOwnerRejected(t *testing.T) {
	svc, _, _, _ := accessFixture()

	_, err := svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		UserID:       "owner",
		Role:         models.RoleEditor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAccessServiceGrantUnknownUserRejected(t *testing.T) {
	svc, _, _, grants := accessFixture()

	_, err := svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		UserID:       "ghost",
		Role:         models.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, grants.upserted)
}

func TestAccessServiceGrantByEmail(t *testing.T) {
	svc, _, _, grants := accessFixture()

	grant, err := svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		Email:        "bob@example.com",
		Role:         models.RoleViewer,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", grant.UserID)
	require.Equal(t, 1, len(grants.upserted))

	_, err = svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		Email:        "nobody@example.com",
		Role:         models.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// Deactivated accounts cannot be granted access by address.
	_, err = svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		Email:        "inactive@example.com",
		Role:         models.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAccessServiceGrantRequiresShareRights(t *testing.T) {
	svc, _, _, _ := accessFixture()

	_, err := svc.Grant(context.Background(), models.Principal{UserID: "bob"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		UserID:       "bob",
		Role:         models.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessServiceGrantAndRevoke(t *testing.T) {
	svc, _, _, grants := accessFixture()

	grant, err := svc.Grant(context.Background(), models.Principal{UserID: "owner"}, GrantCollaboratorRequest{
		ResourceType: models.ResourceFolder,
		ResourceID:   "d1",
		UserID:       "bob",
		Role:         models.RoleCommenter,
	})
	require.NoError(t, err)
	assert.Equal(t, "owner", grant.GrantedBy)
	require.Equal(t, 1, len(grants.upserted))

	err = svc.Revoke(context.Background(), models.Principal{UserID: "owner"}, models.ResourceFolder, "d1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"folder:d1:bob"}, grants.deleted)
}

func TestAccessServiceExpiredGrantIgnored(t *testing.T) {
	svc, _, _, grants := accessFixture()
	past := time.Now().UTC().Add(-time.Hour)
	grants.grants = []models.Collaborator{
		{ResourceType: models.ResourceFolder, ResourceID: "d1", UserID: "bob", Role: models.RoleEditor, ExpiresAt: &past},
	}

	_, err := svc.AuthorizeFolder(context.Background(), models.Principal{UserID: "bob"}, "d1", access.ActionRead)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
