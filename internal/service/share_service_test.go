package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
)

type mockShareRepo struct {
	links      map[string]models.ShareLink // keyed by token
	byID       map[string]models.ShareLink
	views      int
	consumeErr error
}

func (m *mockShareRepo) Create(ctx context.Context, link *models.ShareLink) error {
	if m.links == nil {
		m.links = make(map[string]models.ShareLink)
	}
	if link.ID == "" {
		link.ID = "share-1"
	}
	m.links[link.Token] = *link
	return nil
}

func (m *mockShareRepo) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	if l, ok := m.links[token]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockShareRepo) FindByID(ctx context.Context, id string) (*models.ShareLink, error) {
	if l, ok := m.byID[id]; ok {
		return &l, nil
	}
	for _, l := range m.links {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockShareRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	var out []models.ShareLink
	for _, l := range m.links {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockShareRepo) Update(ctx context.Context, link *models.ShareLink) error {
	m.links[link.Token] = *link
	return nil
}

func (m *mockShareRepo) Delete(ctx context.Context, id string) error {
	for token, l := range m.links {
		if l.ID == id {
			delete(m.links, token)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockShareRepo) ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	l, ok := m.links[token]
	if !ok || !l.IsActive || l.CapReached() || l.Expired(time.Now().UTC()) {
		return nil, sql.ErrNoRows
	}
	l.DownloadCount++
	if l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads {
		l.IsActive = false
	}
	m.links[token] = l
	return &l, nil
}

func (m *mockShareRepo) IncrementView(ctx context.Context, token string) error {
	m.views++
	return nil
}

func shareFixture(t *testing.T) (*ShareService, *mockShareRepo, *mockFileRepo) {
	t.Helper()
	repo := &mockShareRepo{links: map[string]models.ShareLink{}}
	files := &mockFileRepo{files: map[string]models.File{
		"f1": {ID: "f1", Name: "report.pdf", OwnerID: "owner", StorageKey: "owner/key1"},
	}}
	folders := &mockFolderRepo{
		folders: map[string]models.Folder{
			"d1":  {ID: "d1", Name: "Shared", OwnerID: "owner", Path: "/Shared"},
			"sub": {ID: "sub", Name: "Sub", OwnerID: "owner", Path: "/Shared/Sub", ParentID: strPtr("d1")},
		},
		ancestors: map[string][]string{"sub": {"d1"}},
	}
	authz := &mockAuthorizer{
		files:   map[string]*models.File{"f1": {ID: "f1", Name: "report.pdf", OwnerID: "owner", StorageKey: "owner/key1"}},
		folders: map[string]*models.Folder{"d1": {ID: "d1", Name: "Shared", OwnerID: "owner", Path: "/Shared"}},
	}
	svc := NewShareService(repo, folders, files, authz, &stubBlobs{url: "https://signed.example/x"}, &mockStatsSink{}, ShareServiceConfig{
		BcryptCost:    bcrypt.MinCost,
		PublicBaseURL: "https://drive.example",
	}, validator.New(), zap.NewNop())
	return svc, repo, files
}

func TestShareServiceCreateRequiresExactlyOneTarget(t *testing.T) {
	svc, _, _ := shareFixture(t)
	fileID, folderID := "f1", "d1"

	_, err := svc.Create(context.Background(), models.Principal{UserID: "owner"}, CreateShareRequest{
		FileID: &fileID, FolderID: &folderID, Permission: models.ShareView,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), models.Principal{UserID: "owner"}, CreateShareRequest{Permission: models.ShareView})
	require.Error(t, err)
}

func TestShareServiceCreateHashesPassword(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"

	link, err := svc.Create(context.Background(), models.Principal{UserID: "owner"}, CreateShareRequest{
		FileID: &fileID, Permission: models.ShareView, Password: "hunter2",
	})
	require.NoError(t, err)
	require.True(t, link.HasPassword())
	assert.NotEqual(t, "hunter2", *link.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte("hunter2")))
	assert.NotEmpty(t, link.Token)
	assert.Contains(t, svc.PublicURL(link), "https://drive.example/s/")
	assert.Equal(t, 1, len(repo.links))
}

func TestShareServiceResolveNotFound(t *testing.T) {
	svc, _, _ := shareFixture(t)

	_, err := svc.ResolvePublic(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestShareServiceResolveDenyOrder(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	past := time.Now().Add(-time.Hour)
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	hashed := string(hash)

	cases := []struct {
		name     string
		link     models.ShareLink
		password string
		wantCode string
	}{
		{
			name:     "inactive collapses to forbidden",
			link:     models.ShareLink{ID: "s1", Token: "t1", FileID: &fileID, Permission: models.ShareView, IsActive: false, OwnerID: "owner"},
			wantCode: appErrors.ErrForbidden.Code,
		},
		{
			name:     "expired collapses to forbidden",
			link:     models.ShareLink{ID: "s2", Token: "t2", FileID: &fileID, Permission: models.ShareView, IsActive: true, ExpiresAt: &past, OwnerID: "owner"},
			wantCode: appErrors.ErrForbidden.Code,
		},
		{
			name:     "cap reached reports exhausted",
			link:     models.ShareLink{ID: "s3", Token: "t3", FileID: &fileID, Permission: models.ShareView, IsActive: true, MaxDownloads: 3, DownloadCount: 3, OwnerID: "owner"},
			wantCode: appErrors.ErrExhausted.Code,
		},
		{
			name:     "password required",
			link:     models.ShareLink{ID: "s4", Token: "t4", FileID: &fileID, Permission: models.ShareView, IsActive: true, PasswordHash: &hashed, OwnerID: "owner"},
			wantCode: appErrors.ErrUnauthorized.Code,
		},
		{
			name:     "password mismatch",
			link:     models.ShareLink{ID: "s5", Token: "t5", FileID: &fileID, Permission: models.ShareView, IsActive: true, PasswordHash: &hashed, OwnerID: "owner"},
			password: "wrong",
			wantCode: appErrors.ErrUnauthorized.Code,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo.links[tc.link.Token] = tc.link
			_, err := svc.ResolvePublic(context.Background(), tc.link.Token, tc.password)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestShareServiceResolveSuccessCountsView(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, OwnerID: "owner"}

	info, err := svc.ResolvePublic(context.Background(), "tok", "")
	require.NoError(t, err)
	require.NotNil(t, info.File)
	assert.Equal(t, "f1", info.File.ID)
	assert.Equal(t, 1, repo.views)
}

func TestShareServiceResolveWithCorrectPassword(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	hashed := string(hash)
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, PasswordHash: &hashed, OwnerID: "owner"}

	info, err := svc.ResolvePublic(context.Background(), "tok", "pw")
	require.NoError(t, err)
	assert.True(t, info.RequiresPassword)
}

func TestShareServiceDownloadConsumesBudget(t *testing.T) {
	svc, repo, files := shareFixture(t)
	fileID := "f1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, MaxDownloads: 2, OwnerID: "owner"}

	ticket, err := svc.DownloadPublic(context.Background(), "tok", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/x", ticket.URL)
	assert.Equal(t, 1, repo.links["tok"].DownloadCount)
	assert.Equal(t, []string{"f1"}, files.downloads)
}

func TestShareServiceDownloadLastSlotDeactivates(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, MaxDownloads: 1, OwnerID: "owner"}

	_, err := svc.DownloadPublic(context.Background(), "tok", "", "")
	require.NoError(t, err)
	assert.False(t, repo.links["tok"].IsActive)

	_, err = svc.DownloadPublic(context.Background(), "tok", "", "")
	require.Error(t, err)
}

func TestShareServiceDownloadRaceClassifiesExhausted(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	// Active with budget at guard time, but the conditional consume loses the
	// race and matches nothing.
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, MaxDownloads: 5, DownloadCount: 4, OwnerID: "owner"}
	repo.consumeErr = sql.ErrNoRows

	_, err := svc.DownloadPublic(context.Background(), "tok", "", "")
	require.Error(t, err)
	// Classification re-fetches: DownloadCount 4 of 5 is not capped, so the
	// collapse lands on forbidden.
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	l := repo.links["tok"]
	l.DownloadCount = 5
	repo.links["tok"] = l
	_, err = svc.DownloadPublic(context.Background(), "tok", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExhausted.Code, appErrors.FromError(err).Code)
}

func TestShareServiceFolderLinkDownloadNeedsFileInsideSubtree(t *testing.T) {
	svc, repo, files := shareFixture(t)
	folderID := "d1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FolderID: &folderID, Permission: models.ShareView, IsActive: true, OwnerID: "owner"}

	// No file_id on a folder link.
	_, err := svc.DownloadPublic(context.Background(), "tok", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// File outside the shared subtree.
	outside := "elsewhere"
	files.files["f2"] = models.File{ID: "f2", Name: "secret.txt", OwnerID: "owner", StorageKey: "owner/key2", FolderID: &outside}
	_, err = svc.DownloadPublic(context.Background(), "tok", "", "f2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// File in a nested subfolder of the shared root.
	sub := "sub"
	files.files["f3"] = models.File{ID: "f3", Name: "inside.txt", OwnerID: "owner", StorageKey: "owner/key3", FolderID: &sub}
	ticket, err := svc.DownloadPublic(context.Background(), "tok", "", "f3")
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.URL)
}

func TestShareServiceUpdateClearsPassword(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	hashed := string(hash)
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, PasswordHash: &hashed, OwnerID: "owner"}

	empty := ""
	link, err := svc.Update(context.Background(), models.Principal{UserID: "owner"}, "s1", UpdateShareRequest{Password: &empty})
	require.NoError(t, err)
	assert.False(t, link.HasPassword())
}

func TestShareServiceUpdateForbiddenForNonOwner(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	fileID := "f1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FileID: &fileID, Permission: models.ShareView, IsActive: true, OwnerID: "owner"}

	active := false
	_, err := svc.Update(context.Background(), models.Principal{UserID: "intruder"}, "s1", UpdateShareRequest{IsActive: &active})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestShareServiceBrowseStaysInsideSubtree(t *testing.T) {
	svc, repo, _ := shareFixture(t)
	folderID := "d1"
	repo.links["tok"] = models.ShareLink{ID: "s1", Token: "tok", FolderID: &folderID, Permission: models.ShareView, IsActive: true, OwnerID: "owner"}

	content, err := svc.BrowsePublic(context.Background(), "tok", "", "sub", models.ListChildrenFilter{})
	require.NoError(t, err)
	assert.Equal(t, "sub", content.Folder.ID)

	_, err = svc.BrowsePublic(context.Background(), "tok", "", "unrelated", models.ListChildrenFilter{})
	require.Error(t, err)
}
