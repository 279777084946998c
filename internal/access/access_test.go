package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/drivehub-api/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func folderGrant(folderID, userID string, role models.CollaboratorRole, expiresAt *time.Time) models.Collaborator {
	return models.Collaborator{
		ResourceType: models.ResourceFolder,
		ResourceID:   folderID,
		UserID:       userID,
		Role:         role,
		ExpiresAt:    expiresAt,
	}
}

func TestOwnerAlwaysAllowed(t *testing.T) {
	owner := models.Principal{UserID: "u1"}
	res := Resource{Type: models.ResourceFile, ID: "f1", OwnerID: "u1"}

	for _, action := range []Action{ActionRead, ActionWrite, ActionDelete, ActionMove, ActionShare} {
		d := Evaluate(owner, res, nil, action, now)
		assert.True(t, d.Allowed, "owner denied %s", action)
	}
}

func TestOwnerAllowedRestoreAndPurgeWhileTrashed(t *testing.T) {
	owner := models.Principal{UserID: "u1"}
	res := Resource{Type: models.ResourceFolder, ID: "d1", OwnerID: "u1", Trashed: true}

	assert.True(t, Evaluate(owner, res, nil, ActionRestore, now).Allowed)
	assert.True(t, Evaluate(owner, res, nil, ActionPurge, now).Allowed)
}

func TestOwnerDeniedOtherActionsWhileTrashed(t *testing.T) {
	owner := models.Principal{UserID: "u1"}
	res := Resource{Type: models.ResourceFile, ID: "f1", OwnerID: "u1", Trashed: true}

	for _, action := range []Action{ActionRead, ActionDownload, ActionWrite, ActionShare} {
		d := Evaluate(owner, res, nil, action, now)
		assert.False(t, d.Allowed, "owner allowed %s on trashed resource", action)
	}
}

func TestTrashedDeniesCollaboratorActions(t *testing.T) {
	grants := []models.Collaborator{folderGrant("d1", "u2", models.RoleEditor, nil)}
	res := Resource{Type: models.ResourceFolder, ID: "d1", OwnerID: "u1", Trashed: true}

	d := Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionRead, now)
	assert.False(t, d.Allowed)

	d = Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionRestore, now)
	assert.False(t, d.Allowed)
}

func TestRoleMapping(t *testing.T) {
	res := Resource{Type: models.ResourceFolder, ID: "d1", OwnerID: "u1"}
	cases := []struct {
		role    models.CollaboratorRole
		action  Action
		allowed bool
	}{
		{models.RoleViewer, ActionRead, true},
		{models.RoleViewer, ActionDownload, true},
		{models.RoleViewer, ActionComment, false},
		{models.RoleViewer, ActionWrite, false},
		{models.RoleCommenter, ActionComment, true},
		{models.RoleCommenter, ActionDelete, false},
		{models.RoleEditor, ActionDelete, true},
		{models.RoleEditor, ActionMove, true},
		{models.RoleEditor, ActionShare, true},
	}

	for _, tc := range cases {
		grants := []models.Collaborator{folderGrant("d1", "u2", tc.role, nil)}
		d := Evaluate(models.Principal{UserID: "u2"}, res, grants, tc.action, now)
		assert.Equal(t, tc.allowed, d.Allowed, "%s with role %s", tc.action, tc.role)
	}
}

func TestExpiredGrantTreatedAsAbsent(t *testing.T) {
	past := now.Add(-time.Hour)
	grants := []models.Collaborator{folderGrant("d1", "u2", models.RoleEditor, &past)}
	res := Resource{Type: models.ResourceFolder, ID: "d1", OwnerID: "u1"}

	d := Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionRead, now)
	assert.False(t, d.Allowed)
}

func TestFutureExpiryStillLive(t *testing.T) {
	future := now.Add(time.Hour)
	grants := []models.Collaborator{folderGrant("d1", "u2", models.RoleViewer, &future)}
	res := Resource{Type: models.ResourceFolder, ID: "d1", OwnerID: "u1"}

	d := Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionRead, now)
	assert.True(t, d.Allowed)
}

func TestClosestGrantWins(t *testing.T) {
	// Ancestor chain: parent -> grandparent. Broad editor on the
	// grandparent, narrower viewer on the parent: the parent grant decides.
	grants := []models.Collaborator{
		folderGrant("grandparent", "u2", models.RoleEditor, nil),
		folderGrant("parent", "u2", models.RoleViewer, nil),
	}
	res := Resource{
		Type:      models.ResourceFile,
		ID:        "f1",
		OwnerID:   "u1",
		Ancestors: []string{"parent", "grandparent"},
	}

	d := Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionWrite, now)
	assert.False(t, d.Allowed)
	d = Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionRead, now)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.RoleViewer, d.Role)
}

func TestGrantOnResourceBeatsAncestors(t *testing.T) {
	grants := []models.Collaborator{
		folderGrant("parent", "u2", models.RoleViewer, nil),
		{
			ResourceType: models.ResourceFile,
			ResourceID:   "f1",
			UserID:       "u2",
			Role:         models.RoleEditor,
		},
	}
	res := Resource{
		Type:      models.ResourceFile,
		ID:        "f1",
		OwnerID:   "u1",
		Ancestors: []string{"parent"},
	}

	d := Evaluate(models.Principal{UserID: "u2"}, res, grants, ActionWrite, now)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.RoleEditor, d.Role)
}

func TestAdminReadsLiveResourcesWithoutGrant(t *testing.T) {
	admin := models.Principal{UserID: "root", Admin: true}
	res := Resource{Type: models.ResourceFile, ID: "f1", OwnerID: "u1"}

	d := Evaluate(admin, res, nil, ActionRead, now)
	assert.True(t, d.Allowed)

	// Moderation read never extends to writes or owner-only trash actions.
	for _, action := range []Action{ActionWrite, ActionDelete, ActionShare, ActionRestore, ActionPurge} {
		d := Evaluate(admin, res, nil, action, now)
		assert.False(t, d.Allowed, "admin allowed %s without grant", action)
	}

	trashed := Resource{Type: models.ResourceFile, ID: "f1", OwnerID: "u1", Trashed: true}
	assert.False(t, Evaluate(admin, trashed, nil, ActionRead, now).Allowed)
}

func TestAnonymousDeniedWithoutShareLink(t *testing.T) {
	res := Resource{Type: models.ResourceFile, ID: "f1", OwnerID: "u1"}
	d := Evaluate(models.AnonymousPrincipal, res, nil, ActionRead, now)
	assert.False(t, d.Allowed)
}

func TestCommenterCannotDelete(t *testing.T) {
	// Scenario from the sharing flows: B holds commenter on the folder and
	// tries to delete a file inside it.
	grants := []models.Collaborator{folderGrant("reports", "userB", models.RoleCommenter, nil)}
	res := Resource{
		Type:      models.ResourceFile,
		ID:        "q1",
		OwnerID:   "userA",
		Ancestors: []string{"reports"},
	}

	d := Evaluate(models.Principal{UserID: "userB"}, res, grants, ActionDelete, now)
	assert.False(t, d.Allowed)
	d = Evaluate(models.Principal{UserID: "userB"}, res, grants, ActionComment, now)
	assert.True(t, d.Allowed)
}
