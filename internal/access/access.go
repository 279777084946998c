// Package access resolves "who can do what to which resource" decisions. It
// is a pure interpreter over a snapshot of the resource, its ancestor chain,
// and the candidate grants, so it carries no storage or framework
// dependencies and is fully table-testable.
package access

import (
	"time"

	"github.com/noah-isme/drivehub-api/internal/models"
)

// Action is a requested operation on a file or folder.
type Action string

const (
	ActionRead     Action = "read"
	ActionDownload Action = "download"
	ActionComment  Action = "comment"
	ActionWrite    Action = "write"
	ActionRename   Action = "rename"
	ActionDelete   Action = "delete"
	ActionMove     Action = "move"
	ActionShare    Action = "share"
	ActionRestore  Action = "restore"
	ActionPurge    Action = "purge"
)

// RequiredRole maps an action to the minimum collaborator role that covers it.
func RequiredRole(action Action) models.CollaboratorRole {
	switch action {
	case ActionRead, ActionDownload:
		return models.RoleViewer
	case ActionComment:
		return models.RoleCommenter
	default:
		return models.RoleEditor
	}
}

// Resource is the snapshot of the node a decision is being made about.
// Ancestors lists folder IDs from the immediate parent toward root.
type Resource struct {
	Type      models.ResourceType
	ID        string
	OwnerID   string
	Trashed   bool
	Ancestors []string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	// Role is the effective collaborator role used for the decision, empty
	// for owner access.
	Role models.CollaboratorRole
}

func allow(role models.CollaboratorRole) Decision {
	return Decision{Allowed: true, Role: role}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Evaluate computes the allow/deny decision for one principal, resource, and
// action at the given instant.
//
// Owners are allowed everything on a live resource. A trashed resource admits
// only restore and purge, and only for the owner; every other action is
// denied until the resource leaves the trash. Admins may read any live
// resource for moderation, but get no write access and no owner-only trash
// actions. For non-owners the closest non-expired grant wins: a grant on the
// resource itself beats any ancestor grant, and a nearer ancestor beats a
// farther one.
func Evaluate(principal models.Principal, res Resource, grants []models.Collaborator, action Action, now time.Time) Decision {
	if !principal.Anonymous && principal.UserID == res.OwnerID {
		if res.Trashed && action != ActionRestore && action != ActionPurge {
			return deny("resource is trashed")
		}
		return allow("")
	}

	if res.Trashed {
		return deny("resource is trashed")
	}

	if action == ActionRestore || action == ActionPurge {
		return deny("only the owner may restore or purge")
	}

	if principal.Admin && action == ActionRead {
		return allow("")
	}

	if principal.Anonymous {
		return deny("anonymous access requires a share link")
	}

	grant := closestGrant(principal.UserID, res, grants, now)
	if grant == nil {
		return deny("no grant for user")
	}

	required := RequiredRole(action)
	if !grant.Role.Includes(required) {
		return deny("role " + string(grant.Role) + " does not include " + string(required))
	}
	return allow(grant.Role)
}

// closestGrant picks the most specific live grant for the user: the resource
// itself first, then ancestors in parent-to-root order.
func closestGrant(userID string, res Resource, grants []models.Collaborator, now time.Time) *models.Collaborator {
	byResource := make(map[string]*models.Collaborator, len(grants))
	for i := range grants {
		g := &grants[i]
		if g.UserID != userID || g.Expired(now) {
			continue
		}
		if g.ResourceType == res.Type && g.ResourceID == res.ID {
			return g
		}
		if g.ResourceType == models.ResourceFolder {
			byResource[g.ResourceID] = g
		}
	}
	for _, ancestorID := range res.Ancestors {
		if g, ok := byResource[ancestorID]; ok {
			return g
		}
	}
	return nil
}
