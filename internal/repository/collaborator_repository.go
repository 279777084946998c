package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/drivehub-api/internal/models"
)

const collaboratorColumns = `id, resource_type, resource_id, user_id, role, expires_at, granted_by, created_at, updated_at`

// CollaboratorRepository manages persistence for role grants.
type CollaboratorRepository struct {
	db *sqlx.DB
}

// NewCollaboratorRepository constructs a CollaboratorRepository.
func NewCollaboratorRepository(db *sqlx.DB) *CollaboratorRepository {
	return &CollaboratorRepository{db: db}
}

// Upsert creates or replaces the grant for (resource, user).
func (r *CollaboratorRepository) Upsert(ctx context.Context, grant *models.Collaborator) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = now
	}
	grant.UpdatedAt = now
	const query = `INSERT INTO collaborators (id, resource_type, resource_id, user_id, role, expires_at, granted_by, created_at, updated_at)
        VALUES (:id, :resource_type, :resource_id, :user_id, :role, :expires_at, :granted_by, :created_at, :updated_at)
        ON CONFLICT (resource_type, resource_id, user_id)
        DO UPDATE SET role = EXCLUDED.role, expires_at = EXCLUDED.expires_at, granted_by = EXCLUDED.granted_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("upsert collaborator: %w", err)
	}
	return nil
}

// Delete revokes the grant for (resource, user).
func (r *CollaboratorRepository) Delete(ctx context.Context, resourceType models.ResourceType, resourceID, userID string) error {
	const query = `DELETE FROM collaborators WHERE resource_type = $1 AND resource_id = $2 AND user_id = $3`
	if _, err := r.db.ExecContext(ctx, query, resourceType, resourceID, userID); err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}
	return nil
}

// ListForResource returns every grant on one resource.
func (r *CollaboratorRepository) ListForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]models.Collaborator, error) {
	query := fmt.Sprintf(`SELECT %s FROM collaborators WHERE resource_type = $1 AND resource_id = $2 ORDER BY created_at ASC, id ASC`, collaboratorColumns)
	var grants []models.Collaborator
	if err := r.db.SelectContext(ctx, &grants, query, resourceType, resourceID); err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	return grants, nil
}

// CandidateGrants returns the user's grants on the resource itself and on
// any of the ancestor folders. Expiry filtering is left to the access
// resolver so stale grants are visible in its decision logs.
func (r *CollaboratorRepository) CandidateGrants(ctx context.Context, resourceType models.ResourceType, resourceID, userID string, ancestorIDs []string) ([]models.Collaborator, error) {
	query := fmt.Sprintf(`SELECT %s FROM collaborators
        WHERE user_id = $1 AND (
            (resource_type = $2 AND resource_id = $3)
            OR (resource_type = 'folder' AND resource_id = ANY($4))
        )`, collaboratorColumns)
	var grants []models.Collaborator
	if err := r.db.SelectContext(ctx, &grants, query, userID, resourceType, resourceID, pq.Array(ancestorIDs)); err != nil {
		return nil, fmt.Errorf("candidate grants: %w", err)
	}
	return grants, nil
}

// DeleteByResourceIDs removes grants pointing at purged resources.
func (r *CollaboratorRepository) DeleteByResourceIDs(ctx context.Context, tx *sqlx.Tx, resourceType models.ResourceType, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM collaborators WHERE resource_type = $1 AND resource_id = ANY($2)`
	if _, err := tx.ExecContext(ctx, query, resourceType, pq.Array(resourceIDs)); err != nil {
		return fmt.Errorf("delete resource collaborators: %w", err)
	}
	return nil
}
