package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/virtualpost/forwarding-api/internal/models"
)

// AuditRepository persists the transition audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts one audit row.
func (r *AuditRepository) Create(ctx context.Context, audit *models.TransitionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transition_audits
	(id, request_id, operator_id, action, from_status, to_status, version, note, created_at)
	VALUES (:id, :request_id, :operator_id, :action, :from_status, :to_status, :version, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		return fmt.Errorf("create transition audit: %w", err)
	}
	return nil
}

// ListByRequest returns the audit trail for one request, oldest first.
func (r *AuditRepository) ListByRequest(ctx context.Context, requestID string) ([]models.TransitionAudit, error) {
	const query = `SELECT id, request_id, operator_id, action, from_status, to_status, version, note, created_at
	FROM transition_audits WHERE request_id = $1 ORDER BY created_at ASC, version ASC`
	var audits []models.TransitionAudit
	if err := r.db.SelectContext(ctx, &audits, query, requestID); err != nil {
		return nil, fmt.Errorf("list transition audits: %w", err)
	}
	return audits, nil
}
