package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/internal/workflow"
)

const forwardingColumns = `id, owner_user_id, source_mail_item_id, status, destination_address, courier,
       tracking_number, admin_notes, reviewed_at, processing_at, dispatched_at, delivered_at, cancelled_at,
       version, lock_owner, lock_expires_at, created_at, updated_at`

// ForwardingRepository persists forwarding requests in PostgreSQL. All
// transition writes go through a single guarded UPDATE so lock, version, and
// status are evaluated atomically at row level.
type ForwardingRepository struct {
	db *sqlx.DB
}

// NewForwardingRepository constructs the repository.
func NewForwardingRepository(db *sqlx.DB) *ForwardingRepository {
	return &ForwardingRepository{db: db}
}

// Create inserts a new request at version 1 with no lock.
func (r *ForwardingRepository) Create(ctx context.Context, req *models.ForwardingRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.StatusRequested
	}
	if req.Version == 0 {
		req.Version = 1
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt

	const query = `INSERT INTO forwarding_requests
	(id, owner_user_id, source_mail_item_id, status, destination_address, courier, tracking_number, admin_notes,
	 reviewed_at, processing_at, dispatched_at, delivered_at, cancelled_at, version, lock_owner, lock_expires_at,
	 created_at, updated_at)
	VALUES (:id, :owner_user_id, :source_mail_item_id, :status, :destination_address, :courier, :tracking_number,
	 :admin_notes, :reviewed_at, :processing_at, :dispatched_at, :delivered_at, :cancelled_at, :version,
	 :lock_owner, :lock_expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create forwarding request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *ForwardingRepository) GetByID(ctx context.Context, id string) (*models.ForwardingRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM forwarding_requests WHERE id = $1`, forwardingColumns)
	var req models.ForwardingRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter (newest first) plus the total
// count for pagination.
func (r *ForwardingRepository) List(ctx context.Context, filter models.ForwardingFilter) ([]models.ForwardingRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		idx := len(args)
		where = append(where, fmt.Sprintf(
			"(id ILIKE $%d OR owner_user_id ILIKE $%d OR destination_address ILIKE $%d OR tracking_number ILIKE $%d)",
			idx, idx, idx, idx))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM forwarding_requests WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count forwarding requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.DefaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM forwarding_requests WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		forwardingColumns, whereClause, limit, offset)

	var requests []models.ForwardingRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list forwarding requests: %w", err)
	}
	return requests, total, nil
}

// TransitionUpdate groups everything one accepted transition writes. The
// repository applies it only if the stored version matches and no other
// operator holds a live lock; the caller's lock is refreshed in the same
// statement.
type TransitionUpdate struct {
	ID              string
	OperatorID      string
	ExpectedVersion int64
	Now             time.Time
	LockExpiresAt   time.Time
	NewStatus       models.ForwardingStatus
	Stamp           workflow.Stamp
	Courier         *string
	TrackingNumber  *string
	AdminNotes      *string
}

// ApplyTransition executes the compare-and-set write. sql.ErrNoRows reports
// a failed guard (missing row, stale version, or foreign live lock); the
// caller re-reads to classify.
func (r *ForwardingRepository) ApplyTransition(ctx context.Context, params TransitionUpdate) error {
	column, err := stampColumn(params.Stamp)
	if err != nil {
		return err
	}

	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 10)
	push := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	set = append(set, fmt.Sprintf("status = $%d", push(params.NewStatus)))
	nowIdx := push(params.Now)
	set = append(set, fmt.Sprintf("updated_at = $%d", nowIdx))
	// Write-once: an already stamped timestamp is never overwritten.
	set = append(set, fmt.Sprintf("%s = COALESCE(%s, $%d)", column, column, nowIdx))
	set = append(set, "version = version + 1")
	operatorIdx := push(params.OperatorID)
	set = append(set, fmt.Sprintf("lock_owner = $%d", operatorIdx))
	set = append(set, fmt.Sprintf("lock_expires_at = $%d", push(params.LockExpiresAt)))
	if params.Courier != nil {
		set = append(set, fmt.Sprintf("courier = $%d", push(*params.Courier)))
	}
	if params.TrackingNumber != nil {
		set = append(set, fmt.Sprintf("tracking_number = $%d", push(*params.TrackingNumber)))
	}
	if params.AdminNotes != nil {
		set = append(set, fmt.Sprintf("admin_notes = $%d", push(*params.AdminNotes)))
	}

	query := fmt.Sprintf(`UPDATE forwarding_requests SET %s
	WHERE id = $%d AND version = $%d
	  AND (lock_owner IS NULL OR lock_owner = '' OR lock_owner = $%d OR lock_expires_at <= $%d)`,
		strings.Join(set, ", "), push(params.ID), push(params.ExpectedVersion), operatorIdx, nowIdx)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReleaseLock clears the lock if the caller owns it or it has already
// expired. Returns whether a lock was actually cleared.
func (r *ForwardingRepository) ReleaseLock(ctx context.Context, id, operatorID string, now time.Time) (bool, error) {
	const query = `UPDATE forwarding_requests
	SET lock_owner = NULL, lock_expires_at = NULL, updated_at = $1
	WHERE id = $2 AND lock_owner IS NOT NULL AND (lock_owner = $3 OR lock_expires_at <= $1)`
	result, err := r.db.ExecContext(ctx, query, now, id, operatorID)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check release rows: %w", err)
	}
	return rows > 0, nil
}

// CountByStatus returns the queue breakdown for the dashboard header.
func (r *ForwardingRepository) CountByStatus(ctx context.Context) (map[models.ForwardingStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS total FROM forwarding_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ForwardingStatus]int)
	for rows.Next() {
		var status models.ForwardingStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func stampColumn(stamp workflow.Stamp) (string, error) {
	switch stamp {
	case workflow.StampReviewedAt:
		return "reviewed_at", nil
	case workflow.StampProcessingAt:
		return "processing_at", nil
	case workflow.StampDispatchedAt:
		return "dispatched_at", nil
	case workflow.StampDeliveredAt:
		return "delivered_at", nil
	case workflow.StampCancelledAt:
		return "cancelled_at", nil
	}
	return "", fmt.Errorf("unknown stamp column: %s", stamp)
}
