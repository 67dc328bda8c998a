package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/internal/workflow"
)

// MemoryRepository is the reference store implementation. It applies exactly
// the same lock/version guard as the SQL store under one mutex, which stands
// in for the database's row-level atomicity. Used by tests and local runs
// without PostgreSQL.
type MemoryRepository struct {
	mu       sync.Mutex
	requests map[string]*models.ForwardingRequest
}

// NewMemoryRepository constructs an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[string]*models.ForwardingRequest)}
}

// Create inserts a new request at version 1 with no lock.
func (r *MemoryRepository) Create(ctx context.Context, req *models.ForwardingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.StatusRequested
	}
	if req.Version == 0 {
		req.Version = 1
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt

	clone := *req
	r.requests[req.ID] = &clone
	return nil
}

// GetByID fetches a request by identifier.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.ForwardingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

// List returns requests matching the filter (newest first) plus the total.
func (r *MemoryRepository) List(ctx context.Context, filter models.ForwardingFilter) ([]models.ForwardingRequest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]models.ForwardingRequest, 0, len(r.requests))
	for _, req := range r.requests {
		if !matchesFilter(req, filter) {
			continue
		}
		matched = append(matched, *req)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.DefaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.ForwardingRequest{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ApplyTransition mirrors the SQL compare-and-set: the write happens only if
// the version matches and no other operator holds a live lock. sql.ErrNoRows
// reports a failed guard.
func (r *MemoryRepository) ApplyTransition(ctx context.Context, params TransitionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if req.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	if owner, held := req.ActiveLock(params.Now); held && owner != params.OperatorID {
		return sql.ErrNoRows
	}

	req.Status = params.NewStatus
	req.Version++
	req.UpdatedAt = params.Now
	operator := params.OperatorID
	expires := params.LockExpiresAt
	req.LockOwner = &operator
	req.LockExpiresAt = &expires

	stamp := params.Now
	switch params.Stamp {
	case workflow.StampReviewedAt:
		if req.ReviewedAt == nil {
			req.ReviewedAt = &stamp
		}
	case workflow.StampProcessingAt:
		if req.ProcessingAt == nil {
			req.ProcessingAt = &stamp
		}
	case workflow.StampDispatchedAt:
		if req.DispatchedAt == nil {
			req.DispatchedAt = &stamp
		}
	case workflow.StampDeliveredAt:
		if req.DeliveredAt == nil {
			req.DeliveredAt = &stamp
		}
	case workflow.StampCancelledAt:
		if req.CancelledAt == nil {
			req.CancelledAt = &stamp
		}
	}

	if params.Courier != nil {
		value := *params.Courier
		req.Courier = &value
	}
	if params.TrackingNumber != nil {
		value := *params.TrackingNumber
		req.TrackingNumber = &value
	}
	if params.AdminNotes != nil {
		value := *params.AdminNotes
		req.AdminNotes = &value
	}
	return nil
}

// ReleaseLock clears the lock if the caller owns it or it has expired.
func (r *MemoryRepository) ReleaseLock(ctx context.Context, id, operatorID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return false, nil
	}
	if req.LockOwner == nil {
		return false, nil
	}
	expired := req.LockExpiresAt == nil || !req.LockExpiresAt.After(now)
	if *req.LockOwner != operatorID && !expired {
		return false, nil
	}
	req.LockOwner = nil
	req.LockExpiresAt = nil
	req.UpdatedAt = now
	return true, nil
}

// CountByStatus returns the queue breakdown.
func (r *MemoryRepository) CountByStatus(ctx context.Context) (map[models.ForwardingStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[models.ForwardingStatus]int)
	for _, req := range r.requests {
		counts[req.Status]++
	}
	return counts, nil
}

func matchesFilter(req *models.ForwardingRequest, filter models.ForwardingFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if req.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		tracking := ""
		if req.TrackingNumber != nil {
			tracking = *req.TrackingNumber
		}
		haystacks := []string{req.ID, req.OwnerUserID, req.DestinationAddress, tracking}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
