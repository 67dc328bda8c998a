package dto

import (
	"time"

	"github.com/virtualpost/forwarding-api/internal/models"
)

// CreateForwardingRequest is the intake payload.
type CreateForwardingRequest struct {
	OwnerUserID        string `json:"ownerUserId" validate:"required"`
	SourceMailItemID   string `json:"sourceMailItemId" validate:"required"`
	DestinationAddress string `json:"destinationAddress" validate:"required"`
	AdminNotes         string `json:"adminNotes"`
}

// TransitionRequest asks the coordinator to advance a record. The caller
// must echo the version it last read; a stale value is rejected rather than
// silently overwriting newer state.
type TransitionRequest struct {
	Action          models.ForwardingAction  `json:"action" binding:"required"`
	ExpectedVersion int64                    `json:"expectedVersion" binding:"required,min=1"`
	Payload         models.TransitionPayload `json:"payload"`
}

// RequestDetail is a record plus the actions the transition table allows
// from its current status, so clients never embed the table themselves.
type RequestDetail struct {
	*models.ForwardingRequest
	NextActions []models.ForwardingAction `json:"nextActions"`
}

// ReleaseLockResponse acknowledges a voluntary lock release. Released is
// false when the caller did not own a live lock; that is not an error.
type ReleaseLockResponse struct {
	Released bool `json:"released"`
}

// ListQuery mirrors supported listing filters.
type ListQuery struct {
	Statuses []models.ForwardingStatus
	Search   string
	Limit    int
	Offset   int
}

// Clamp normalizes paging to the window the stores enforce, so the echoed
// pagination always matches the rows actually returned.
func (q *ListQuery) Clamp() {
	if q.Limit <= 0 || q.Limit > models.MaxPageSize {
		q.Limit = models.DefaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// QueueStats is the dashboard breakdown of requests per status.
type QueueStats struct {
	Counts      map[models.ForwardingStatus]int `json:"counts"`
	Total       int                             `json:"total"`
	GeneratedAt time.Time                       `json:"generatedAt"`
}
