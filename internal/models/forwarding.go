package models

import "time"

// ForwardingStatus enumerates workflow states for a forwarding request.
type ForwardingStatus string

const (
	StatusRequested  ForwardingStatus = "REQUESTED"
	StatusReviewed   ForwardingStatus = "REVIEWED"
	StatusProcessing ForwardingStatus = "PROCESSING"
	StatusDispatched ForwardingStatus = "DISPATCHED"
	StatusDelivered  ForwardingStatus = "DELIVERED"
	StatusCancelled  ForwardingStatus = "CANCELLED"
)

// Valid reports whether the status is a known workflow state.
func (s ForwardingStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusReviewed, StatusProcessing, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ForwardingAction enumerates operator-requested transitions.
type ForwardingAction string

const (
	ActionReview          ForwardingAction = "REVIEW"
	ActionStartProcessing ForwardingAction = "START_PROCESSING"
	ActionDispatch        ForwardingAction = "DISPATCH"
	ActionMarkDelivered   ForwardingAction = "MARK_DELIVERED"
	ActionCancel          ForwardingAction = "CANCEL"
)

// ForwardingRequest is the workflow record for one physical-mail forwarding
// request. Lock state is co-located with the row so a single guarded UPDATE
// can evaluate lock, version, and status together.
type ForwardingRequest struct {
	ID               string           `db:"id" json:"id"`
	OwnerUserID      string           `db:"owner_user_id" json:"ownerUserId"`
	SourceMailItemID string           `db:"source_mail_item_id" json:"sourceMailItemId"`
	Status           ForwardingStatus `db:"status" json:"status"`

	DestinationAddress string  `db:"destination_address" json:"destinationAddress"`
	Courier            *string `db:"courier" json:"courier,omitempty"`
	TrackingNumber     *string `db:"tracking_number" json:"trackingNumber,omitempty"`
	AdminNotes         *string `db:"admin_notes" json:"adminNotes,omitempty"`

	ReviewedAt   *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ProcessingAt *time.Time `db:"processing_at" json:"processingAt,omitempty"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatchedAt,omitempty"`
	DeliveredAt  *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Version       int64      `db:"version" json:"version"`
	LockOwner     *string    `db:"lock_owner" json:"lockOwner,omitempty"`
	LockExpiresAt *time.Time `db:"lock_expires_at" json:"lockExpiresAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ActiveLock returns the current lock owner if the lock has not expired.
// An expired lock is treated as absent everywhere.
func (r *ForwardingRequest) ActiveLock(now time.Time) (string, bool) {
	if r.LockOwner == nil || *r.LockOwner == "" {
		return "", false
	}
	if r.LockExpiresAt == nil || !r.LockExpiresAt.After(now) {
		return "", false
	}
	return *r.LockOwner, true
}

// Terminal reports whether the record refuses further transitions.
func (r *ForwardingRequest) Terminal() bool {
	return r.Status == StatusDelivered || r.Status == StatusCancelled
}

// TransitionPayload carries opaque operator-supplied fields attached to a
// transition. Courier and tracking number are mandatory for dispatch only.
type TransitionPayload struct {
	Courier        string `json:"courier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	AdminNotes     string `json:"adminNotes,omitempty"`
}

// Paging bounds shared by the stores and the HTTP surface.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ForwardingFilter constrains listing queries.
type ForwardingFilter struct {
	Statuses []ForwardingStatus
	Search   string
	Limit    int
	Offset   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"total_count"`
}
