// Package workflow holds the pure transition table for forwarding requests.
// It performs no I/O; the mutation coordinator owns locking, versioning, and
// persistence.
package workflow

import (
	"strings"

	"github.com/virtualpost/forwarding-api/internal/models"
	appErrors "github.com/virtualpost/forwarding-api/pkg/errors"
)

// Stamp names the write-once timestamp field a transition sets.
type Stamp string

const (
	StampReviewedAt   Stamp = "reviewed_at"
	StampProcessingAt Stamp = "processing_at"
	StampDispatchedAt Stamp = "dispatched_at"
	StampDeliveredAt  Stamp = "delivered_at"
	StampCancelledAt  Stamp = "cancelled_at"
)

// Outcome is the accepted result of evaluating an action against a status.
type Outcome struct {
	Next  models.ForwardingStatus
	Stamp Stamp
}

type edge struct {
	from   models.ForwardingStatus
	action models.ForwardingAction
}

var transitions = map[edge]Outcome{
	{models.StatusRequested, models.ActionReview}:          {models.StatusReviewed, StampReviewedAt},
	{models.StatusRequested, models.ActionStartProcessing}: {models.StatusProcessing, StampProcessingAt},
	{models.StatusRequested, models.ActionCancel}:          {models.StatusCancelled, StampCancelledAt},
	{models.StatusReviewed, models.ActionStartProcessing}:  {models.StatusProcessing, StampProcessingAt},
	{models.StatusReviewed, models.ActionCancel}:           {models.StatusCancelled, StampCancelledAt},
	{models.StatusProcessing, models.ActionDispatch}:       {models.StatusDispatched, StampDispatchedAt},
	{models.StatusProcessing, models.ActionCancel}:         {models.StatusCancelled, StampCancelledAt},
	{models.StatusDispatched, models.ActionMarkDelivered}:  {models.StatusDelivered, StampDeliveredAt},
}

// actionOrder keeps NextActions output deterministic.
var actionOrder = []models.ForwardingAction{
	models.ActionReview,
	models.ActionStartProcessing,
	models.ActionDispatch,
	models.ActionMarkDelivered,
	models.ActionCancel,
}

// Transition evaluates (status, action, payload) and returns the accepted
// outcome or a typed rejection. The table is consulted first, so an action a
// terminal record refuses always reads as an invalid transition; payload
// preconditions then run before any state change is committed.
func Transition(current models.ForwardingStatus, action models.ForwardingAction, payload models.TransitionPayload) (Outcome, error) {
	outcome, ok := transitions[edge{current, action}]
	if !ok {
		return Outcome{}, appErrors.InvalidTransition(string(action), string(current))
	}
	if action == models.ActionDispatch {
		if strings.TrimSpace(payload.Courier) == "" {
			return Outcome{}, appErrors.InvalidPayload("dispatch requires a courier")
		}
		if strings.TrimSpace(payload.TrackingNumber) == "" {
			return Outcome{}, appErrors.InvalidPayload("dispatch requires a tracking number")
		}
	}
	return outcome, nil
}

// NextActions returns the actions the table allows from the given status, so
// callers never embed the transition table themselves. Terminal statuses
// yield an empty slice.
func NextActions(current models.ForwardingStatus) []models.ForwardingAction {
	var actions []models.ForwardingAction
	for _, action := range actionOrder {
		if _, ok := transitions[edge{current, action}]; ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// Terminal reports whether the status permits no further transitions.
func Terminal(status models.ForwardingStatus) bool {
	return len(NextActions(status)) == 0
}
