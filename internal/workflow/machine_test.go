package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
	appErrors "github.com/virtualpost/forwarding-api/pkg/errors"
)

var allStatuses = []models.ForwardingStatus{
	models.StatusRequested,
	models.StatusReviewed,
	models.StatusProcessing,
	models.StatusDispatched,
	models.StatusDelivered,
	models.StatusCancelled,
}

var allActions = []models.ForwardingAction{
	models.ActionReview,
	models.ActionStartProcessing,
	models.ActionDispatch,
	models.ActionMarkDelivered,
	models.ActionCancel,
}

func TestTransitionAllowedEdges(t *testing.T) {
	dispatchPayload := models.TransitionPayload{Courier: "dhl", TrackingNumber: "JD0001"}

	cases := []struct {
		from   models.ForwardingStatus
		action models.ForwardingAction
		next   models.ForwardingStatus
		stamp  Stamp
	}{
		{models.StatusRequested, models.ActionReview, models.StatusReviewed, StampReviewedAt},
		{models.StatusRequested, models.ActionStartProcessing, models.StatusProcessing, StampProcessingAt},
		{models.StatusRequested, models.ActionCancel, models.StatusCancelled, StampCancelledAt},
		{models.StatusReviewed, models.ActionStartProcessing, models.StatusProcessing, StampProcessingAt},
		{models.StatusReviewed, models.ActionCancel, models.StatusCancelled, StampCancelledAt},
		{models.StatusProcessing, models.ActionDispatch, models.StatusDispatched, StampDispatchedAt},
		{models.StatusProcessing, models.ActionCancel, models.StatusCancelled, StampCancelledAt},
		{models.StatusDispatched, models.ActionMarkDelivered, models.StatusDelivered, StampDeliveredAt},
	}
	for _, tc := range cases {
		outcome, err := Transition(tc.from, tc.action, dispatchPayload)
		require.NoError(t, err, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.next, outcome.Next)
		assert.Equal(t, tc.stamp, outcome.Stamp)
	}
}

func TestTransitionRejectsEverythingOffTable(t *testing.T) {
	allowed := map[string]bool{}
	for _, status := range allStatuses {
		for _, action := range NextActions(status) {
			allowed[string(status)+"/"+string(action)] = true
		}
	}
	// Both a complete and an empty payload: an off-table pair is an invalid
	// transition regardless of what the payload carries.
	payloads := []models.TransitionPayload{
		{Courier: "dhl", TrackingNumber: "JD0001"},
		{},
	}
	for _, payload := range payloads {
		for _, status := range allStatuses {
			for _, action := range allActions {
				if allowed[string(status)+"/"+string(action)] {
					continue
				}
				_, err := Transition(status, action, payload)
				require.Error(t, err, "%s from %s", action, status)
				appErr := appErrors.FromError(err)
				assert.Equal(t, appErrors.CodeInvalidTransition, appErr.Code)
				details, ok := appErr.Details.(appErrors.InvalidTransitionDetails)
				require.True(t, ok)
				assert.Equal(t, string(status), details.CurrentStatus)
			}
		}
	}
}

func TestTransitionTerminalStatusesRejectAll(t *testing.T) {
	for _, status := range []models.ForwardingStatus{models.StatusDelivered, models.StatusCancelled} {
		assert.True(t, Terminal(status))
		assert.Empty(t, NextActions(status))
	}
	assert.False(t, Terminal(models.StatusRequested))
}

func TestTransitionDispatchPayloadPreconditions(t *testing.T) {
	_, err := Transition(models.StatusProcessing, models.ActionDispatch, models.TransitionPayload{TrackingNumber: "JD0001"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidPayload, appErrors.FromError(err).Code)

	_, err = Transition(models.StatusProcessing, models.ActionDispatch, models.TransitionPayload{Courier: "dhl", TrackingNumber: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidPayload, appErrors.FromError(err).Code)

	// The table is consulted first: a bad dispatch from a status that does
	// not allow dispatch reads as INVALID_TRANSITION, not INVALID_PAYLOAD.
	_, err = Transition(models.StatusRequested, models.ActionDispatch, models.TransitionPayload{})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.FromError(err).Code)

	// Terminal records stay immutable even when the payload is also bad.
	_, err = Transition(models.StatusDelivered, models.ActionDispatch, models.TransitionPayload{})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.FromError(err).Code)
}

func TestNextActionsMatchesTable(t *testing.T) {
	assert.Equal(t, []models.ForwardingAction{models.ActionReview, models.ActionStartProcessing, models.ActionCancel}, NextActions(models.StatusRequested))
	assert.Equal(t, []models.ForwardingAction{models.ActionStartProcessing, models.ActionCancel}, NextActions(models.StatusReviewed))
	assert.Equal(t, []models.ForwardingAction{models.ActionDispatch, models.ActionCancel}, NextActions(models.StatusProcessing))
	assert.Equal(t, []models.ForwardingAction{models.ActionMarkDelivered}, NextActions(models.StatusDispatched))
}
