package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/internal/workflow"
)

func seedMemoryRequest(t *testing.T, repo *MemoryRepository) *models.ForwardingRequest {
	t.Helper()
	req := &models.ForwardingRequest{
		OwnerUserID:        "user-1",
		SourceMailItemID:   "mail-1",
		DestinationAddress: "12 Harbour Road, Rotterdam",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	return req
}

func TestMemoryRepositoryApplyTransitionGuards(t *testing.T) {
	repo := NewMemoryRepository()
	req := seedMemoryRequest(t, repo)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	params := TransitionUpdate{
		ID:              req.ID,
		OperatorID:      "op-1",
		ExpectedVersion: 1,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusReviewed,
		Stamp:           workflow.StampReviewedAt,
	}
	require.NoError(t, repo.ApplyTransition(context.Background(), params))

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusReviewed, stored.Status)
	require.EqualValues(t, 2, stored.Version)
	require.NotNil(t, stored.ReviewedAt)
	require.NotNil(t, stored.LockOwner)
	require.Equal(t, "op-1", *stored.LockOwner)

	// Same expected version a second time loses the race.
	err = repo.ApplyTransition(context.Background(), params)
	require.ErrorIs(t, err, sql.ErrNoRows)

	// Correct version but a live foreign lock also fails.
	params.OperatorID = "op-2"
	params.ExpectedVersion = 2
	err = repo.ApplyTransition(context.Background(), params)
	require.ErrorIs(t, err, sql.ErrNoRows)

	// After the lock expires the same write goes through.
	params.Now = now.Add(2 * time.Minute)
	params.LockExpiresAt = params.Now.Add(90 * time.Second)
	params.NewStatus = models.StatusProcessing
	params.Stamp = workflow.StampProcessingAt
	require.NoError(t, repo.ApplyTransition(context.Background(), params))

	stored, err = repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, stored.Version)
	require.Equal(t, "op-2", *stored.LockOwner)
}

func TestMemoryRepositoryStampsWriteOnce(t *testing.T) {
	repo := NewMemoryRepository()
	req := seedMemoryRequest(t, repo)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := TransitionUpdate{
		ID:              req.ID,
		OperatorID:      "op-1",
		ExpectedVersion: 1,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusReviewed,
		Stamp:           workflow.StampReviewedAt,
	}
	require.NoError(t, repo.ApplyTransition(context.Background(), first))

	// Cancel and note the reviewed stamp keeps its original value.
	second := first
	second.ExpectedVersion = 2
	second.Now = now.Add(time.Hour)
	second.NewStatus = models.StatusCancelled
	second.Stamp = workflow.StampCancelledAt
	require.NoError(t, repo.ApplyTransition(context.Background(), second))

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, now, *stored.ReviewedAt)
	require.Equal(t, second.Now, *stored.CancelledAt)
}

func TestMemoryRepositoryReleaseLock(t *testing.T) {
	repo := NewMemoryRepository()
	req := seedMemoryRequest(t, repo)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	released, err := repo.ReleaseLock(context.Background(), req.ID, "op-1", now)
	require.NoError(t, err)
	require.False(t, released, "nothing to release on an unlocked record")

	require.NoError(t, repo.ApplyTransition(context.Background(), TransitionUpdate{
		ID:              req.ID,
		OperatorID:      "op-1",
		ExpectedVersion: 1,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusReviewed,
		Stamp:           workflow.StampReviewedAt,
	}))

	released, err = repo.ReleaseLock(context.Background(), req.ID, "op-2", now.Add(time.Second))
	require.NoError(t, err)
	require.False(t, released, "live lock belongs to someone else")

	released, err = repo.ReleaseLock(context.Background(), req.ID, "op-1", now.Add(time.Second))
	require.NoError(t, err)
	require.True(t, released)

	stored, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Nil(t, stored.LockOwner)
	require.Nil(t, stored.LockExpiresAt)
}

func TestMemoryRepositoryListAndCount(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		req := &models.ForwardingRequest{
			OwnerUserID:        "user-1",
			SourceMailItemID:   "mail-1",
			DestinationAddress: "12 Harbour Road, Rotterdam",
			CreatedAt:          base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), req))
	}
	other := &models.ForwardingRequest{
		OwnerUserID:        "user-2",
		SourceMailItemID:   "mail-9",
		Status:             models.StatusDelivered,
		DestinationAddress: "9 Elm Street, Boston",
		CreatedAt:          base.Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), other))

	items, total, err := repo.List(context.Background(), models.ForwardingFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, items, 2)
	require.Equal(t, other.ID, items[0].ID, "newest first")

	items, total, err = repo.List(context.Background(), models.ForwardingFilter{Search: "harbour"})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 3)

	items, total, err = repo.List(context.Background(), models.ForwardingFilter{
		Statuses: []models.ForwardingStatus{models.StatusDelivered},
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, other.ID, items[0].ID)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, counts[models.StatusRequested])
	require.Equal(t, 1, counts[models.StatusDelivered])

	_, err = repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
