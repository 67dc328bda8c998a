package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/internal/workflow"
)

func newForwardingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var forwardingRowColumns = []string{
	"id", "owner_user_id", "source_mail_item_id", "status", "destination_address", "courier",
	"tracking_number", "admin_notes", "reviewed_at", "processing_at", "dispatched_at", "delivered_at",
	"cancelled_at", "version", "lock_owner", "lock_expires_at", "created_at", "updated_at",
}

func TestForwardingRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forwarding_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.ForwardingRequest{
		OwnerUserID:        "user-1",
		SourceMailItemID:   "mail-1",
		DestinationAddress: "221B Baker Street, London",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.StatusRequested, req.Status)
	require.EqualValues(t, 1, req.Version)

	rows := sqlmock.NewRows(forwardingRowColumns).
		AddRow(req.ID, "user-1", "mail-1", "REQUESTED", "221B Baker Street, London", nil,
			nil, nil, nil, nil, nil, nil, nil, 1, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_user_id, source_mail_item_id")).
		WithArgs(req.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.Equal(t, models.StatusRequested, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_user_id, source_mail_item_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM forwarding_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows(forwardingRowColumns).
		AddRow("fr-1", "user-1", "mail-1", "REVIEWED", "1 Main St", nil,
			nil, nil, time.Now(), nil, nil, nil, nil, 2, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_user_id, source_mail_item_id")).
		WillReturnRows(rows)

	filter := models.ForwardingFilter{
		Statuses: []models.ForwardingStatus{models.StatusReviewed},
		Search:   "Main",
		Limit:    20,
	}
	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, models.StatusReviewed, items[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	params := TransitionUpdate{
		ID:              "fr-1",
		OperatorID:      "op-1",
		ExpectedVersion: 1,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusReviewed,
		Stamp:           workflow.StampReviewedAt,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forwarding_requests SET")).
		WithArgs(params.NewStatus, now, "op-1", params.LockExpiresAt, "fr-1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyTransition(context.Background(), params))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryApplyTransitionGuardFails(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	params := TransitionUpdate{
		ID:              "fr-1",
		OperatorID:      "op-2",
		ExpectedVersion: 1,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusReviewed,
		Stamp:           workflow.StampReviewedAt,
	}

	// Stale version or a live foreign lock both leave zero rows touched.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE forwarding_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.ApplyTransition(context.Background(), params)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryApplyTransitionWithPayload(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	courier := "DHL"
	tracking := "DHL-123"
	params := TransitionUpdate{
		ID:              "fr-1",
		OperatorID:      "op-1",
		ExpectedVersion: 3,
		Now:             now,
		LockExpiresAt:   now.Add(90 * time.Second),
		NewStatus:       models.StatusDispatched,
		Stamp:           workflow.StampDispatchedAt,
		Courier:         &courier,
		TrackingNumber:  &tracking,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forwarding_requests SET")).
		WithArgs(params.NewStatus, now, "op-1", params.LockExpiresAt, "DHL", "DHL-123", "fr-1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyTransition(context.Background(), params))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryApplyTransitionRejectsUnknownStamp(t *testing.T) {
	db, _, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	err := repo.ApplyTransition(context.Background(), TransitionUpdate{Stamp: workflow.Stamp("bogus")})
	require.Error(t, err)
}

func TestForwardingRepositoryReleaseLock(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forwarding_requests")).
		WithArgs(now, "fr-1", "op-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	released, err := repo.ReleaseLock(context.Background(), "fr-1", "op-1", now)
	require.NoError(t, err)
	require.True(t, released)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forwarding_requests")).
		WithArgs(now, "fr-1", "op-9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	released, err = repo.ReleaseLock(context.Background(), "fr-1", "op-9", now)
	require.NoError(t, err)
	require.False(t, released)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardingRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewForwardingRepository(db)
	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("REQUESTED", 4).
		AddRow("PROCESSING", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*)")).WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, counts[models.StatusRequested])
	require.Equal(t, 2, counts[models.StatusProcessing])
	require.NoError(t, mock.ExpectationsWereMet())
}
