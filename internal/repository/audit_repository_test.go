package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
)

func TestAuditRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newForwardingRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transition_audits")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	audit := &models.TransitionAudit{
		RequestID:  "fr-1",
		OperatorID: "op-1",
		Action:     string(models.ActionReview),
		FromStatus: models.StatusRequested,
		ToStatus:   models.StatusReviewed,
		Version:    2,
	}
	require.NoError(t, repo.Create(context.Background(), audit))
	require.NotEmpty(t, audit.ID)
	require.False(t, audit.CreatedAt.IsZero())

	rows := sqlmock.NewRows([]string{"id", "request_id", "operator_id", "action", "from_status", "to_status", "version", "note", "created_at"}).
		AddRow(audit.ID, "fr-1", "op-1", "REVIEW", "REQUESTED", "REVIEWED", 2, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_id, operator_id")).
		WithArgs("fr-1").
		WillReturnRows(rows)

	audits, err := repo.ListByRequest(context.Background(), "fr-1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, "op-1", audits[0].OperatorID)
	require.NoError(t, mock.ExpectationsWereMet())
}
