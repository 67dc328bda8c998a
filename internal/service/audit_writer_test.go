package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/pkg/jobs"
)

type auditStoreStub struct {
	audits []models.TransitionAudit
	err    error
}

func (s *auditStoreStub) Create(ctx context.Context, audit *models.TransitionAudit) error {
	if s.err != nil {
		return s.err
	}
	s.audits = append(s.audits, *audit)
	return nil
}

func TestAuditWriterHandle(t *testing.T) {
	store := &auditStoreStub{}
	writer := NewAuditWriter(store, nil)

	audit := models.TransitionAudit{
		ID:         "audit-1",
		RequestID:  "fr-1",
		OperatorID: "op-1",
		Action:     string(models.ActionReview),
		FromStatus: models.StatusRequested,
		ToStatus:   models.StatusReviewed,
		Version:    2,
	}
	require.NoError(t, writer.Handle(context.Background(), jobs.Job{ID: audit.ID, Type: "transition_audit", Payload: audit}))
	require.Len(t, store.audits, 1)
	require.Equal(t, "fr-1", store.audits[0].RequestID)
}

func TestAuditWriterDropsBadPayload(t *testing.T) {
	store := &auditStoreStub{}
	writer := NewAuditWriter(store, nil)

	require.NoError(t, writer.Handle(context.Background(), jobs.Job{ID: "x", Payload: "not an audit"}))
	require.Empty(t, store.audits)
}

func TestAuditWriterPropagatesStoreFailure(t *testing.T) {
	store := &auditStoreStub{err: errors.New("connection reset")}
	writer := NewAuditWriter(store, nil)

	err := writer.Handle(context.Background(), jobs.Job{ID: "x", Payload: models.TransitionAudit{ID: "audit-2"}})
	require.Error(t, err)
}
