package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/pkg/jobs"
)

type auditStore interface {
	Create(ctx context.Context, audit *models.TransitionAudit) error
}

// AuditWriter drains the audit queue into the store. Audit rows are
// advisory; a write failure is retried by the queue and eventually dropped
// without affecting the mutation that produced it.
type AuditWriter struct {
	store  auditStore
	logger *zap.Logger
}

// NewAuditWriter constructs the writer.
func NewAuditWriter(store auditStore, logger *zap.Logger) *AuditWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWriter{store: store, logger: logger}
}

// Handle persists one queued audit job.
func (w *AuditWriter) Handle(ctx context.Context, job jobs.Job) error {
	audit, ok := job.Payload.(models.TransitionAudit)
	if !ok {
		w.logger.Warn("dropping audit job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := w.store.Create(ctx, &audit); err != nil {
		return fmt.Errorf("persist audit %s: %w", audit.ID, err)
	}
	return nil
}
