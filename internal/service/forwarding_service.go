package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/virtualpost/forwarding-api/internal/dto"
	"github.com/virtualpost/forwarding-api/internal/models"
	"github.com/virtualpost/forwarding-api/internal/repository"
	"github.com/virtualpost/forwarding-api/internal/workflow"
	appErrors "github.com/virtualpost/forwarding-api/pkg/errors"
	"github.com/virtualpost/forwarding-api/pkg/jobs"
)

// Transition outcome labels for metrics.
const (
	outcomeAccepted          = "accepted"
	outcomeNotFound          = "not_found"
	outcomeLockHeld          = "lock_held"
	outcomeVersionConflict   = "version_conflict"
	outcomeInvalidTransition = "invalid_transition"
	outcomeInvalidPayload    = "invalid_payload"
	outcomeError             = "error"
)

type forwardingStore interface {
	Create(ctx context.Context, req *models.ForwardingRequest) error
	GetByID(ctx context.Context, id string) (*models.ForwardingRequest, error)
	List(ctx context.Context, filter models.ForwardingFilter) ([]models.ForwardingRequest, int, error)
	ApplyTransition(ctx context.Context, params repository.TransitionUpdate) error
	ReleaseLock(ctx context.Context, id, operatorID string, now time.Time) (bool, error)
	CountByStatus(ctx context.Context) (map[models.ForwardingStatus]int, error)
}

type auditSink interface {
	TryEnqueue(job jobs.Job) error
}

type transitionObserver interface {
	ObserveTransition(action, outcome string)
	ObserveLockContention()
}

type manifestRenderer interface {
	Render(req *models.ForwardingRequest) ([]byte, error)
}

type auditTrailReader interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.TransitionAudit, error)
}

// ForwardingService is the concurrency-safe mutation coordinator plus the
// query surface. It is the only writer path for forwarding requests: lock
// evaluation, version check, the transition table, and the store's
// compare-and-set all compose into one attempt per call, with no internal
// retries. Contention comes back to the caller as a typed error.
type ForwardingService struct {
	store      forwardingStore
	audits     auditSink
	auditTrail auditTrailReader
	metrics    transitionObserver
	manifests  manifestRenderer
	validator  *validator.Validate
	logger     *zap.Logger
	lockTTL    time.Duration
	now        func() time.Time
}

// ForwardingServiceOption configures the service.
type ForwardingServiceOption func(*ForwardingService)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ForwardingServiceOption {
	return func(s *ForwardingService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditSink enables asynchronous audit-trail emission.
func WithAuditSink(sink auditSink) ForwardingServiceOption {
	return func(s *ForwardingService) {
		s.audits = sink
	}
}

// WithMetrics wires transition instrumentation.
func WithMetrics(observer transitionObserver) ForwardingServiceOption {
	return func(s *ForwardingService) {
		s.metrics = observer
	}
}

// WithManifestRenderer enables dispatch manifest generation.
func WithManifestRenderer(renderer manifestRenderer) ForwardingServiceOption {
	return func(s *ForwardingService) {
		s.manifests = renderer
	}
}

// WithAuditTrail enables the per-request audit history view.
func WithAuditTrail(reader auditTrailReader) ForwardingServiceOption {
	return func(s *ForwardingService) {
		s.auditTrail = reader
	}
}

// NewForwardingService constructs the coordinator.
func NewForwardingService(store forwardingStore, lockTTL time.Duration, logger *zap.Logger, opts ...ForwardingServiceOption) *ForwardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 90 * time.Second
	}
	svc := &ForwardingService{
		store:     store,
		validator: validator.New(),
		logger:    logger,
		lockTTL:   lockTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create registers a new forwarding request at Requested, version 1, no
// lock. Intake is a plain insert and never passes through the transition
// compare-and-set.
func (s *ForwardingService) Create(ctx context.Context, req dto.CreateForwardingRequest) (*dto.RequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intake payload")
	}

	record := &models.ForwardingRequest{
		OwnerUserID:        strings.TrimSpace(req.OwnerUserID),
		SourceMailItemID:   strings.TrimSpace(req.SourceMailItemID),
		DestinationAddress: strings.TrimSpace(req.DestinationAddress),
		Status:             models.StatusRequested,
		Version:            1,
		CreatedAt:          s.now(),
	}
	if note := strings.TrimSpace(req.AdminNotes); note != "" {
		record.AdminNotes = &note
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create forwarding request")
	}

	s.emitAudit(record.ID, "system", models.AuditActionIntake, record.Status, record.Status, record.Version, nil)
	return s.detail(record), nil
}

// Get returns the record plus next-action hints. Reads never acquire or
// require the lock.
func (s *ForwardingService) Get(ctx context.Context, id string) (*dto.RequestDetail, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forwarding request")
	}
	return s.detail(record), nil
}

// List returns a page of records with next-action hints, straight from the
// store so committed writes are visible immediately.
func (s *ForwardingService) List(ctx context.Context, query dto.ListQuery) ([]dto.RequestDetail, int, error) {
	filter := models.ForwardingFilter{
		Statuses: query.Statuses,
		Search:   strings.TrimSpace(query.Search),
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list forwarding requests")
	}
	details := make([]dto.RequestDetail, 0, len(records))
	for i := range records {
		details = append(details, *s.detail(&records[i]))
	}
	return details, total, nil
}

// AttemptTransition advances one record through the workflow. The guards run
// against a fresh read, then the store's compare-and-set re-evaluates them
// atomically; if the CAS loses a race, the loser is reclassified from the
// committed row so exactly one of two racing calls ever succeeds.
func (s *ForwardingService) AttemptTransition(ctx context.Context, id, operatorID string, expectedVersion int64, action models.ForwardingAction, payload models.TransitionPayload) (*dto.RequestDetail, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "operator identity is required")
	}

	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(action, outcomeNotFound)
			return nil, appErrors.ErrNotFound
		}
		s.observe(action, outcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forwarding request")
	}

	now := s.now()

	if owner, held := record.ActiveLock(now); held && owner != operatorID {
		s.observe(action, outcomeLockHeld)
		s.contention()
		return nil, appErrors.LockHeld(owner, record.LockExpiresAt.UTC())
	}
	if record.Version != expectedVersion {
		s.observe(action, outcomeVersionConflict)
		return nil, appErrors.VersionConflict(s.detail(record))
	}

	outcome, err := workflow.Transition(record.Status, action, payload)
	if err != nil {
		if appErrors.Is(err, appErrors.CodeInvalidPayload) {
			s.observe(action, outcomeInvalidPayload)
		} else {
			s.observe(action, outcomeInvalidTransition)
		}
		return nil, err
	}

	params := repository.TransitionUpdate{
		ID:              id,
		OperatorID:      operatorID,
		ExpectedVersion: expectedVersion,
		Now:             now,
		LockExpiresAt:   now.Add(s.lockTTL),
		NewStatus:       outcome.Next,
		Stamp:           outcome.Stamp,
	}
	if courier := strings.TrimSpace(payload.Courier); courier != "" {
		params.Courier = &courier
	}
	if tracking := strings.TrimSpace(payload.TrackingNumber); tracking != "" {
		params.TrackingNumber = &tracking
	}
	if notes := strings.TrimSpace(payload.AdminNotes); notes != "" {
		params.AdminNotes = &notes
	}

	if err := s.store.ApplyTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyLostRace(ctx, id, operatorID, expectedVersion, action, now)
		}
		s.observe(action, outcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	updated := s.applyLocally(record, params)
	s.observe(action, outcomeAccepted)
	s.emitAudit(id, operatorID, string(action), record.Status, updated.Status, updated.Version, params.AdminNotes)
	s.logger.Info("transition applied",
		zap.String("request_id", id),
		zap.String("operator_id", operatorID),
		zap.String("action", string(action)),
		zap.String("from", string(record.Status)),
		zap.String("to", string(updated.Status)),
		zap.Int64("version", updated.Version),
	)
	return s.detail(updated), nil
}

// classifyLostRace re-reads the committed row to decide how the caller lost:
// the record vanished, another operator now holds the lock window, or the
// version moved underneath the caller.
func (s *ForwardingService) classifyLostRace(ctx context.Context, id, operatorID string, expectedVersion int64, action models.ForwardingAction, now time.Time) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(action, outcomeNotFound)
			return appErrors.ErrNotFound
		}
		s.observe(action, outcomeError)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload forwarding request")
	}
	if owner, held := current.ActiveLock(now); held && owner != operatorID {
		s.observe(action, outcomeLockHeld)
		s.contention()
		return appErrors.LockHeld(owner, current.LockExpiresAt.UTC())
	}
	if current.Version != expectedVersion {
		s.observe(action, outcomeVersionConflict)
		return appErrors.VersionConflict(s.detail(current))
	}
	s.observe(action, outcomeError)
	return appErrors.Clone(appErrors.ErrConflict, "concurrent update, retry with fresh state")
}

// ReleaseLock voluntarily frees a record before TTL expiry. Releasing a lock
// the caller does not own is a no-op, never an error.
func (s *ForwardingService) ReleaseLock(ctx context.Context, id, operatorID string) (*dto.ReleaseLockResponse, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "operator identity is required")
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forwarding request")
	}

	released, err := s.store.ReleaseLock(ctx, id, operatorID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release lock")
	}
	if released {
		s.emitAudit(id, operatorID, models.AuditActionLockRelease, "", "", 0, nil)
	}
	return &dto.ReleaseLockResponse{Released: released}, nil
}

// Manifest renders the courier dispatch manifest PDF. Only records that
// reached dispatch carry the courier and tracking data it needs.
func (s *ForwardingService) Manifest(ctx context.Context, id string) ([]byte, error) {
	if s.manifests == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "manifest rendering not configured")
	}
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forwarding request")
	}
	if record.Status != models.StatusDispatched && record.Status != models.StatusDelivered {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "manifest is available once the request is dispatched")
	}
	payload, err := s.manifests.Render(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render manifest")
	}
	return payload, nil
}

// AuditTrail returns the transition history for one request, oldest first.
func (s *ForwardingService) AuditTrail(ctx context.Context, id string) ([]models.TransitionAudit, error) {
	if s.auditTrail == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "audit trail not configured")
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forwarding request")
	}
	audits, err := s.auditTrail.ListByRequest(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return audits, nil
}

// detail pairs a record with its allowed actions and hides expired lock
// state from API views.
func (s *ForwardingService) detail(record *models.ForwardingRequest) *dto.RequestDetail {
	view := *record
	if _, held := view.ActiveLock(s.now()); !held {
		view.LockOwner = nil
		view.LockExpiresAt = nil
	}
	return &dto.RequestDetail{
		ForwardingRequest: &view,
		NextActions:       workflow.NextActions(view.Status),
	}
}

// applyLocally mirrors the store-side CAS onto the already-loaded record so
// the response reflects the committed row without a second read.
func (s *ForwardingService) applyLocally(record *models.ForwardingRequest, params repository.TransitionUpdate) *models.ForwardingRequest {
	updated := *record
	updated.Status = params.NewStatus
	updated.Version++
	updated.UpdatedAt = params.Now
	operator := params.OperatorID
	expires := params.LockExpiresAt
	updated.LockOwner = &operator
	updated.LockExpiresAt = &expires

	stamp := params.Now
	switch params.Stamp {
	case workflow.StampReviewedAt:
		if updated.ReviewedAt == nil {
			updated.ReviewedAt = &stamp
		}
	case workflow.StampProcessingAt:
		if updated.ProcessingAt == nil {
			updated.ProcessingAt = &stamp
		}
	case workflow.StampDispatchedAt:
		if updated.DispatchedAt == nil {
			updated.DispatchedAt = &stamp
		}
	case workflow.StampDeliveredAt:
		if updated.DeliveredAt == nil {
			updated.DeliveredAt = &stamp
		}
	case workflow.StampCancelledAt:
		if updated.CancelledAt == nil {
			updated.CancelledAt = &stamp
		}
	}
	if params.Courier != nil {
		updated.Courier = params.Courier
	}
	if params.TrackingNumber != nil {
		updated.TrackingNumber = params.TrackingNumber
	}
	if params.AdminNotes != nil {
		updated.AdminNotes = params.AdminNotes
	}
	return &updated
}

func (s *ForwardingService) emitAudit(requestID, operatorID, action string, from, to models.ForwardingStatus, version int64, note *string) {
	if s.audits == nil {
		return
	}
	audit := models.TransitionAudit{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		OperatorID: operatorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Version:    version,
		Note:       note,
		CreatedAt:  s.now(),
	}
	// Audits are advisory; a full buffer drops the row rather than stall
	// the mutation that produced it.
	job := jobs.Job{ID: audit.ID, Type: "transition_audit", Payload: audit}
	if err := s.audits.TryEnqueue(job); err != nil {
		s.logger.Warn("audit dropped", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *ForwardingService) observe(action models.ForwardingAction, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(action), outcome)
	}
}

func (s *ForwardingService) contention() {
	if s.metrics != nil {
		s.metrics.ObserveLockContention()
	}
}
