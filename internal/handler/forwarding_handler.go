package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virtualpost/forwarding-api/internal/dto"
	"github.com/virtualpost/forwarding-api/internal/models"
	appErrors "github.com/virtualpost/forwarding-api/pkg/errors"
	"github.com/virtualpost/forwarding-api/pkg/response"
)

type forwardingService interface {
	Create(ctx context.Context, req dto.CreateForwardingRequest) (*dto.RequestDetail, error)
	Get(ctx context.Context, id string) (*dto.RequestDetail, error)
	List(ctx context.Context, query dto.ListQuery) ([]dto.RequestDetail, int, error)
	AttemptTransition(ctx context.Context, id, operatorID string, expectedVersion int64, action models.ForwardingAction, payload models.TransitionPayload) (*dto.RequestDetail, error)
	ReleaseLock(ctx context.Context, id, operatorID string) (*dto.ReleaseLockResponse, error)
	Manifest(ctx context.Context, id string) ([]byte, error)
	AuditTrail(ctx context.Context, id string) ([]models.TransitionAudit, error)
}

type statsService interface {
	Queue(ctx context.Context) (*dto.QueueStats, error)
}

// ForwardingHandler exposes REST endpoints for the forwarding lifecycle.
type ForwardingHandler struct {
	service forwardingService
	stats   statsService
}

// NewForwardingHandler constructs the handler.
func NewForwardingHandler(service forwardingService, stats statsService) *ForwardingHandler {
	return &ForwardingHandler{service: service, stats: stats}
}

// Create godoc
// @Summary Register a forwarding request (intake)
// @Tags Forwarding
// @Accept json
// @Produce json
// @Param payload body dto.CreateForwardingRequest true "Intake payload"
// @Success 201 {object} response.Envelope
// @Router /forwarding-requests [post]
func (h *ForwardingHandler) Create(c *gin.Context) {
	var req dto.CreateForwardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid intake payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a forwarding request with next-action hints
// @Tags Forwarding
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests/{id} [get]
func (h *ForwardingHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List forwarding requests
// @Tags Forwarding
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param q query string false "Search text"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests [get]
func (h *ForwardingHandler) List(c *gin.Context) {
	query := dto.ListQuery{
		Search: strings.TrimSpace(c.Query("q")),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ForwardingStatus, 0, len(parts))
		for _, part := range parts {
			status := models.ForwardingStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !status.Valid() {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter: "+string(status)))
				return
			}
			statuses = append(statuses, status)
		}
		query.Statuses = statuses
	}
	query.Clamp()

	details, total, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Limit: query.Limit, Offset: query.Offset, TotalCount: total}
	response.JSON(c, http.StatusOK, details, pagination)
}

// Transition godoc
// @Summary Attempt a workflow transition
// @Tags Forwarding
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionRequest true "Transition request"
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests/{id}/transitions [post]
func (h *ForwardingHandler) Transition(c *gin.Context) {
	operator := operatorFromContext(c)
	if operator == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "operator identity is required"))
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	detail, err := h.service.AttemptTransition(c.Request.Context(), c.Param("id"), operator.ID, req.ExpectedVersion, req.Action, req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ReleaseLock godoc
// @Summary Voluntarily release an edit lock
// @Tags Forwarding
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests/{id}/release-lock [post]
func (h *ForwardingHandler) ReleaseLock(c *gin.Context) {
	operator := operatorFromContext(c)
	if operator == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "operator identity is required"))
		return
	}
	ack, err := h.service.ReleaseLock(c.Request.Context(), c.Param("id"), operator.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ack, nil)
}

// Stats godoc
// @Summary Queue breakdown by status
// @Tags Forwarding
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests/stats [get]
func (h *ForwardingHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "stats service not configured"))
		return
	}
	stats, err := h.stats.Queue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Manifest godoc
// @Summary Download the dispatch manifest PDF
// @Tags Forwarding
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Router /forwarding-requests/{id}/manifest [get]
func (h *ForwardingHandler) Manifest(c *gin.Context) {
	payload, err := h.service.Manifest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="manifest-`+c.Param("id")+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// Audit godoc
// @Summary Transition history for a forwarding request
// @Tags Forwarding
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /forwarding-requests/{id}/audit [get]
func (h *ForwardingHandler) Audit(c *gin.Context) {
	audits, err := h.service.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, audits, nil)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
