package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/audit"
)

// AuditHandler serves read-only reports from the archive store. The archive
// is eventually consistent with the ledger: events appear after the outbox
// poller and archiver have run.
type AuditHandler struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *slog.Logger, auditRepo audit.Repository) *AuditHandler {
	return &AuditHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// GetByTransactionID returns the archived events for one transaction
func (h *AuditHandler) GetByTransactionID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	events, err := h.auditRepo.GetByTransactionID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrEventNotFound{}) {
			RespondNotFound(c, "No audit events for transaction")
			return
		}
		h.logger.Error("Failed to load audit events", "transaction_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEventsToResponses(events))
}

// GetByAccountID returns the paginated archived events for an account,
// newest first
func (h *AuditHandler) GetByAccountID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	events, err := h.auditRepo.GetByAccountID(c.Request.Context(), id, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to load audit events", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	total, err := h.auditRepo.CountByAccountID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to count audit events", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, mapEventsToResponses(events), pagination.Page, pagination.PerPage, int(total))
}

// GetByTimeRange returns archived events between two RFC3339 timestamps
func (h *AuditHandler) GetByTimeRange(c *gin.Context) {
	var params TimeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid time range parameters", "error", err)
		RespondBadRequest(c, "Invalid time range parameters")
		return
	}

	from, err := time.Parse(time.RFC3339, params.From)
	if err != nil {
		RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, params.To)
	if err != nil {
		RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
		return
	}
	if !to.After(from) {
		RespondBadRequest(c, "'to' must be after 'from'")
		return
	}

	offset := (params.Page - 1) * params.PerPage
	events, err := h.auditRepo.GetByTimeRange(c.Request.Context(), from, to, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to load audit events by time range", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEventsToResponses(events))
}

// mapEventsToResponses maps archive events to response DTOs
func mapEventsToResponses(events []*audit.Event) []AuditEventResponse {
	responses := make([]AuditEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, AuditEventResponse{
			TransactionID:     event.TransactionID.String(),
			AccountID:         event.AccountID.String(),
			Kind:              string(event.Kind),
			Amount:            event.Amount,
			Currency:          event.Currency,
			Status:            string(event.Status),
			Source:            event.Source,
			ExternalReference: event.ExternalReference,
			BalanceAfter:      event.BalanceAfter,
			CorrelationID:     event.CorrelationID,
			OccurredAt:        event.OccurredAt.Format(time.RFC3339),
		})
	}
	return responses
}
