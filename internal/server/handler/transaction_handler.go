package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/ledger"
	"github.com/campusfund/fund-ledger/internal/server/middleware"
	"github.com/campusfund/fund-ledger/internal/server/service"
)

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create records a new transaction against an account. When the request
// carries an external reference already known for the account, the existing
// transaction is returned with 200 instead of 201.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		h.logger.Error("Invalid account ID", "account_id", req.AccountID, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	candidate := transaction.Candidate{
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            transaction.Status(req.Status),
		Source:            transaction.SourceManual,
		ExternalReference: req.ExternalReference,
		Metadata:          req.Metadata,
		CorrelationID:     middleware.GetCorrelationID(c),
	}

	txn, existing, err := h.transactionService.RecordTransaction(c.Request.Context(), accountID, candidate)
	if err != nil {
		respondRecordError(c, h.logger, accountID, err)
		return
	}

	if existing {
		RespondOK(c, mapTransactionToResponse(txn))
		return
	}

	RespondCreated(c, mapTransactionToResponse(txn))
}

// GetByID retrieves transaction details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// GetByAccountID retrieves paginated transaction history for an account
func (h *TransactionHandler) GetByAccountID(c *gin.Context) {
	accountIDParam := c.Param("id")
	accountID, err := uuid.Parse(accountIDParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "account_id", accountIDParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.transactionService.ListTransactionsByAccount(
		c.Request.Context(),
		accountID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to list transactions", "account_id", accountIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	transactions := make([]TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, mapTransactionToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PerPage, int(total))
}

// respondRecordError maps ledger recording failures onto HTTP statuses
func respondRecordError(c *gin.Context, logger *slog.Logger, accountID uuid.UUID, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, ledger.ErrRecordConflict{}):
		RespondConflict(c, "Account is under contention, retry the request")
	case errors.Is(err, transaction.ErrDuplicateReference{}):
		RespondConflict(c, "A transaction with this external reference already exists")
	case errors.Is(err, transaction.ErrZeroAmount),
		errors.Is(err, transaction.ErrInvalidCurrency),
		errors.Is(err, transaction.ErrInvalidStatus):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Failed to record transaction", "account_id", accountID, "error", err)
		RespondInternalError(c)
	}
}

// mapTransactionToResponse maps a transaction entity to a response DTO
func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:                txn.ID.String(),
		AccountID:         txn.AccountID.String(),
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		Status:            string(txn.Status),
		Source:            txn.Source,
		ExternalReference: txn.ExternalReference,
		Metadata:          txn.Metadata,
		CreatedAt:         txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         txn.UpdatedAt.Format(time.RFC3339),
	}

	if txn.SettledAt != nil {
		response.SettledAt = txn.SettledAt.Format(time.RFC3339)
	}

	return response
}
