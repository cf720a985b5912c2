package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/config"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/gateway"
	"github.com/campusfund/fund-ledger/internal/server/middleware"
	"github.com/campusfund/fund-ledger/internal/server/service"
)

// PaymentHandler initiates gateway payments: it records a pending
// transaction and hands back the signed payload for the hosted payment page.
// The transaction stays pending until the gateway callback settles it.
type PaymentHandler struct {
	transactionService service.TransactionService
	gatewayConfig      *config.GatewayConfig
	verifier           *gateway.Verifier
	logger             *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, transactionService service.TransactionService, gatewayConfig *config.GatewayConfig, verifier *gateway.Verifier) *PaymentHandler {
	return &PaymentHandler{
		transactionService: transactionService,
		gatewayConfig:      gatewayConfig,
		verifier:           verifier,
		logger:             logger,
	}
}

// Create records a pending transaction and returns the signed initiation
// payload
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
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
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        transaction.StatusPending,
		Source:        transaction.SourceGateway,
		Metadata:      map[string]any{"customer_id": req.CustomerID},
		CorrelationID: middleware.GetCorrelationID(c),
	}

	txn, _, err := h.transactionService.RecordTransaction(c.Request.Context(), accountID, candidate)
	if err != nil {
		respondRecordError(c, h.logger, accountID, err)
		return
	}

	// cust_id carries the account id so callbacks can always be attributed,
	// even when the local pending row has gone missing.
	initiation, err := gateway.BuildInitiation(h.gatewayConfig, h.verifier, txn.ID, txn.Amount, txn.Currency, accountID.String())
	if err != nil {
		h.logger.Error("Failed to build payment initiation", "transaction_id", txn.ID, "error", err)
		RespondInternalError(c)
		return
	}

	h.logger.Info("Payment initiated",
		"transaction_id", txn.ID,
		"account_id", accountID,
		"amount", txn.Amount,
	)

	RespondCreated(c, PaymentResponse{
		TransactionID: txn.ID.String(),
		PaymentURL:    initiation.PaymentURL,
		Payload:       initiation.Payload,
		Signature:     initiation.Signature,
	})
}
