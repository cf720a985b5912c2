package handler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/config"
	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/gateway"
	"github.com/campusfund/fund-ledger/internal/ledger"
	"github.com/campusfund/fund-ledger/internal/server/middleware"
	"github.com/campusfund/fund-ledger/internal/server/service"
)

// WebhookHandler receives settlement callbacks from the payment gateway.
// Every callback is authenticated against the shared HMAC secret before any
// state is touched. Duplicate deliveries answer 200 so the gateway stops
// redelivering.
type WebhookHandler struct {
	ledger         ledger.Ledger
	accountService service.AccountService
	verifier       *gateway.Verifier
	gatewayConfig  *config.GatewayConfig
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, ledger ledger.Ledger, accountService service.AccountService, gatewayConfig *config.GatewayConfig, verifier *gateway.Verifier) *WebhookHandler {
	return &WebhookHandler{
		ledger:         ledger,
		accountService: accountService,
		verifier:       verifier,
		gatewayConfig:  gatewayConfig,
		logger:         logger,
	}
}

// HandleCallback verifies and applies a gateway settlement notification
func (h *WebhookHandler) HandleCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read callback body", "error", err)
		RespondBadRequest(c, "Unreadable request body")
		return
	}

	signature := c.GetHeader(h.gatewayConfig.SignatureHeader)
	if err := h.verifier.Verify(body, signature); err != nil {
		h.logger.Warn("Rejected callback with invalid signature", "client_ip", c.ClientIP())
		RespondUnauthorized(c, "Invalid signature")
		return
	}

	callback, err := gateway.ParseCallback(body)
	if err != nil {
		h.logger.Error("Malformed gateway callback", "error", err)
		RespondBadRequest(c, "Malformed callback payload")
		return
	}

	correlationID := middleware.GetCorrelationID(c)

	status := transaction.StatusFailed
	if callback.Success() {
		status = transaction.StatusCompleted
	}

	h.logger.Info("Gateway callback received",
		"transaction_id", callback.TransactionID,
		"gateway_reference", callback.GatewayReference,
		"response_code", callback.ResponseCode,
		"status", string(status),
	)

	txn, err := h.ledger.SettleTransaction(
		c.Request.Context(),
		callback.TransactionID,
		status,
		callback.Raw,
		callback.GatewayReference,
		correlationID,
	)
	if err == nil {
		RespondOK(c, mapTransactionToResponse(txn))
		return
	}

	var settled transaction.ErrAlreadySettled
	switch {
	case errors.As(err, &settled):
		if settled.Status != status {
			// Not a redelivery: the gateway is contradicting an outcome we
			// already committed. Terminal rows never flip.
			h.logger.Error("Gateway callback contradicts settled transaction",
				"transaction_id", callback.TransactionID,
				"settled_status", string(settled.Status),
				"callback_status", string(status),
			)
			RespondUnprocessable(c, "Transaction already settled with a different outcome")
			return
		}
		// Redelivered callback. The first delivery already settled the row.
		h.logger.Info("Duplicate gateway callback absorbed", "transaction_id", callback.TransactionID)
		RespondOK(c, gin.H{"transaction_id": callback.TransactionID.String(), "status": "already_settled"})
	case errors.Is(err, transaction.ErrTransactionNotFound{}):
		h.recordOrphanCallback(c, callback, correlationID)
	default:
		h.logger.Error("Failed to settle transaction from callback", "transaction_id", callback.TransactionID, "error", err)
		RespondInternalError(c)
	}
}

// recordOrphanCallback handles a successful callback whose txn_ref matches no
// local row, typically after the pending row was lost to an operational
// mishap. The payment still happened, so the funds are recorded as a fresh
// completed transaction keyed by the gateway reference; redeliveries then
// resolve to that row.
func (h *WebhookHandler) recordOrphanCallback(c *gin.Context, callback *gateway.Callback, correlationID string) {
	if !callback.Success() {
		// Nothing to repair for a failed payment with no local row.
		RespondNotFound(c, "Transaction not found")
		return
	}
	if callback.Amount == nil {
		h.logger.Error("Orphan callback without amount", "transaction_id", callback.TransactionID)
		RespondNotFound(c, "Transaction not found")
		return
	}

	accountID, ok := callbackAccountID(callback)
	if !ok {
		h.logger.Error("Orphan callback without resolvable account", "transaction_id", callback.TransactionID)
		RespondNotFound(c, "Transaction not found")
		return
	}

	// Gateways do not reliably echo the currency back. Falling back to the
	// account's currency keeps a legitimately paid callback recordable;
	// answering 4xx here would make the gateway redeliver forever.
	currency, _ := callback.Raw["currency"].(string)
	if currency == "" {
		acc, err := h.accountService.GetAccountByID(c.Request.Context(), accountID)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound{}) {
				h.logger.Error("Orphan callback references unknown account",
					"transaction_id", callback.TransactionID, "account_id", accountID)
				RespondNotFound(c, "Transaction not found")
				return
			}
			h.logger.Error("Failed to resolve account for orphan callback",
				"transaction_id", callback.TransactionID, "account_id", accountID, "error", err)
			RespondInternalError(c)
			return
		}
		currency = acc.Currency
	}

	candidate := transaction.Candidate{
		Amount:            *callback.Amount,
		Currency:          currency,
		Status:            transaction.StatusCompleted,
		Source:            transaction.SourceGateway,
		ExternalReference: callback.GatewayReference,
		Metadata:          callback.Raw,
		CorrelationID:     correlationID,
	}

	txn, existing, err := h.ledger.RecordTransaction(c.Request.Context(), accountID, candidate)
	if err != nil {
		respondRecordError(c, h.logger, accountID, err)
		return
	}

	h.logger.Warn("Recorded orphan gateway callback",
		"transaction_id", txn.ID,
		"account_id", accountID,
		"gateway_reference", callback.GatewayReference,
		"existing", existing,
	)

	RespondOK(c, mapTransactionToResponse(txn))
}

// callbackAccountID resolves the account from the cust_id echoed back by the
// gateway, which carries the account id set at initiation
func callbackAccountID(callback *gateway.Callback) (uuid.UUID, bool) {
	custID, _ := callback.Raw["cust_id"].(string)
	if custID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(custID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
