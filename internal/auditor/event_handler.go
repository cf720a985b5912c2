package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/campusfund/fund-ledger/internal/domain/audit"
	"github.com/campusfund/fund-ledger/internal/platform/messaging/producers"
)

// AuditEventHandler handles incoming audit event messages from Kafka
type AuditEventHandler struct {
	archiveService ArchiveService
	producer       producers.DeadLetterPublisher
	logger         *slog.Logger
}

// NewAuditEventHandler creates a new handler
func NewAuditEventHandler(
	logger *slog.Logger,
	archiveService ArchiveService,
	producer producers.DeadLetterPublisher,
) *AuditEventHandler {
	return &AuditEventHandler{
		archiveService: archiveService,
		producer:       producer,
		logger:         logger,
	}
}

// HandleMessage processes Kafka messages
func (h *AuditEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event audit.Event
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal audit event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received audit event for archiving",
		"transaction_id", event.TransactionID.String(),
		"account_id", event.AccountID.String(),
		"kind", string(event.Kind),
		"amount", event.Amount,
	)

	if err := h.archiveService.ArchiveEvent(ctx, &event); err != nil {
		logger.Error("Failed to archive audit event",
			"transaction_id", event.TransactionID.String(),
			"account_id", event.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("archiving event for transaction %s failed: %w", event.TransactionID.String(), err)
	}

	logger.Info("Successfully archived audit event", "transaction_id", event.TransactionID.String())
	return nil // Success, commit offset
}
