// Package outbox_poller drains pending outbox rows to the Kafka audit topic.
// It runs inside the server process: the rows were written by the ledger in
// the same database transaction as the mutations they describe, so everything
// that committed eventually reaches the audit stream.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campusfund/fund-ledger/internal/domain/outbox"
	"github.com/campusfund/fund-ledger/internal/platform/messaging/producers"
)

// EventPublisher publishes outbox messages to the audit stream
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl implements EventPublisher on top of a Kafka producer
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher
func NewEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishEvent publishes one outbox message to Kafka and marks the row
// processed. A malformed payload is terminal: it is marked
// FAILED_TO_PUBLISH immediately since no retry can fix it.
func (p *EventPublisherImpl) PublishEvent(ctx context.Context, message *outbox.Message) error {
	event, err := message.Event()
	if err != nil {
		p.logger.Error("Failed to unmarshal audit event from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error",
				"outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	// Key by account id so per-account ordering survives partitioning.
	if err := p.producer.Publish(ctx, event.AccountID.String(), event); err != nil {
		return fmt.Errorf("failed to publish audit event for outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("audit publish for %s OK, but failed to mark outbox %d as PROCESSED: %w",
			message.TransactionID, message.ID, err)
	}

	logger.Info("Outbox message published to audit stream",
		"outbox_id", message.ID,
		"transaction_id", message.TransactionID,
		"kind", string(message.Kind))
	return nil
}
