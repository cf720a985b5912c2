package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/transaction"
)

// EventKind labels what a ledger event describes
type EventKind string

const (
	EventKindRecorded EventKind = "transaction_recorded"
	EventKindSettled  EventKind = "transaction_settled"
)

// Event is the immutable archive record of a ledger mutation. Events are
// produced inside the same database transaction as the mutation (via the
// outbox), published to Kafka, and appended to the MongoDB archive, so the
// archive eventually mirrors every balance-affecting change.
type Event struct {
	TransactionID     uuid.UUID          `json:"transaction_id" bson:"transaction_id"`
	AccountID         uuid.UUID          `json:"account_id" bson:"account_id"`
	Kind              EventKind          `json:"kind" bson:"kind"`
	Amount            int64              `json:"amount" bson:"amount"` // Minor units
	Currency          string             `json:"currency" bson:"currency"`
	Status            transaction.Status `json:"status" bson:"status"`
	Source            string             `json:"source" bson:"source"`
	ExternalReference string             `json:"external_reference,omitempty" bson:"external_reference,omitempty"`
	BalanceAfter      int64              `json:"balance_after" bson:"balance_after"`
	CorrelationID     string             `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at" bson:"occurred_at"`
}
