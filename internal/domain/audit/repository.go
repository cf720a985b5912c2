package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages archive persistence. Append must be idempotent on
// (transaction_id, kind) so redelivered Kafka messages cannot duplicate
// archive entries.
type Repository interface {
	Append(ctx context.Context, event *Event) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Event, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Event, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Event, error)
}

// ErrEventNotFound indicates missing archive entries for a transaction
type ErrEventNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrEventNotFound) Error() string {
	return "audit events not found for transaction: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrEventNotFound
func (e ErrEventNotFound) Is(target error) bool {
	t, ok := target.(ErrEventNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
