package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages durable transaction persistence with pagination support
type Repository interface {
	// Create persists a new row. A duplicate (account_id, external_reference)
	// pair surfaces as ErrDuplicateReference, backed by a partial unique
	// index as a second line of defense behind the ledger's own check.
	Create(ctx context.Context, tx *Transaction) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindByExternalReference returns the matching transaction or (nil, nil)
	// when no row carries the reference. Used for the idempotency check and
	// therefore only meaningful while the account row lock is held.
	FindByExternalReference(ctx context.Context, accountID uuid.UUID, reference string) (*Transaction, error)

	// UpdateStatus transitions a pending row to a terminal status, merging
	// metadataPatch into the stored metadata and attaching the external
	// reference when one is supplied. Returns the updated row. Terminal rows
	// are immutable and surface ErrAlreadySettled.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, metadataPatch map[string]any, externalReference string) (*Transaction, error)

	// ListByAccount returns transactions newest-first with limit/offset
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	// SumAmountByAccount totals all recorded amounts for the account,
	// regardless of status. Feeds the balance recalculation repair path.
	SumAmountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrDuplicateReference indicates an idempotency key collision:
// a transaction already exists for the (account, external reference) pair
type ErrDuplicateReference struct {
	AccountID uuid.UUID
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate external reference " + e.Reference + " for account " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrDuplicateReference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil && t.Reference == "" {
		return true
	}
	return e.AccountID == t.AccountID && e.Reference == t.Reference
}

// ErrAlreadySettled indicates an attempted transition of a terminal
// transaction. Terminal rows are immutable for auditability; hitting this
// means a logic or data bug upstream, not a retryable condition.
type ErrAlreadySettled struct {
	TransactionID uuid.UUID
	Status        Status
}

func (e ErrAlreadySettled) Error() string {
	return "transaction " + e.TransactionID.String() + " already settled as " + string(e.Status)
}

// Is implements the errors.Is interface for ErrAlreadySettled
func (e ErrAlreadySettled) Is(target error) bool {
	t, ok := target.(ErrAlreadySettled)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
