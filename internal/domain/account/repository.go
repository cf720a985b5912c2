package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// LockForUpdate acquires a pessimistic row lock on the account.
	// Every balance-affecting operation must hold this lock first.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// AddToBalance applies a signed amount to the stored balance.
	// Must run inside the transaction that holds the row lock.
	AddToBalance(ctx context.Context, id uuid.UUID, amount int64) error

	// SetBalance overwrites the stored balance. Used only by the
	// operator-triggered recalculation repair path.
	SetBalance(ctx context.Context, id uuid.UUID, balance int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}
