package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyName             = errors.New("account name cannot be empty")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrNegativeBalance       = errors.New("initial balance cannot be negative")
)

// Account holds the denormalized running balance for a fund. The balance is a
// derived aggregate: it always equals the sum of amounts over all durably
// recorded transactions for the account and is never set directly.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"` // Stored in cents/kobo minor units
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates a new account with the given parameters
func NewAccount(name string, initialBalance int64, currency string) (*Account, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}
	if initialBalance < 0 {
		return nil, ErrNegativeBalance
	}

	return &Account{
		ID:        uuid.New(),
		Name:      name,
		Balance:   initialBalance,
		Currency:  currency,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Apply adds a signed transaction amount to the in-memory balance.
// Persistence goes through Repository.AddToBalance under the account row lock.
func (a *Account) Apply(amount int64) {
	a.Balance += amount
	a.UpdatedAt = time.Now()
}
