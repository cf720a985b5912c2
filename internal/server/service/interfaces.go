package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount provisions a new account. A non-zero opening balance is
	// recorded as a regular ledger transaction so the stored balance stays
	// equal to the sum of recorded amounts.
	CreateAccount(ctx context.Context, name string, openingBalance int64, currency, correlationID string) (*account.Account, error)

	// GetAccountByID retrieves an account by its ID
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// RecalculateBalance recomputes the stored balance from recorded
	// transactions and returns the corrected value
	RecalculateBalance(ctx context.Context, id uuid.UUID) (int64, error)
}

// TransactionService defines the interface for transaction operations
type TransactionService interface {
	// RecordTransaction records a candidate against an account. The boolean
	// reports whether an existing transaction was returned for the
	// candidate's external reference instead of a new one being created.
	RecordTransaction(ctx context.Context, accountID uuid.UUID, candidate transaction.Candidate) (*transaction.Transaction, bool, error)

	// GetTransactionByID retrieves a transaction by its ID
	// Returns ErrTransactionNotFound if the transaction doesn't exist
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// ListTransactionsByAccount retrieves a paginated list of transactions
	// for an account, newest first. Returns entries and the total count.
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error)
}
