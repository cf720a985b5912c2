package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/ledger"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	ledger      ledger.Ledger
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo account.Repository, ledger ledger.Ledger) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		ledger:      ledger,
	}
}

// CreateAccount provisions a new account. The row is created with a zero
// balance; an opening balance, when given, flows through the ledger like any
// other transaction so the balance invariant holds from the first write.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, name string, openingBalance int64, currency, correlationID string) (*account.Account, error) {
	acc, err := account.NewAccount(name, 0, currency)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	if openingBalance > 0 {
		candidate := transaction.Candidate{
			Amount:        openingBalance,
			Currency:      currency,
			Source:        transaction.SourceManual,
			Metadata:      map[string]any{"reason": "opening_balance"},
			CorrelationID: correlationID,
		}
		txn, _, err := s.ledger.RecordTransaction(ctx, acc.ID, candidate)
		if err != nil {
			return nil, err
		}
		acc.Balance = txn.Amount
	}

	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// RecalculateBalance delegates to the ledger's repair path
func (s *AccountServiceImpl) RecalculateBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.ledger.RecalcBalance(ctx, id)
}
