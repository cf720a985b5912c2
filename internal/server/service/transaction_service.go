package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/ledger"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	transactionRepo transaction.Repository
	ledger          ledger.Ledger
	logger          *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, transactionRepo transaction.Repository, ledger ledger.Ledger) TransactionService {
	return &TransactionServiceImpl{
		transactionRepo: transactionRepo,
		ledger:          ledger,
		logger:          logger,
	}
}

// RecordTransaction records a candidate through the ledger
func (s *TransactionServiceImpl) RecordTransaction(ctx context.Context, accountID uuid.UUID, candidate transaction.Candidate) (*transaction.Transaction, bool, error) {
	txn, existing, err := s.ledger.RecordTransaction(ctx, accountID, candidate)
	if err != nil {
		return nil, false, err
	}

	if existing {
		s.logger.Info("Returned existing transaction for external reference",
			"transaction_id", txn.ID,
			"account_id", accountID,
			"external_reference", candidate.ExternalReference,
		)
	}

	return txn, existing, nil
}

// GetTransactionByID retrieves a transaction by its ID
func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// ListTransactionsByAccount retrieves paginated list of transactions for an account
// Returns entries, total count, and any error
func (s *TransactionServiceImpl) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.transactionRepo.ListByAccount(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.transactionRepo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
