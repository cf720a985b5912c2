// Package ledger implements the balance engine: atomic, exactly-once
// recording of transactions against fund accounts. All balance mutations go
// through a single database transaction that holds the account row lock, so
// the stored balance always equals the sum of durably recorded amounts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/audit"
	"github.com/campusfund/fund-ledger/internal/domain/outbox"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/platform/persistence"
)

// PostgreSQL error codes treated as transient contention: serialization
// failure, deadlock detected, lock not available.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// ErrRecordConflict is returned when all recording attempts were exhausted by
// transient contention on the account row.
type ErrRecordConflict struct {
	AccountID uuid.UUID
}

func (e ErrRecordConflict) Error() string {
	return "could not record transaction for account " + e.AccountID.String() + ": too much contention"
}

// Is implements the errors.Is interface for ErrRecordConflict
func (e ErrRecordConflict) Is(target error) bool {
	t, ok := target.(ErrRecordConflict)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// Ledger records and settles transactions against fund accounts
type Ledger interface {
	// RecordTransaction atomically persists a transaction and applies its
	// amount to the account balance. When the candidate carries an external
	// reference already known for the account, the previously recorded
	// transaction is returned with duplicate=true and nothing is written.
	RecordTransaction(ctx context.Context, accountID uuid.UUID, c transaction.Candidate) (*transaction.Transaction, bool, error)

	// SettleTransaction moves a pending transaction to a terminal status.
	// The balance is untouched: it was applied when the row was recorded.
	SettleTransaction(ctx context.Context, transactionID uuid.UUID, status transaction.Status, metadataPatch map[string]any, externalReference, correlationID string) (*transaction.Transaction, error)

	// RecalcBalance recomputes the balance from the transaction log and
	// overwrites the stored aggregate. Returns the recomputed balance.
	RecalcBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// Service implements Ledger on top of PostgreSQL
type Service struct {
	db           persistence.TxBeginner
	accounts     account.Repository
	transactions transaction.Repository
	outboxRepo   outbox.Repository
	logger       *slog.Logger
	maxAttempts  int
	lockTimeout  time.Duration
}

// NewService creates a new ledger service
func NewService(
	logger *slog.Logger,
	db persistence.TxBeginner,
	accounts account.Repository,
	transactions transaction.Repository,
	outboxRepo outbox.Repository,
	maxAttempts int,
	lockTimeout time.Duration,
) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		outboxRepo:   outboxRepo,
		logger:       logger,
		maxAttempts:  maxAttempts,
		lockTimeout:  lockTimeout,
	}
}

// RecordTransaction validates the candidate and retries the atomic recording
// sequence until it succeeds, hits a permanent error, or exhausts the attempt
// budget. Transient contention (serialization failures, deadlocks, lock
// timeouts) is retried; everything else is returned as-is.
func (s *Service) RecordTransaction(ctx context.Context, accountID uuid.UUID, c transaction.Candidate) (*transaction.Transaction, bool, error) {
	if err := c.Validate(); err != nil {
		return nil, false, err
	}

	logger := s.logger
	if c.CorrelationID != "" {
		logger = logger.With("correlation_id", c.CorrelationID)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		txn, duplicate, err := s.recordOnce(ctx, accountID, c)
		if err == nil {
			if duplicate {
				logger.Info("Transaction already recorded, returning existing row",
					"account_id", accountID.String(),
					"transaction_id", txn.ID.String(),
					"external_reference", c.ExternalReference)
			} else {
				logger.Info("Transaction recorded",
					"account_id", accountID.String(),
					"transaction_id", txn.ID.String(),
					"amount", txn.Amount,
					"attempt", attempt)
			}
			return txn, duplicate, nil
		}

		if !recordRetryable(err) {
			return nil, false, err
		}

		lastErr = err
		logger.Warn("Transient failure while recording transaction, retrying",
			"account_id", accountID.String(),
			"attempt", attempt,
			"error", err)
	}

	logger.Error("Exhausted recording attempts",
		"account_id", accountID.String(),
		"attempts", s.maxAttempts,
		"error", lastErr)
	return nil, false, ErrRecordConflict{AccountID: accountID}
}

// recordOnce runs one attempt of the recording sequence inside a single
// database transaction. The commit must not be interruptible by caller
// cancellation: a transaction is either fully durable (row + balance +
// outbox) or not there at all, never half-applied.
func (s *Service) recordOnce(ctx context.Context, accountID uuid.UUID, c transaction.Candidate) (txn *transaction.Transaction, duplicate bool, err error) {
	opCtx := context.WithoutCancel(ctx)

	tx, err := s.db.Begin(opCtx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(opCtx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(opCtx)
		}
	}()

	// Bound how long we queue behind the row lock so a stuck holder cannot
	// pin this request forever. 55P03 on expiry feeds the retry loop.
	// SET does not accept bind parameters, hence the formatted statement.
	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err = tx.Exec(opCtx, stmt); err != nil {
			return nil, false, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	accounts := s.accounts.WithTx(tx)
	transactions := s.transactions.WithTx(tx)
	outboxRepo := s.outboxRepo.WithTx(tx)

	acc, err := accounts.LockForUpdate(opCtx, accountID)
	if err != nil {
		return nil, false, err
	}

	// Idempotency check under the lock: a concurrent writer holding the same
	// reference has either committed (we see its row) or will collide with
	// the unique index below.
	if c.ExternalReference != "" {
		existing, findErr := transactions.FindByExternalReference(opCtx, accountID, c.ExternalReference)
		if findErr != nil {
			err = findErr
			return nil, false, err
		}
		if existing != nil {
			if rbErr := tx.Rollback(opCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("Failed to roll back idempotent lookup", "error", rbErr)
			}
			return existing, true, nil
		}
	}

	txn = c.New(accountID)

	if err = transactions.Create(opCtx, txn); err != nil {
		return nil, false, err
	}

	if err = accounts.AddToBalance(opCtx, accountID, txn.Amount); err != nil {
		return nil, false, err
	}
	acc.Apply(txn.Amount)

	event := &audit.Event{
		TransactionID:     txn.ID,
		AccountID:         accountID,
		Kind:              audit.EventKindRecorded,
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		Status:            txn.Status,
		Source:            txn.Source,
		ExternalReference: txn.ExternalReference,
		BalanceAfter:      acc.Balance,
		CorrelationID:     c.CorrelationID,
		OccurredAt:        time.Now(),
	}
	message, err := outbox.NewMessage(event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err = outboxRepo.Create(opCtx, message); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(opCtx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return txn, false, nil
}

// SettleTransaction transitions a pending transaction to completed or failed.
// The account row lock is taken first so settlement serializes with
// concurrent recording on the same account, and the audit event rides in the
// same database transaction via the outbox.
func (s *Service) SettleTransaction(ctx context.Context, transactionID uuid.UUID, status transaction.Status, metadataPatch map[string]any, externalReference, correlationID string) (*transaction.Transaction, error) {
	if !status.Terminal() {
		return nil, transaction.ErrInvalidStatus
	}

	logger := s.logger
	if correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}

	opCtx := context.WithoutCancel(ctx)

	existing, err := s.transactions.GetByID(opCtx, transactionID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(opCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(opCtx)
			panic(p)
		}
		if !committed {
			_ = tx.Rollback(opCtx)
		}
	}()

	accounts := s.accounts.WithTx(tx)
	transactions := s.transactions.WithTx(tx)
	outboxRepo := s.outboxRepo.WithTx(tx)

	acc, err := accounts.LockForUpdate(opCtx, existing.AccountID)
	if err != nil {
		return nil, err
	}

	settled, err := transactions.UpdateStatus(opCtx, transactionID, status, metadataPatch, externalReference)
	if err != nil {
		return nil, err
	}

	event := &audit.Event{
		TransactionID:     settled.ID,
		AccountID:         settled.AccountID,
		Kind:              audit.EventKindSettled,
		Amount:            settled.Amount,
		Currency:          settled.Currency,
		Status:            settled.Status,
		Source:            settled.Source,
		ExternalReference: settled.ExternalReference,
		BalanceAfter:      acc.Balance,
		CorrelationID:     correlationID,
		OccurredAt:        time.Now(),
	}
	message, err := outbox.NewMessage(event)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err = outboxRepo.Create(opCtx, message); err != nil {
		return nil, err
	}

	if err = tx.Commit(opCtx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	logger.Info("Transaction settled",
		"transaction_id", settled.ID.String(),
		"account_id", settled.AccountID.String(),
		"status", string(settled.Status))
	return settled, nil
}

// RecalcBalance recomputes the stored balance from the transaction log under
// the account row lock. Intended as an operator-triggered repair, not part of
// any hot path.
func (s *Service) RecalcBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	opCtx := context.WithoutCancel(ctx)

	tx, err := s.db.Begin(opCtx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(opCtx)
			panic(p)
		}
		if !committed {
			_ = tx.Rollback(opCtx)
		}
	}()

	accounts := s.accounts.WithTx(tx)
	transactions := s.transactions.WithTx(tx)

	acc, err := accounts.LockForUpdate(opCtx, accountID)
	if err != nil {
		return 0, err
	}

	sum, err := transactions.SumAmountByAccount(opCtx, accountID)
	if err != nil {
		return 0, err
	}

	if sum != acc.Balance {
		s.logger.Warn("Stored balance diverged from transaction log",
			"account_id", accountID.String(),
			"stored", acc.Balance,
			"recomputed", sum)
	}

	if err = accounts.SetBalance(opCtx, accountID, sum); err != nil {
		return 0, err
	}

	if err = tx.Commit(opCtx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	s.logger.Info("Account balance recalculated",
		"account_id", accountID.String(),
		"balance", sum)
	return sum, nil
}

// recordRetryable classifies failures of a single recording attempt.
// Transient lock contention retries. A duplicate reference also retries: the
// competing writer has committed the same external reference, so the next
// attempt resolves to the existing row via the idempotency lookup.
func recordRetryable(err error) bool {
	if errors.Is(err, transaction.ErrDuplicateReference{}) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgUniqueViolation:
		return true
	}
	return false
}
