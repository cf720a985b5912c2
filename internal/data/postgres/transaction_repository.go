package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/platform/persistence"
)

// uniqueViolation is the PostgreSQL error code raised when an insert hits the
// partial unique index on (account_id, external_reference).
const uniqueViolation = "23505"

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transaction. An empty external reference is persisted
// as NULL so it never collides on the uniqueness index.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, amount, currency, status, source, external_reference, metadata, created_at, updated_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var extRef *string
	if txn.ExternalReference != "" {
		extRef = &txn.ExternalReference
	}

	_, err := r.querier.Exec(ctx, query,
		txn.ID,
		txn.AccountID,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.Source,
		extRef,
		txn.Metadata,
		txn.CreatedAt,
		txn.UpdatedAt,
		txn.SettledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return transaction.ErrDuplicateReference{AccountID: txn.AccountID, Reference: txn.ExternalReference}
		}
		r.logger.Error("Failed to create transaction", "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT id, account_id, amount, currency, status, source, external_reference, metadata, created_at, updated_at, settled_at
		FROM transactions
		WHERE id = $1
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// FindByExternalReference looks up a transaction by account and external
// reference. Returns (nil, nil) when no matching row exists, so the caller
// can distinguish "absent" from a query failure.
func (r *TransactionRepository) FindByExternalReference(ctx context.Context, accountID uuid.UUID, reference string) (*transaction.Transaction, error) {
	query := `
		SELECT id, account_id, amount, currency, status, source, external_reference, metadata, created_at, updated_at, settled_at
		FROM transactions
		WHERE account_id = $1 AND external_reference = $2
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, accountID, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find transaction by external reference",
			"account_id", accountID.String(), "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to find transaction by external reference: %w", err)
	}

	return txn, nil
}

// UpdateStatus moves a pending transaction to a terminal status, optionally
// merging a metadata patch and attaching an external reference. A transaction
// that is already terminal is left untouched and reported via
// ErrAlreadySettled.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status, metadataPatch map[string]any, externalReference string) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $1,
		    metadata = metadata || $2,
		    external_reference = COALESCE(NULLIF($3, ''), external_reference),
		    settled_at = NOW(),
		    updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
		RETURNING id, account_id, amount, currency, status, source, external_reference, metadata, created_at, updated_at, settled_at
	`

	if metadataPatch == nil {
		metadataPatch = map[string]any{}
	}

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, status, metadataPatch, externalReference, id))
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, transaction.ErrDuplicateReference{Reference: externalReference}
		}
		r.logger.Error("Failed to update transaction status", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	// Nothing updated: either the row does not exist or it is no longer
	// pending. A second lookup tells the two apart.
	existing, lookupErr := r.GetByID(ctx, id)
	if lookupErr != nil {
		return nil, lookupErr
	}

	return nil, transaction.ErrAlreadySettled{TransactionID: id, Status: existing.Status}
}

// ListByAccount returns transactions for an account, newest first
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT id, account_id, amount, currency, status, source, external_reference, metadata, created_at, updated_at, settled_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}

	return txns, nil
}

// CountByAccount returns the total number of transactions for an account
func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// SumAmountByAccount returns the sum of all transaction amounts for an
// account, 0 when the account holds no transactions.
func (r *TransactionRepository) SumAmountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum transaction amounts", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum transaction amounts: %w", err)
	}

	return sum, nil
}

func (r *TransactionRepository) scanOne(row pgx.Row) (*transaction.Transaction, error) {
	var (
		txn    transaction.Transaction
		extRef *string
	)
	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Amount,
		&txn.Currency,
		&txn.Status,
		&txn.Source,
		&extRef,
		&txn.Metadata,
		&txn.CreatedAt,
		&txn.UpdatedAt,
		&txn.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if extRef != nil {
		txn.ExternalReference = *extRef
	}
	return &txn, nil
}
