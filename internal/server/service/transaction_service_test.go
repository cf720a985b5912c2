package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusfund/fund-ledger/internal/domain/transaction"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByExternalReference(ctx context.Context, accountID uuid.UUID, reference string) (*transaction.Transaction, error) {
	args := m.Called(ctx, accountID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status, metadataPatch map[string]any, externalReference string) (*transaction.Transaction, error) {
	args := m.Called(ctx, id, status, metadataPatch, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) SumAmountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

func newTransaction(accountID uuid.UUID) *transaction.Transaction {
	now := time.Now()
	return &transaction.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    2000,
		Currency:  "NGN",
		Status:    transaction.StatusCompleted,
		Source:    transaction.SourceManual,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTransactionService_RecordTransaction(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	accountID := uuid.New()

	t.Run("DelegatesToLedger", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockLedger := new(MockLedger)
		svc := NewTransactionService(logger, mockRepo, mockLedger)

		expected := newTransaction(accountID)
		candidate := transaction.Candidate{Amount: 2000, Currency: "NGN"}
		mockLedger.On("RecordTransaction", mock.Anything, accountID, candidate).
			Return(expected, false, nil)

		txn, existing, err := svc.RecordTransaction(ctx, accountID, candidate)

		require.NoError(t, err)
		assert.False(t, existing)
		assert.Equal(t, expected, txn)
		mockLedger.AssertExpectations(t)
	})

	t.Run("SurfacesExistingFlag", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockLedger := new(MockLedger)
		svc := NewTransactionService(logger, mockRepo, mockLedger)

		expected := newTransaction(accountID)
		expected.ExternalReference = "GW-1"
		candidate := transaction.Candidate{Amount: 2000, Currency: "NGN", ExternalReference: "GW-1"}
		mockLedger.On("RecordTransaction", mock.Anything, accountID, candidate).
			Return(expected, true, nil)

		txn, existing, err := svc.RecordTransaction(ctx, accountID, candidate)

		require.NoError(t, err)
		assert.True(t, existing)
		assert.Equal(t, expected.ID, txn.ID)
	})

	t.Run("PropagatesError", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockLedger := new(MockLedger)
		svc := NewTransactionService(logger, mockRepo, mockLedger)

		mockLedger.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(nil, false, errors.New("pool exhausted"))

		_, _, err := svc.RecordTransaction(ctx, accountID, transaction.Candidate{Amount: 1, Currency: "NGN"})
		assert.Error(t, err)
	})
}

func TestTransactionService_ListTransactionsByAccount(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	accountID := uuid.New()

	t.Run("TranslatesPageToOffset", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockLedger := new(MockLedger)
		svc := NewTransactionService(logger, mockRepo, mockLedger)

		entries := []*transaction.Transaction{newTransaction(accountID)}
		mockRepo.On("ListByAccount", mock.Anything, accountID, 20, 40).Return(entries, nil)
		mockRepo.On("CountByAccount", mock.Anything, accountID).Return(int64(41), nil)

		result, total, err := svc.ListTransactionsByAccount(ctx, accountID, 3, 20)

		require.NoError(t, err)
		assert.Equal(t, entries, result)
		assert.Equal(t, int64(41), total)
		mockRepo.AssertExpectations(t)
	})

	t.Run("PropagatesListError", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockLedger := new(MockLedger)
		svc := NewTransactionService(logger, mockRepo, mockLedger)

		mockRepo.On("ListByAccount", mock.Anything, accountID, 10, 0).
			Return(nil, errors.New("query canceled"))

		_, _, err := svc.ListTransactionsByAccount(ctx, accountID, 1, 10)
		assert.Error(t, err)
		mockRepo.AssertNotCalled(t, "CountByAccount")
	})
}

func TestTransactionService_GetTransactionByID(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mockRepo := new(MockTransactionRepository)
	mockLedger := new(MockLedger)
	svc := NewTransactionService(logger, mockRepo, mockLedger)

	txnID := uuid.New()
	mockRepo.On("GetByID", mock.Anything, txnID).
		Return(nil, transaction.ErrTransactionNotFound{TransactionID: txnID})

	_, err := svc.GetTransactionByID(ctx, txnID)
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound{})
}
