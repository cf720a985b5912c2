package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusfund/fund-ledger/internal/domain/account"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
	"github.com/campusfund/fund-ledger/internal/ledger"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) RecordTransaction(ctx context.Context, accountID uuid.UUID, candidate transaction.Candidate) (*transaction.Transaction, bool, error) {
	args := m.Called(ctx, accountID, candidate)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*transaction.Transaction), args.Bool(1), args.Error(2)
}

func (m *MockTransactionService) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func sampleTransaction(accountID uuid.UUID) *transaction.Transaction {
	now := time.Now()
	return &transaction.Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    1500,
		Currency:  "NGN",
		Status:    transaction.StatusCompleted,
		Source:    transaction.SourceManual,
		CreatedAt: now,
		UpdatedAt: now,
		SettledAt: &now,
	}
}

func TestTransactionHandler_Create(t *testing.T) {
	logger := testLogger()
	accountID := uuid.New()

	postTransaction := func(handler *TransactionHandler, body any) *httptest.ResponseRecorder {
		router := setupTestRouter()
		router.POST("/transactions", handler.Create)

		jsonBody, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, "/transactions", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		expected := sampleTransaction(accountID)
		mockService.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(expected, false, nil)

		rr := postTransaction(handler, RecordTransactionRequest{
			AccountID: accountID.String(),
			Amount:    1500,
			Currency:  "NGN",
		})

		assert.Equal(t, http.StatusCreated, rr.Code)

		var responseBody TransactionResponse
		unmarshalData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, expected.ID.String(), responseBody.ID)
		assert.Equal(t, int64(1500), responseBody.Amount)
		assert.Equal(t, "completed", responseBody.Status)

		mockService.AssertExpectations(t)
	})

	t.Run("ExistingReferenceReturns200", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		existing := sampleTransaction(accountID)
		existing.ExternalReference = "GW-1001"
		mockService.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(existing, true, nil)

		rr := postTransaction(handler, RecordTransactionRequest{
			AccountID:         accountID.String(),
			Amount:            1500,
			Currency:          "NGN",
			ExternalReference: "GW-1001",
		})

		assert.Equal(t, http.StatusOK, rr.Code)

		var responseBody TransactionResponse
		unmarshalData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, existing.ID.String(), responseBody.ID)
		assert.Equal(t, "GW-1001", responseBody.ExternalReference)

		mockService.AssertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		mockService.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(nil, false, account.ErrAccountNotFound{AccountID: accountID})

		rr := postTransaction(handler, RecordTransactionRequest{
			AccountID: accountID.String(),
			Amount:    1500,
			Currency:  "NGN",
		})

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ContentionExhaustedReturns409", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		mockService.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(nil, false, ledger.ErrRecordConflict{AccountID: accountID})

		rr := postTransaction(handler, RecordTransactionRequest{
			AccountID: accountID.String(),
			Amount:    1500,
			Currency:  "NGN",
		})

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ValidationErrorReturns400", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		mockService.On("RecordTransaction", mock.Anything, accountID, mock.Anything).
			Return(nil, false, transaction.ErrInvalidCurrency)

		rr := postTransaction(handler, RecordTransactionRequest{
			AccountID: accountID.String(),
			Amount:    1500,
			Currency:  "XXX",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ZeroAmountRejectedByBinding", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		rr := postTransaction(handler, map[string]any{
			"account_id": accountID.String(),
			"amount":     0,
			"currency":   "NGN",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "RecordTransaction")
	})

	t.Run("InvalidStatusRejectedByBinding", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		rr := postTransaction(handler, map[string]any{
			"account_id": accountID.String(),
			"amount":     100,
			"currency":   "NGN",
			"status":     "reversed",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "RecordTransaction")
	})
}

func TestTransactionHandler_GetByID(t *testing.T) {
	logger := testLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		expected := sampleTransaction(uuid.New())
		mockService.On("GetTransactionByID", mock.Anything, expected.ID).Return(expected, nil)

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+expected.ID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var responseBody TransactionResponse
		unmarshalData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, expected.ID.String(), responseBody.ID)
		assert.NotEmpty(t, responseBody.SettledAt)

		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		txnID := uuid.New()
		mockService.On("GetTransactionByID", mock.Anything, txnID).
			Return(nil, transaction.ErrTransactionNotFound{TransactionID: txnID})

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+txnID.String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/nope", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetTransactionByID")
	})
}

func TestTransactionHandler_GetByAccountID(t *testing.T) {
	logger := testLogger()
	accountID := uuid.New()

	t.Run("PaginatedList", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		entries := []*transaction.Transaction{
			sampleTransaction(accountID),
			sampleTransaction(accountID),
		}
		mockService.On("ListTransactionsByAccount", mock.Anything, accountID, 2, 5).
			Return(entries, int64(12), nil)

		router := setupTestRouter()
		router.GET("/accounts/:id/transactions", handler.GetByAccountID)

		url := fmt.Sprintf("/accounts/%s/transactions?page=2&per_page=5", accountID)
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var response Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.NotNil(t, response.Meta)
		assert.Equal(t, 2, response.Meta.Page)
		assert.Equal(t, 5, response.Meta.PerPage)
		assert.Equal(t, 12, response.Meta.TotalItems)
		assert.Equal(t, 3, response.Meta.TotalPages)

		mockService.AssertExpectations(t)
	})

	t.Run("EmptyPage", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		mockService.On("ListTransactionsByAccount", mock.Anything, accountID, 1, 10).
			Return([]*transaction.Transaction{}, int64(0), nil)

		router := setupTestRouter()
		router.GET("/accounts/:id/transactions", handler.GetByAccountID)

		req, _ := http.NewRequest(http.MethodGet, "/accounts/"+accountID.String()+"/transactions", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidPagination", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/accounts/:id/transactions", handler.GetByAccountID)

		url := "/accounts/" + accountID.String() + "/transactions?per_page=1000"
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "ListTransactionsByAccount")
	})
}
