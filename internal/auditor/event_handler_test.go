package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusfund/fund-ledger/internal/domain/audit"
	"github.com/campusfund/fund-ledger/internal/domain/transaction"
)

type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) ArchiveEvent(ctx context.Context, event *audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testEvent() *audit.Event {
	return &audit.Event{
		TransactionID: uuid.New(),
		AccountID:     uuid.New(),
		Kind:          audit.EventKindRecorded,
		Amount:        500,
		Currency:      "USD",
		Status:        transaction.StatusCompleted,
		Source:        transaction.SourceManual,
		BalanceAfter:  1500,
		CorrelationID: "corr1",
		OccurredAt:    time.Now().UTC(),
	}
}

func TestAuditEventHandler_HandleMessage(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	t.Run("successful archive commits offset", func(t *testing.T) {
		archiveSvc := &MockArchiveService{}
		handler := NewAuditEventHandler(logger, archiveSvc, nil)

		event := testEvent()
		value, err := json.Marshal(event)
		require.NoError(t, err)

		archiveSvc.On("ArchiveEvent", ctx, mock.MatchedBy(func(e *audit.Event) bool {
			return e.TransactionID == event.TransactionID && e.Kind == event.Kind
		})).Return(nil).Once()

		err = handler.HandleMessage(ctx, []byte(event.AccountID.String()), value)
		assert.NoError(t, err)
		archiveSvc.AssertExpectations(t)
	})

	t.Run("archive failure is returned so offset is not committed", func(t *testing.T) {
		archiveSvc := &MockArchiveService{}
		handler := NewAuditEventHandler(logger, archiveSvc, nil)

		event := testEvent()
		value, err := json.Marshal(event)
		require.NoError(t, err)

		archiveErr := errors.New("mongo unavailable")
		archiveSvc.On("ArchiveEvent", ctx, mock.Anything).Return(archiveErr).Once()

		err = handler.HandleMessage(ctx, []byte("key"), value)
		assert.Error(t, err)
		assert.ErrorIs(t, err, archiveErr)
		archiveSvc.AssertExpectations(t)
	})

	t.Run("malformed message goes to DLQ and commits", func(t *testing.T) {
		archiveSvc := &MockArchiveService{}
		dlq := &MockDeadLetterPublisher{}
		handler := NewAuditEventHandler(logger, archiveSvc, dlq)

		value := []byte("not json")
		dlq.On("PublishToDLQ", ctx, "key", value, mock.AnythingOfType("string")).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte("key"), value)
		assert.NoError(t, err)
		archiveSvc.AssertNotCalled(t, "ArchiveEvent", mock.Anything, mock.Anything)
		dlq.AssertExpectations(t)
	})

	t.Run("malformed message without DLQ is retried", func(t *testing.T) {
		archiveSvc := &MockArchiveService{}
		handler := NewAuditEventHandler(logger, archiveSvc, nil)

		err := handler.HandleMessage(ctx, []byte("key"), []byte("not json"))
		assert.Error(t, err)
	})

	t.Run("DLQ publish failure keeps the message uncommitted", func(t *testing.T) {
		archiveSvc := &MockArchiveService{}
		dlq := &MockDeadLetterPublisher{}
		handler := NewAuditEventHandler(logger, archiveSvc, dlq)

		value := []byte("not json")
		dlq.On("PublishToDLQ", ctx, "key", value, mock.AnythingOfType("string")).
			Return(errors.New("dlq write failed")).Once()

		err := handler.HandleMessage(ctx, []byte("key"), value)
		assert.Error(t, err)
		dlq.AssertExpectations(t)
	})
}
