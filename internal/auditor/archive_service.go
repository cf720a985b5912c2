// Package auditor consumes the Kafka audit stream and appends events to the
// MongoDB archive. It runs as its own binary so archive backpressure never
// slows down the balance engine.
package auditor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/campusfund/fund-ledger/internal/domain/audit"
)

// ArchiveService appends audit events to the durable archive
type ArchiveService interface {
	ArchiveEvent(ctx context.Context, event *audit.Event) error
}

// MongoArchiveService writes events straight to the audit repository
type MongoArchiveService struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

func NewMongoArchiveService(logger *slog.Logger, auditRepo audit.Repository) *MongoArchiveService {
	return &MongoArchiveService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ArchiveEvent appends one event. The repository upsert makes this safe to
// call repeatedly with the same event.
func (s *MongoArchiveService) ArchiveEvent(ctx context.Context, event *audit.Event) error {
	if err := s.auditRepo.Append(ctx, event); err != nil {
		return err
	}

	s.logger.Debug("Archived audit event",
		"transaction_id", event.TransactionID.String(),
		"account_id", event.AccountID.String(),
		"kind", string(event.Kind),
	)
	return nil
}

// WorkerPoolArchiveService fans archive writes out over a bounded worker
// pool while keeping the per-message result synchronous, so the Kafka
// consumer still commits each offset only after its event is durable.
type WorkerPoolArchiveService struct {
	baseService ArchiveService
	pool        *ants.Pool
	logger      *slog.Logger
	mu          sync.Mutex
	results     map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolArchiveService(
	baseService ArchiveService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolArchiveService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolArchiveService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ArchiveEvent submits an event to the worker pool and waits for the result
func (s *WorkerPoolArchiveService) ArchiveEvent(ctx context.Context, event *audit.Event) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Submitting audit event to worker pool",
		"transaction_id", event.TransactionID.String(),
		"kind", string(event.Kind),
	)

	resultChan := make(chan error, 1)

	// Key by (transaction, kind): the same pair may be in flight at most once.
	resultKey := event.TransactionID.String() + ":" + string(event.Kind)
	s.mu.Lock()
	s.results[resultKey] = resultChan
	s.mu.Unlock()

	eventCopy := *event

	err := s.pool.Submit(func() {
		err := s.baseService.ArchiveEvent(ctx, &eventCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, resultKey)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, resultKey)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit audit event to worker pool",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolArchiveService) Shutdown() {
	s.logger.Info("Shutting down archive worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolArchiveService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolArchiveService) Capacity() int {
	return s.pool.Cap()
}
