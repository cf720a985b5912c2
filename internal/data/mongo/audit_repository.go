// Package mongo provides the MongoDB implementation of the audit archive.
// The archive is append-only: events arrive from Kafka and are upserted on
// (transaction_id, kind) so redeliveries never produce duplicate entries.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusfund/fund-ledger/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit archive collection in MongoDB
	AuditCollectionName = "audit_events"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores an audit event. The upsert on (transaction_id, kind) makes it
// safe against Kafka redeliveries: the same event replayed overwrites the
// identical document instead of adding a second one.
func (r *AuditRepository) Append(ctx context.Context, event *audit.Event) error {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{
		"transaction_id": event.TransactionID,
		"kind":           event.Kind,
	}
	update := bson.M{"$set": event}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			"transaction_id", event.TransactionID.String(),
			"kind", string(event.Kind),
			"error", err)
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// GetByTransactionID retrieves all audit events for a transaction, ordered by
// occurrence time. Returns ErrEventNotFound when the archive holds nothing
// for the transaction.
func (r *AuditRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	opts := options.Find().SetSort(bson.M{"occurred_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	if len(events) == 0 {
		return nil, audit.ErrEventNotFound{TransactionID: transactionID}
	}

	return events, nil
}

// GetByAccountID retrieves paginated audit events for an account.
// Results are sorted by occurrence time in descending order (newest first).
func (r *AuditRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"occurred_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events by account",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get audit events by account: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}

// CountByAccountID counts the total number of audit events for an account
func (r *AuditRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"account_id": accountID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count audit events",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated audit events within the specified time
// window. Results are sorted by occurrence time in descending order.
func (r *AuditRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{
		"occurred_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"occurred_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get audit events by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}
