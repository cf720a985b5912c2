package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrZeroAmount      = errors.New("amount must be a non-zero integer in minor units")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
	ErrInvalidStatus   = errors.New("invalid transaction status")
)

// Status defines the settlement states of a transaction
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. Terminal transactions are
// immutable: only status and metadata of pending rows may change, ever.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known states
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// Origin tags for the Source field
const (
	SourceManual  = "manual"
	SourceGateway = "gateway"
)

// Transaction is one append-only entry in an account's ledger. Amount is
// signed: positive entries credit the account, negative entries debit it.
// ExternalReference, when set, is the gateway-assigned idempotency key:
// at most one transaction per (account, reference) pair can exist.
type Transaction struct {
	ID                uuid.UUID      `json:"id"`
	AccountID         uuid.UUID      `json:"account_id"`
	Amount            int64          `json:"amount"` // Stored in cents/kobo minor units
	Currency          string         `json:"currency"`
	Status            Status         `json:"status"`
	Source            string         `json:"source"`
	ExternalReference string         `json:"external_reference,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	SettledAt         *time.Time     `json:"settled_at,omitempty"`
}

// Candidate carries the fields a caller supplies when recording a
// transaction. Status defaults to completed when left empty; no multi-stage
// settlement is implied for directly recorded entries.
type Candidate struct {
	Amount            int64
	Currency          string
	Status            Status
	Source            string
	ExternalReference string
	Metadata          map[string]any
	CorrelationID     string // Tracing only, never persisted on the row
}

// Validate rejects malformed candidates before any storage access
func (c *Candidate) Validate() error {
	if c.Amount == 0 {
		return ErrZeroAmount
	}
	if len(c.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if c.Status != "" && !c.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// New materializes a candidate into a transaction row for the given account.
// A fresh id and creation timestamps are assigned here; the row becomes
// durable only when the ledger commits it together with the balance update.
func (c *Candidate) New(accountID uuid.UUID) *Transaction {
	status := c.Status
	if status == "" {
		status = StatusCompleted
	}
	source := c.Source
	if source == "" {
		source = SourceManual
	}

	now := time.Now()
	tx := &Transaction{
		ID:                uuid.New(),
		AccountID:         accountID,
		Amount:            c.Amount,
		Currency:          c.Currency,
		Status:            status,
		Source:            source,
		ExternalReference: c.ExternalReference,
		Metadata:          c.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if status.Terminal() {
		tx.SettledAt = &now
	}
	return tx
}
