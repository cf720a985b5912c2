package handler

// CreateAccountRequest represents a request to create a new account
type CreateAccountRequest struct {
	Name           string `json:"name" binding:"required"`
	OpeningBalance int64  `json:"opening_balance" binding:"min=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RecalcBalanceResponse represents the result of a balance recalculation
type RecalcBalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// RecordTransactionRequest represents a request to record a transaction.
// Amount is signed and in minor units; binding:"required" rejects the zero
// value, which the ledger forbids anyway.
type RecordTransactionRequest struct {
	AccountID         string         `json:"account_id" binding:"required,uuid"`
	Amount            int64          `json:"amount" binding:"required"`
	Currency          string         `json:"currency" binding:"required,len=3"`
	Status            string         `json:"status" binding:"omitempty,oneof=pending completed failed"`
	ExternalReference string         `json:"external_reference,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                string         `json:"id"`
	AccountID         string         `json:"account_id"`
	Amount            int64          `json:"amount"`
	Currency          string         `json:"currency"`
	Status            string         `json:"status"`
	Source            string         `json:"source"`
	ExternalReference string         `json:"external_reference,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	SettledAt         string         `json:"settled_at,omitempty"`
}

// CreatePaymentRequest represents a request to initiate a gateway payment
type CreatePaymentRequest struct {
	AccountID  string `json:"account_id" binding:"required,uuid"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Currency   string `json:"currency" binding:"required,len=3"`
	CustomerID string `json:"customer_id,omitempty"`
}

// PaymentResponse carries the signed hosted-payment-page payload for a
// freshly recorded pending transaction
type PaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Payload       any    `json:"payload"`
	Signature     string `json:"signature"`
}

// AuditEventResponse represents an archived ledger event in API responses
type AuditEventResponse struct {
	TransactionID     string `json:"transaction_id"`
	AccountID         string `json:"account_id"`
	Kind              string `json:"kind"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Source            string `json:"source"`
	ExternalReference string `json:"external_reference,omitempty"`
	BalanceAfter      int64  `json:"balance_after"`
	CorrelationID     string `json:"correlation_id,omitempty"`
	OccurredAt        string `json:"occurred_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// TimeRangeParams represents time-range report parameters. From and To are
// RFC3339 timestamps.
type TimeRangeParams struct {
	From    string `form:"from" binding:"required"`
	To      string `form:"to" binding:"required"`
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=10" binding:"min=1,max=100"`
}
