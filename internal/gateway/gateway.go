// Package gateway holds the payment gateway collaborator: callback signature
// verification, response code interpretation, and hosted-payment-page payload
// construction. No network calls live here; the gateway talks to us.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusfund/fund-ledger/internal/config"
)

var (
	ErrInvalidSignature = errors.New("gateway signature mismatch")
	ErrMissingReference = errors.New("gateway callback missing transaction references")
)

// successCodes are the gateway response codes that mean a payment went
// through. Anything else is a failure.
var successCodes = map[string]bool{
	"00":      true,
	"0":       true,
	"success": true,
	"SUCCESS": true,
}

// IsSuccessCode reports whether a gateway response code indicates a
// successful payment
func IsSuccessCode(code string) bool {
	return successCodes[code]
}

// Verifier signs and verifies payloads with the shared gateway secret
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier from the configured shared secret
func NewVerifier(cfg *config.GatewayConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.Secret)}
}

// Sign computes the hex-encoded HMAC-SHA512 of the payload
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature against the raw request body using a
// constant-time comparison. Returns ErrInvalidSignature on mismatch.
func (v *Verifier) Verify(payload []byte, signature string) error {
	expected := v.Sign(payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Callback is the parsed settlement notification from the gateway
type Callback struct {
	TransactionID    uuid.UUID      // Our transaction id, sent as txn_ref at initiation
	GatewayReference string         // The gateway's own transaction id
	ResponseCode     string
	Amount           *int64         // Minor units, nil when the gateway omitted it
	Raw              map[string]any // Full decoded payload, merged into metadata on settlement
}

// Success reports whether the callback describes a successful payment
func (c *Callback) Success() bool {
	return IsSuccessCode(c.ResponseCode)
}

// ParseCallback decodes a verified callback body. Both transaction references
// must be present; gateway_id is accepted as a fallback for the gateway
// reference field.
func ParseCallback(body []byte) (*Callback, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode gateway callback: %w", err)
	}

	txnRef, _ := raw["txn_ref"].(string)
	gatewayRef, _ := raw["transaction_id"].(string)
	if gatewayRef == "" {
		gatewayRef, _ = raw["gateway_id"].(string)
	}
	if txnRef == "" || gatewayRef == "" {
		return nil, ErrMissingReference
	}

	transactionID, err := uuid.Parse(txnRef)
	if err != nil {
		return nil, fmt.Errorf("invalid txn_ref in gateway callback: %w", err)
	}

	code, _ := raw["response_code"].(string)
	if code == "" {
		code, _ = raw["status"].(string)
	}

	cb := &Callback{
		TransactionID:    transactionID,
		GatewayReference: gatewayRef,
		ResponseCode:     code,
		Raw:              raw,
	}

	// JSON numbers decode as float64; amounts are integral minor units.
	if f, ok := raw["amount"].(float64); ok {
		amount := int64(f)
		cb.Amount = &amount
	}

	return cb, nil
}

// InitiationPayload is the signed payload handed to the frontend for the
// hosted payment page. TxnRef carries our pending transaction id so the
// callback can be correlated back to the row it settles.
type InitiationPayload struct {
	ProductID   string `json:"product_id"`
	Amount      int64  `json:"amount"` // Minor units
	TxnRef      string `json:"txn_ref"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	CustomerID  string `json:"cust_id"`
}

// Initiation is the full response for a payment initiation request
type Initiation struct {
	PaymentURL string            `json:"payment_url"`
	Payload    InitiationPayload `json:"payload"`
	Signature  string            `json:"signature"`
}

// BuildInitiation assembles and signs the hosted-payment-page payload for a
// pending transaction
func BuildInitiation(cfg *config.GatewayConfig, v *Verifier, transactionID uuid.UUID, amount int64, currency, customerID string) (*Initiation, error) {
	if customerID == "" {
		customerID = "guest"
	}

	payload := InitiationPayload{
		ProductID:   cfg.ProductID,
		Amount:      amount,
		TxnRef:      transactionID.String(),
		Currency:    currency,
		RedirectURL: cfg.CallbackURL,
		CustomerID:  customerID,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initiation payload: %w", err)
	}

	return &Initiation{
		PaymentURL: cfg.Endpoint,
		Payload:    payload,
		Signature:  v.Sign(encoded),
	}, nil
}
