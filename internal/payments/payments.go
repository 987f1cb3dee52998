// Package payments abstracts payment gateway providers behind one interface.
//
// Flow:
//  1. Escrow controller creates a provider order for the charge amount
//  2. Buyer completes payment on the client against that order
//  3. Payment proof (payment ID + signature) comes back via the buyer/webhook
//  4. Signature is verified, then the payment is captured (if manual capture)
//  5. Refunds go back through the same provider
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/bechdo/bechdo/internal/fees"
)

var (
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
	ErrRefundFailed       = errors.New("payments: refund rejected by provider")
	ErrPaymentNotFound    = errors.New("payments: payment not found")
	ErrUnknownProvider    = errors.New("payments: unknown provider")
)

// Provider is the closed set of supported payment gateways.
// A transaction's provider is chosen at creation and never changes.
type Provider string

const (
	ProviderRazorpay Provider = "razorpay"
	ProviderStripe   Provider = "stripe"
)

// ValidProvider reports whether p names a supported gateway.
func ValidProvider(p Provider) bool {
	return p == ProviderRazorpay || p == ProviderStripe
}

// DefaultTimeout bounds every outbound gateway call.
const DefaultTimeout = 15 * time.Second

// Order is a provider-side order awaiting payment.
type Order struct {
	ID       string `json:"id"`       // provider order ID
	Amount   int64  `json:"amount"`   // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"` // our transaction ID
}

// PaymentRecord holds the provider's view of a completed payment.
// Instrument details are masked; only what the ledger needs is kept.
type PaymentRecord struct {
	ID         string             `json:"id"`
	OrderID    string             `json:"orderId"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	Method     fees.PaymentMethod `json:"method"`
	Instrument string             `json:"instrument,omitempty"` // e.g. "card ****4242", "upi buyer@okbank"
	Captured   bool               `json:"captured"`
}

// Gateway is implemented once per payment provider.
type Gateway interface {
	// Provider identifies the adapter.
	Provider() Provider

	// CreateOrder registers an order for amount minor units with the
	// provider. Fails with ErrGatewayUnavailable on network/auth errors.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error)

	// VerifySignature checks the payment proof signature. Pure HMAC check,
	// constant time, no network calls.
	VerifySignature(orderID, paymentID, signature string) bool

	// FetchPayment returns the provider's payment record, used to extract
	// the payment method and masked instrument for the ledger.
	FetchPayment(ctx context.Context, paymentID string) (*PaymentRecord, error)

	// Capture captures an authorized payment. No-op for providers that
	// auto-capture on payment.
	Capture(ctx context.Context, paymentID string, amount int64) error

	// Refund returns amount minor units to the buyer and returns the
	// provider refund ID. Fails with ErrRefundFailed if the provider
	// rejects the refund.
	Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error)
}
