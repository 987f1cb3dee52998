package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/bechdo/bechdo/internal/fees"
)

// Stripe implements Gateway for international card payments.
// PaymentIntents are created with manual capture, so funds stay authorized
// until escrow release captures them.
type Stripe struct {
	api           *client.API
	signingSecret string
}

// NewStripe creates a Stripe gateway adapter. The API client is owned by the
// adapter; no package-level key is set.
func NewStripe(apiKey, signingSecret string) *Stripe {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Stripe{api: api, signingSecret: signingSecret}
}

func (s *Stripe) Provider() Provider { return ProviderStripe }

func (s *Stripe) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("receipt", receipt)
	for k, v := range notes {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeErr("create payment intent", err, nil)
	}

	return &Order{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Receipt:  receipt,
	}, nil
}

// VerifySignature checks the HMAC-SHA256 of "orderID|paymentID" against the
// configured signing secret. Same scheme as the webhook proof the client
// relays; constant-time comparison.
func (s *Stripe) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.signingSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Stripe) FetchPayment(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("latest_charge")

	pi, err := s.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, stripeErr("fetch payment intent", err, ErrPaymentNotFound)
	}

	rec := &PaymentRecord{
		ID:       pi.ID,
		OrderID:  pi.ID, // Stripe's order handle is the intent itself
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Method:   fees.MethodCard,
		Captured: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}
	if ch := pi.LatestCharge; ch != nil && ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
		rec.Instrument = "card ****" + ch.PaymentMethodDetails.Card.Last4
	}
	return rec, nil
}

// Capture captures a manually-held PaymentIntent for the given amount.
func (s *Stripe) Capture(ctx context.Context, paymentID string, amount int64) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{
		Params:          stripe.Params{Context: ctx},
		AmountToCapture: stripe.Int64(amount),
	}
	if _, err := s.api.PaymentIntents.Capture(paymentID, params); err != nil {
		return stripeErr("capture payment intent", err, nil)
	}
	return nil
}

func (s *Stripe) Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(paymentID),
		Amount:        stripe.Int64(amount),
	}
	for k, v := range notes {
		params.AddMetadata(k, v)
	}

	ref, err := s.api.Refunds.New(params)
	if err != nil {
		return "", stripeErr("create refund", err, ErrRefundFailed)
	}
	return ref.ID, nil
}

// stripeErr maps a stripe-go error to the package taxonomy: provider-side
// rejections (4xx) become rejectErr when given, everything else becomes
// ErrGatewayUnavailable.
func stripeErr(op string, err error, rejectErr error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.HTTPStatusCode >= 400 && sErr.HTTPStatusCode < 500 && rejectErr != nil {
		return fmt.Errorf("%w: %s: %s", rejectErr, op, sErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
}

// Compile-time assertion that Stripe implements Gateway.
var _ Gateway = (*Stripe)(nil)
