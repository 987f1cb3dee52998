package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bechdo/bechdo/internal/fees"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// Razorpay implements Gateway against the Razorpay REST API.
// Orders are created with payment_capture enabled, so Capture is a no-op.
type Razorpay struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewRazorpay creates a Razorpay gateway adapter.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   razorpayBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (r *Razorpay) WithBaseURL(url string) *Razorpay {
	r.baseURL = url
	return r
}

func (r *Razorpay) Provider() Provider { return ProviderRazorpay }

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"` // card, upi, netbanking, wallet
	Captured bool   `json:"captured"`
	CardLast4 string `json:"last4"`
	VPA      string `json:"vpa"`
	Bank     string `json:"bank"`
	Wallet   string `json:"wallet"`
}

type razorpayRefund struct {
	ID string `json:"id"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	var order razorpayOrder
	if err := r.post(ctx, "/orders", payload, &order); err != nil {
		return nil, err
	}

	return &Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  receipt,
	}, nil
}

// VerifySignature checks the HMAC-SHA256 of "orderID|paymentID" against the
// key secret. Comparison is constant time to avoid timing side-channels.
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(r.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	var p razorpayPayment
	if err := r.get(ctx, "/payments/"+paymentID, &p); err != nil {
		return nil, err
	}

	rec := &PaymentRecord{
		ID:       p.ID,
		OrderID:  p.OrderID,
		Amount:   p.Amount,
		Currency: p.Currency,
		Method:   fees.PaymentMethod(p.Method),
		Captured: p.Captured,
	}
	switch rec.Method {
	case fees.MethodCard:
		rec.Instrument = "card ****" + p.CardLast4
	case fees.MethodUPI:
		rec.Instrument = "upi " + p.VPA
	case fees.MethodNetbanking:
		rec.Instrument = "netbanking " + p.Bank
	case fees.MethodWallet:
		rec.Instrument = "wallet " + p.Wallet
	}
	return rec, nil
}

// Capture is a no-op: orders are created with payment_capture enabled.
func (r *Razorpay) Capture(ctx context.Context, paymentID string, amount int64) error {
	return nil
}

func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error) {
	payload := map[string]interface{}{
		"amount": amount,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	var refund razorpayRefund
	if err := r.postStatus(ctx, "/payments/"+paymentID+"/refund", payload, &refund, ErrRefundFailed); err != nil {
		return "", err
	}
	return refund.ID, nil
}

func (r *Razorpay) post(ctx context.Context, path string, payload, out interface{}) error {
	return r.postStatus(ctx, path, payload, out, nil)
}

// postStatus sends an authenticated POST. A 4xx response maps to rejectErr
// when provided (provider rejected the request); everything else that isn't
// 2xx maps to ErrGatewayUnavailable.
func (r *Razorpay) postStatus(ctx context.Context, path string, payload, out interface{}, rejectErr error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payments: marshal razorpay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payments: build razorpay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.keyID, r.keySecret)

	return r.do(req, out, rejectErr)
}

func (r *Razorpay) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("payments: build razorpay request: %w", err)
	}
	req.SetBasicAuth(r.keyID, r.keySecret)

	return r.do(req, out, ErrPaymentNotFound)
}

func (r *Razorpay) do(req *http.Request, out interface{}, rejectErr error) error {
	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v (after %s)", ErrGatewayUnavailable, err, time.Since(start).Round(time.Millisecond))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && rejectErr != nil {
		return fmt.Errorf("%w: razorpay returned %d", rejectErr, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: razorpay returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("payments: decode razorpay response: %w", err)
		}
	}
	return nil
}

// Compile-time assertion that Razorpay implements Gateway.
var _ Gateway = (*Razorpay)(nil)
