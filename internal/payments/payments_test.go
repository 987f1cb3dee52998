package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bechdo/bechdo/internal/fees"
)

func signProof(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpay_VerifySignature(t *testing.T) {
	rz := NewRazorpay("key_id", "key_secret")

	sig := signProof("key_secret", "order_abc", "pay_xyz")
	if !rz.VerifySignature("order_abc", "pay_xyz", sig) {
		t.Error("expected valid signature to verify")
	}
	if rz.VerifySignature("order_abc", "pay_xyz", sig+"00") {
		t.Error("expected tampered signature to fail")
	}
	if rz.VerifySignature("order_other", "pay_xyz", sig) {
		t.Error("expected signature over wrong order to fail")
	}
	if rz.VerifySignature("order_abc", "pay_xyz", "") {
		t.Error("expected empty signature to fail")
	}
}

func TestStripe_VerifySignature(t *testing.T) {
	st := NewStripe("sk_test_123", "whsec_abc")

	sig := signProof("whsec_abc", "pi_123", "pi_123")
	if !st.VerifySignature("pi_123", "pi_123", sig) {
		t.Error("expected valid signature to verify")
	}
	if st.VerifySignature("pi_123", "pi_123", signProof("wrong", "pi_123", "pi_123")) {
		t.Error("expected signature under wrong secret to fail")
	}
}

func TestRazorpay_CreateOrder(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if user, _, ok := r.BasicAuth(); !ok || user != "key_id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(razorpayOrder{
			ID: "order_test1", Amount: 10550, Currency: "INR", Status: "created",
		})
	}))
	defer srv.Close()

	rz := NewRazorpay("key_id", "key_secret").WithBaseURL(srv.URL)
	order, err := rz.CreateOrder(context.Background(), 10550, "INR", "txn_1", map[string]string{"listing": "lst_9"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ID != "order_test1" {
		t.Errorf("expected order_test1, got %s", order.ID)
	}
	if order.Amount != 10550 {
		t.Errorf("expected amount 10550, got %d", order.Amount)
	}
	if gotPath != "/orders" {
		t.Errorf("expected POST /orders, got %s", gotPath)
	}
	if gotBody["payment_capture"] != float64(1) {
		t.Error("expected payment_capture=1 (auto capture)")
	}
}

func TestRazorpay_CreateOrder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rz := NewRazorpay("key_id", "key_secret").WithBaseURL(srv.URL)
	_, err := rz.CreateOrder(context.Background(), 100, "INR", "txn_1", nil)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestRazorpay_FetchPayment_MapsInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(razorpayPayment{
			ID: "pay_1", OrderID: "order_1", Amount: 10550, Currency: "INR",
			Method: "upi", Captured: true, VPA: "buyer@okbank",
		})
	}))
	defer srv.Close()

	rz := NewRazorpay("key_id", "key_secret").WithBaseURL(srv.URL)
	rec, err := rz.FetchPayment(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("FetchPayment failed: %v", err)
	}
	if rec.Method != fees.MethodUPI {
		t.Errorf("expected upi method, got %s", rec.Method)
	}
	if rec.Instrument != "upi buyer@okbank" {
		t.Errorf("unexpected instrument %q", rec.Instrument)
	}
	if !rec.Captured {
		t.Error("expected captured payment")
	}
}

func TestRazorpay_Refund_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
	}))
	defer srv.Close()

	rz := NewRazorpay("key_id", "key_secret").WithBaseURL(srv.URL)
	_, err := rz.Refund(context.Background(), "pay_1", 10550, nil)
	if !errors.Is(err, ErrRefundFailed) {
		t.Errorf("expected ErrRefundFailed, got %v", err)
	}
}

func TestRazorpay_Refund_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_1/refund" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(razorpayRefund{ID: "rfnd_1"})
	}))
	defer srv.Close()

	rz := NewRazorpay("key_id", "key_secret").WithBaseURL(srv.URL)
	refundID, err := rz.Refund(context.Background(), "pay_1", 10550, map[string]string{"reason": "dispute"})
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if refundID != "rfnd_1" {
		t.Errorf("expected rfnd_1, got %s", refundID)
	}
}

func TestRazorpay_Capture_NoOp(t *testing.T) {
	// Auto-capture provider: Capture must not hit the network.
	rz := NewRazorpay("key_id", "key_secret").WithBaseURL("http://127.0.0.1:0")
	if err := rz.Capture(context.Background(), "pay_1", 10550); err != nil {
		t.Errorf("expected no-op capture, got %v", err)
	}
}

func TestValidProvider(t *testing.T) {
	if !ValidProvider(ProviderRazorpay) || !ValidProvider(ProviderStripe) {
		t.Error("expected both providers to be valid")
	}
	if ValidProvider(Provider("paypal")) {
		t.Error("expected unknown provider to be invalid")
	}
}
