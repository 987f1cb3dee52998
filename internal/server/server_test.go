package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bechdo/bechdo/internal/config"
	"github.com/bechdo/bechdo/internal/escrow"
	"github.com/bechdo/bechdo/internal/payments"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		RazorpayKeyID:     "rzp_test_key",
		RazorpayKeySecret: "rzp_test_secret",
		HoldPeriodDays:    7,
		SweepInterval:     5 * time.Minute,
	}
}

// newTestServer creates a server with in-memory storage and listing fixtures
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	// Timer not started outside Run(), so overall status is degraded
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	checks, ok := resp["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected checks map, got %v", resp["checks"])
	}
	if checks["escrow_timer"] != "stopped" {
		t.Errorf("Expected escrow_timer 'stopped', got %v", checks["escrow_timer"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestTransactionRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := map[string]bool{
		"POST:/v1/transactions":             false,
		"POST:/v1/transactions/verify":      false,
		"GET:/v1/transactions/:id":          false,
		"GET:/v1/users/:userId/transactions": false,
		"POST:/v1/transactions/:id/release": false,
		"POST:/v1/transactions/:id/refund":  false,
		"POST:/v1/transactions/:id/dispute": false,
		"POST:/v1/transactions/:id/resolve": false,
		"POST:/v1/transactions/:id/cancel":  false,
	}

	for _, route := range routes {
		key := route.Method + ":" + route.Path
		if _, ok := expected[key]; ok {
			expected[key] = true
		}
	}

	for route, found := range expected {
		if !found {
			t.Errorf("Transaction route %s not registered", route)
		}
	}
}

func TestSubscriptionRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/v1/users/:userId/subscription",
		"GET:/v1/users/:userId/quota",
		"POST:/v1/users/:userId/subscription",
		"POST:/v1/users/:userId/subscription/upgrade",
		"DELETE:/v1/users/:userId/subscription",
		"POST:/v1/subscriptions/:id/activate",
		"POST:/v1/users/:userId/usage/listings",
		"POST:/v1/users/:userId/usage/ads",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Subscription route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Quota endpoint through the full stack
// ---------------------------------------------------------------------------

func TestQuotaEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/users/usr_test1/quota", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	listings, ok := resp["listings"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected listings quota, got %v", resp)
	}
	// New users are auto-provisioned onto the basic plan (10 listings)
	if listings["limit"] != float64(10) {
		t.Errorf("Expected basic plan listing limit 10, got %v", listings["limit"])
	}
}

// ---------------------------------------------------------------------------
// Dev listing fixtures
// ---------------------------------------------------------------------------

func TestDevListingFixtures(t *testing.T) {
	s := newTestServer(t)

	body := `{"id":"lst_dev1","sellerId":"usr_seller","price":15000,"status":"active"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/dev/listings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	ml, ok := s.listings.(*memoryListings)
	if !ok {
		t.Fatal("Expected in-memory listings in test config")
	}
	l, err := ml.Get(req.Context(), "lst_dev1")
	if err != nil {
		t.Fatalf("Get listing failed: %v", err)
	}
	if l.Price != 15000 {
		t.Errorf("Expected price 15000, got %d", l.Price)
	}
}

func TestDevListingFixtures_RejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	body := `{"id":"lst_dev2","price":-5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/dev/listings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Admin sweep
// ---------------------------------------------------------------------------

func TestAdminSweep_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "hunter2"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/sweep", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without secret, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/admin/sweep", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202 with secret, got %d", w.Code)
	}
}

func TestAdminSweep_DisabledWithoutSecret(t *testing.T) {
	s := newTestServer(t)

	// No ADMIN_SECRET configured: endpoint always refuses
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/sweep", nil)
	req.Header.Set("X-Admin-Secret", "")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Request ID and 404
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header to be set")
	}

	// Propagates caller-supplied ID
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("Expected propagated request ID, got %q", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Purchase flow through the router
// ---------------------------------------------------------------------------

// stubGateway implements payments.Gateway without network calls
type stubGateway struct{}

func (g *stubGateway) Provider() payments.Provider { return payments.ProviderRazorpay }

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*payments.Order, error) {
	return &payments.Order{ID: "order_stub1", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *stubGateway) VerifySignature(_, _, _ string) bool { return true }

func (g *stubGateway) FetchPayment(_ context.Context, id string) (*payments.PaymentRecord, error) {
	return &payments.PaymentRecord{ID: id, Captured: true}, nil
}

func (g *stubGateway) Capture(_ context.Context, _ string, _ int64) error { return nil }

func (g *stubGateway) Refund(_ context.Context, _ string, _ int64, _ map[string]string) (string, error) {
	return "rfnd_stub1", nil
}

func TestInitiatePurchaseThroughRouter(t *testing.T) {
	gws := map[payments.Provider]payments.Gateway{
		payments.ProviderRazorpay: &stubGateway{},
	}
	s, err := New(testConfig(), WithGateways(gws))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ml := s.listings.(*memoryListings)
	ml.Add(&escrow.Listing{ID: "lst_flow1", SellerID: "usr_seller", Price: 9000, Status: "active"})

	body := `{"buyerId":"usr_buyer","listingId":"lst_flow1","finalPrice":9000,"paymentMethod":"upi"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	tx, ok := resp["transaction"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected transaction in response, got %v", resp)
	}
	if tx["orderId"] != "order_stub1" {
		t.Errorf("Expected gateway order ID on transaction, got %v", tx["orderId"])
	}
	if tx["state"] != "pending" {
		t.Errorf("Expected pending state, got %v", tx["state"])
	}
}

func TestInitiatePurchase_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	body := `{"buyerId":"","listingId":"lst_x","finalPrice":0}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
