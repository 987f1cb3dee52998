package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bechdo/bechdo/internal/escrow"
	"github.com/bechdo/bechdo/internal/security"
)

// -----------------------------------------------------------------------------
// Listing service adapters
// -----------------------------------------------------------------------------

// listingClient talks to the remote listings service over HTTP.
type listingClient struct {
	baseURL string
	client  *http.Client
}

func newListingClient(baseURL string) (*listingClient, error) {
	if err := security.ValidateEndpointURL(baseURL); err != nil {
		return nil, err
	}
	return &listingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *listingClient) Get(ctx context.Context, id string) (*escrow.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/listings/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listings service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var l escrow.Listing
		if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
			return nil, fmt.Errorf("listings service: decode: %w", err)
		}
		return &l, nil
	case http.StatusNotFound:
		return nil, escrow.ErrListingUnavailable
	default:
		return nil, fmt.Errorf("listings service: unexpected status %d", resp.StatusCode)
	}
}

func (c *listingClient) Reserve(ctx context.Context, id string) error {
	return c.post(ctx, "/listings/"+id+"/reserve")
}

func (c *listingClient) MarkSold(ctx context.Context, id string) error {
	return c.post(ctx, "/listings/"+id+"/sold")
}

func (c *listingClient) Release(ctx context.Context, id string) error {
	return c.post(ctx, "/listings/"+id+"/activate")
}

func (c *listingClient) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("listings service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("listings service: %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

var _ escrow.ListingService = (*listingClient)(nil)

// memoryListings is an in-memory fixture store used when no remote
// listings service is configured.
type memoryListings struct {
	mu       sync.RWMutex
	listings map[string]*escrow.Listing
}

func newMemoryListings() *memoryListings {
	return &memoryListings{listings: make(map[string]*escrow.Listing)}
}

// Add inserts or replaces a listing fixture.
func (m *memoryListings) Add(l *escrow.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[l.ID] = &cp
}

func (m *memoryListings) Get(_ context.Context, id string) (*escrow.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, escrow.ErrListingUnavailable
	}
	cp := *l
	return &cp, nil
}

func (m *memoryListings) Reserve(_ context.Context, id string) error {
	return m.setStatus(id, "reserved")
}

func (m *memoryListings) MarkSold(_ context.Context, id string) error {
	return m.setStatus(id, "sold")
}

func (m *memoryListings) Release(_ context.Context, id string) error {
	return m.setStatus(id, "active")
}

func (m *memoryListings) setStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return escrow.ErrListingUnavailable
	}
	l.Status = status
	return nil
}

var _ escrow.ListingService = (*memoryListings)(nil)

// -----------------------------------------------------------------------------
// Seller stats and notifications
// -----------------------------------------------------------------------------

// logStats records completed sales to the log. A real deployment would
// update the seller's profile in the users service.
type logStats struct {
	logger *slog.Logger
}

func (s *logStats) RecordSale(_ context.Context, sellerID string, amount int64) error {
	s.logger.Info("sale recorded", "sellerId", sellerID, "amount", amount)
	return nil
}

var _ escrow.SellerStats = (*logStats)(nil)

// logNotifier logs user notifications. A real deployment would push
// through FCM or the notifications service.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(_ context.Context, userID, event, message string) error {
	n.logger.Info("notification", "userId", userID, "event", event, "message", message)
	return nil
}

var _ escrow.Notifier = (*logNotifier)(nil)
