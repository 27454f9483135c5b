package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "rail-reservation/pkg/app_errors"

	circuit "github.com/rubyist/circuitbreaker"
)

// ErrUnavailable means the outcome is unknown and the authorization may be retried.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Gateway authorizes the amount of a booking. A decline is reported as
// apperrors.ErrPaymentFailed; anything else is transient.
type Gateway interface {
	Authorize(ctx context.Context, bookingID int64, amount float64) (string, error)
}

type authorizeRequest struct {
	BookingID      int64   `json:"booking_id"`
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type authorizeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// HTTPGateway calls an external gateway through a consecutive failure breaker.
type HTTPGateway struct {
	baseURL string
	client  *circuit.HTTPClient
}

func NewHTTPGateway(baseURL string, timeout time.Duration, threshold int64) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  circuit.NewHTTPClient(timeout, threshold, nil),
	}
}

func (g *HTTPGateway) Authorize(ctx context.Context, bookingID int64, amount float64) (string, error) {
	body, err := json.Marshal(authorizeRequest{
		BookingID:      bookingID,
		Amount:         amount,
		IdempotencyKey: fmt.Sprintf("booking-%d", bookingID),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/authorizations", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, circuit.ErrBreakerOpen) {
			return "", fmt.Errorf("%w: breaker open", ErrUnavailable)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out authorizeResponse
	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return "", fmt.Errorf("%w: %s", apperrors.ErrPaymentFailed, out.Reason)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected gateway status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.Status != "approved" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrPaymentFailed, out.Reason)
	}
	return out.Reference, nil
}

// SimulatedGateway approves everything except the bookings marked with Decline.
type SimulatedGateway struct {
	mu       sync.Mutex
	declined map[int64]bool
	calls    int
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{declined: make(map[int64]bool)}
}

func (g *SimulatedGateway) Decline(bookingID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declined[bookingID] = true
}

func (g *SimulatedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *SimulatedGateway) Authorize(ctx context.Context, bookingID int64, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if g.declined[bookingID] {
		return "", fmt.Errorf("%w: declined by issuer", apperrors.ErrPaymentFailed)
	}
	return fmt.Sprintf("SIM-%d", bookingID), nil
}
