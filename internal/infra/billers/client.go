// Package billers delivers bill payment notifications to external payees
// over HTTP, guarded by a circuit breaker so a dead biller cannot stall the
// payment path.
package billers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pesacore/corebanking/internal/core/ports/gateways"
)

// Client notifies external billers after a payment debit has committed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a biller gateway for the given aggregator base URL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "biller",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
	}
}

var _ gateways.BillerGateway = (*Client)(nil)

type notifyPayload struct {
	ServiceID      string `json:"serviceID"`
	BillAccountRef string `json:"billAccountRef"`
	Amount         string `json:"amount"`
	TransactionID  string `json:"transactionID"`
}

// Notify posts the payment notification to the aggregator. The breaker opens
// after sustained failures so subsequent payments fail the notification fast
// and leave it for out-of-band retry.
func (c *Client) Notify(ctx context.Context, n gateways.BillerNotification) error {
	_, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(notifyPayload{
			ServiceID:      n.ServiceID,
			BillAccountRef: n.BillAccountRef,
			Amount:         n.Amount.StringFixed(2),
			TransactionID:  n.TransactionID,
		})
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/v1/notifications", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
			return nil, fmt.Errorf("biller aggregator returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("biller notification for %s: %w", n.TransactionID, err)
	}
	return nil
}
