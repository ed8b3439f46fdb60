package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// OrderCreator opens an order with the payment provider. The Razorpay client
// implements it in deployment, the fake client in demos.
type OrderCreator interface {
	CreateOrder(ctx context.Context, params OrderParams) (*ProviderOrder, error)
}

// OrderParams describes the order to open with the provider. Notes travel to
// the webhook, so they must carry enough to find the appointment again.
type OrderParams struct {
	AmountPaise int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// ProviderOrder is the provider's view of a created order.
type ProviderOrder struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type razorpayOrdersClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRazorpayOrdersClient talks to the Razorpay Orders API with basic auth.
func NewRazorpayOrdersClient(keyID, keySecret, baseURL string, logger *logging.Logger) *razorpayOrdersClient {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &razorpayOrdersClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *razorpayOrdersClient) CreateOrder(ctx context.Context, params OrderParams) (*ProviderOrder, error) {
	if c == nil || c.keyID == "" || c.keySecret == "" {
		return nil, fmt.Errorf("razorpay orders: missing credentials")
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("razorpay orders: encode: %w", err)
	}

	url := c.baseURL + "/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("razorpay orders: request build: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay orders: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("razorpay orders: status %d: %s %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	var order ProviderOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("razorpay orders: decode: %w", err)
	}
	return &order, nil
}
