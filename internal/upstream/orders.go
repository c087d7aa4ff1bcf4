package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"shopbridge/internal/apperr"
	"shopbridge/internal/models"
)

// OrderClient calls the third-party order fulfilment API. Unlike the
// Shopify client it authenticates with a static API key and is not paced;
// the provider enforces its own quota server-side.
type OrderClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retryPolicy
}

// NewOrderClient creates an order API client from configuration.
func NewOrderClient(cfg models.OrderAPIConfig) *OrderClient {
	return &OrderClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		policy: retryPolicy{
			maxRetries: cfg.MaxRetries,
			retryDelay: cfg.RetryDelay,
		},
	}
}

// CreateOrder submits a sanitized order payload to the provider.
func (c *OrderClient) CreateOrder(ctx context.Context, order map[string]any) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/orders", order)
	if err != nil {
		return nil, err
	}
	return c.handle(resp, "create order")
}

// GetOrder fetches an order record by the provider's order ID.
func (c *OrderClient) GetOrder(ctx context.Context, id string) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		readErrorBody(resp)
		return nil, apperr.NotFound("order")
	}
	return c.handle(resp, "get order")
}

func (c *OrderClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, apperr.New("order API base URL is not configured")
	}

	resp, err := doWithRetry(ctx, c.httpClient, c.policy, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			b, err := jsonBody(payload)
			if err != nil {
				return nil, err
			}
			body = b
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	return resp, nil
}

func (c *OrderClient) handle(resp *http.Response, op string) (map[string]any, error) {
	if resp.StatusCode >= 400 {
		body := readErrorBody(resp)
		return nil, apperr.ExternalAPI("order-api", resp.StatusCode, fmt.Sprintf("%s failed", op), body)
	}
	return decodeJSON(resp)
}
