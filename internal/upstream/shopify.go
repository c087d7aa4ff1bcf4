package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"shopbridge/internal/apperr"
	"shopbridge/internal/models"
	"shopbridge/internal/ratelimit"
)

// ShopifyClient calls the Shopify Admin REST API on behalf of a shop.
// Every call is paced through the shop's token bucket before it leaves the
// process, keeping the app inside Shopify's published call quota.
type ShopifyClient struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	apiVersion string
	policy     retryPolicy

	// baseURL overrides the https://{shop} scheme+host, for tests.
	baseURL string
}

// NewShopifyClient creates a Shopify Admin API client from configuration.
func NewShopifyClient(cfg models.ShopifyConfig, pacer *ratelimit.Pacer) *ShopifyClient {
	return &ShopifyClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pacer:      pacer,
		apiVersion: cfg.APIVersion,
		policy: retryPolicy{
			maxRetries: cfg.MaxRetries,
			retryDelay: cfg.RetryDelay,
		},
		baseURL: cfg.BaseURL,
	}
}

// GetProducts fetches up to limit products from the shop's catalog.
func (c *ShopifyClient) GetProducts(ctx context.Context, session *models.Session, limit int) (map[string]any, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	return c.get(ctx, session, "products.json", query)
}

// GetOrdersCount fetches the shop's order count for any order status.
func (c *ShopifyClient) GetOrdersCount(ctx context.Context, session *models.Session) (map[string]any, error) {
	query := url.Values{"status": {"any"}}
	return c.get(ctx, session, "orders/count.json", query)
}

// GetShop fetches the shop resource itself.
func (c *ShopifyClient) GetShop(ctx context.Context, session *models.Session) (map[string]any, error) {
	return c.get(ctx, session, "shop.json", nil)
}

// get performs a paced, retried GET against the Admin API and decodes the
// JSON response.
func (c *ShopifyClient) get(ctx context.Context, session *models.Session, resource string, query url.Values) (map[string]any, error) {
	if session == nil || session.AccessToken == "" {
		return nil, apperr.Authentication("no active session for shop")
	}

	endpoint := c.resourceURL(session.Shop, resource, query)

	if _, err := c.pacer.Acquire(ctx, session.Shop, 1); err != nil {
		return nil, apperr.ShopifyAPI("pace "+resource, err, 0)
	}

	resp, err := doWithRetry(ctx, c.httpClient, c.policy, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", session.AccessToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, apperr.ShopifyAPI("GET "+resource, err, 0)
	}

	if resp.StatusCode >= 400 {
		body := readErrorBody(resp)
		return nil, apperr.ShopifyAPI("GET "+resource, fmt.Errorf("shopify returned %d: %s", resp.StatusCode, body), resp.StatusCode)
	}

	return decodeJSON(resp)
}

// resourceURL builds the Admin API URL for a shop resource.
func (c *ShopifyClient) resourceURL(shop, resource string, query url.Values) string {
	base := c.baseURL
	if base == "" {
		base = "https://" + shop
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/%s", base, c.apiVersion, resource)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}
