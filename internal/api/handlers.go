package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"shopbridge/internal/apperr"
	"shopbridge/internal/models"
	"shopbridge/internal/storage"
	"shopbridge/internal/upstream"
	"shopbridge/internal/validate"
	"shopbridge/internal/version"
)

// Handlers contains HTTP handlers for the shopbridge API
type Handlers struct {
	store   storage.SessionStore
	shopify *upstream.ShopifyClient
	orders  *upstream.OrderClient
}

// NewHandlers creates a new handlers instance
func NewHandlers(store storage.SessionStore, shopify *upstream.ShopifyClient, orders *upstream.OrderClient) *Handlers {
	return &Handlers{
		store:   store,
		shopify: shopify,
		orders:  orders,
	}
}

func fptr(v float64) *float64 { return &v }

// orderIDRe matches the order API's opaque record IDs.
var orderIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Request schemas. Built once; rules are read-only.
var (
	shopQuerySchema = validate.Schema{
		"shop": {Type: validate.TypeShopifyDomain, Validate: validate.Options{Required: true}},
	}

	productsQuerySchema = validate.Schema{
		"shop":  {Type: validate.TypeShopifyDomain, Validate: validate.Options{Required: true}},
		"limit": {Type: validate.TypeInteger, Sanitize: validate.Options{AllowNull: true, Min: fptr(1), Max: fptr(250)}},
	}

	sessionSchema = validate.Schema{
		"shop":         {Type: validate.TypeShopifyDomain, Validate: validate.Options{Required: true}},
		"access_token": {Type: validate.TypeToken, Validate: validate.Options{Required: true}},
		"scope":        {Type: validate.TypeString, Sanitize: validate.Options{AllowNull: true}},
		"is_online":    {Type: validate.TypeBoolean, Sanitize: validate.Options{AllowNull: true}},
	}

	tokenSchema = validate.Schema{
		"shop":         {Type: validate.TypeShopifyDomain, Validate: validate.Options{Required: true}},
		"access_token": {Type: validate.TypeToken, Validate: validate.Options{Required: true}},
	}

	orderSchema = validate.Schema{
		"shop":       {Type: validate.TypeShopifyDomain, Validate: validate.Options{Required: true}},
		"email":      {Type: validate.TypeEmail, Validate: validate.Options{Required: true}},
		"note":       {Type: validate.TypeText, Sanitize: validate.Options{AllowNull: true, MaxLength: 2000}},
		"line_items": {Type: validate.TypeArray, Sanitize: validate.Options{ItemType: validate.TypeJSON, MaxItems: 100}, Validate: validate.Options{Required: true, MinItems: 1, MaxItems: 100}},
		"total":      {Type: validate.TypeNumber, Sanitize: validate.Options{AllowNull: true, Min: fptr(0)}},
	}
)

// HealthCheck reports service and storage health.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.NewHealthCheckResponse(models.StatusHealthy)
	resp.Version = version.GetInfo().Version

	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = models.StatusDegraded
		resp.AddComponent("storage", models.StatusUnhealthy, err.Error())
	} else {
		resp.AddComponent("storage", models.StatusHealthy, "")
	}

	status := http.StatusOK
	if resp.Status != models.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, resp)
}

// CreateSession registers an OAuth session issued for a shop.
// POST /api/v1/auth/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	clean, err := validate.ValidateAndSanitize(body, sessionSchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	shop, _ := clean["shop"].(string)
	isOnline, _ := clean["is_online"].(bool)

	session := models.NewSession(models.OfflineSessionID(shop), shop, isOnline)
	session.AccessToken, _ = clean["access_token"].(string)
	session.Scope, _ = clean["scope"].(string)

	if err := h.store.Store(r.Context(), session); err != nil {
		h.writeError(w, r, apperr.Database("store session", err))
		return
	}

	var resp models.SessionResponse
	resp.FromSession(session)
	h.writeJSONResponse(w, http.StatusCreated, &resp)
}

// ListSessions returns the sessions registered for a shop, tokens redacted.
// GET /api/v1/auth/sessions?shop=...
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	clean, err := validate.ValidateAndSanitize(queryParams(r), shopQuerySchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop, _ := clean["shop"].(string)

	sessions, err := h.store.LoadByShop(r.Context(), shop)
	if err != nil {
		h.writeError(w, r, apperr.Database("load sessions", err))
		return
	}

	out := make([]models.SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i].FromSession(s)
	}
	h.writeJSONResponse(w, http.StatusOK, out)
}

// DeleteSessions removes every session registered for a shop.
// DELETE /api/v1/auth/sessions?shop=...
func (h *Handlers) DeleteSessions(w http.ResponseWriter, r *http.Request) {
	clean, err := validate.ValidateAndSanitize(queryParams(r), shopQuerySchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop, _ := clean["shop"].(string)

	if err := h.store.DeleteByShop(r.Context(), shop); err != nil {
		h.writeError(w, r, apperr.Database("delete sessions", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateToken replaces the access token on a shop's offline session.
// POST /api/v1/auth/token
func (h *Handlers) RotateToken(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	clean, err := validate.ValidateAndSanitize(body, tokenSchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop, _ := clean["shop"].(string)

	session, err := h.store.Load(r.Context(), models.OfflineSessionID(shop))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session.AccessToken, _ = clean["access_token"].(string)
	if err := h.store.Store(r.Context(), session); err != nil {
		h.writeError(w, r, apperr.Database("store session", err))
		return
	}

	var resp models.SessionResponse
	resp.FromSession(session)
	h.writeJSONResponse(w, http.StatusOK, &resp)
}

// ShopifyProducts proxies a product list request to the shop's Admin API.
// GET /api/v1/shopify/products?shop=...&limit=...
func (h *Handlers) ShopifyProducts(w http.ResponseWriter, r *http.Request) {
	clean, err := validate.ValidateAndSanitize(queryParams(r), productsQuerySchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop, _ := clean["shop"].(string)
	limit, _ := clean["limit"].(int)

	session, err := h.activeSession(r, shop)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.shopify.GetProducts(r.Context(), session, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// ShopifyOrdersCount proxies an order count request to the shop's Admin API.
// GET /api/v1/shopify/orders/count?shop=...
func (h *Handlers) ShopifyOrdersCount(w http.ResponseWriter, r *http.Request) {
	h.shopifyProxy(w, r, h.shopify.GetOrdersCount)
}

// ShopifyShop proxies a shop info request to the shop's Admin API.
// GET /api/v1/shopify/shop?shop=...
func (h *Handlers) ShopifyShop(w http.ResponseWriter, r *http.Request) {
	h.shopifyProxy(w, r, h.shopify.GetShop)
}

// CreateOrder validates an order payload and forwards it to the order API.
// POST /api/v1/orders
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	clean, err := validate.ValidateAndSanitize(body, orderSchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), clean)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, result)
}

// GetOrder fetches an order record from the order API.
// GET /api/v1/orders/{order_id}
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	if errs := validate.Validate(orderID, validate.TypeString, validate.Options{Required: true, MaxLength: 64, Pattern: orderIDRe}); len(errs) > 0 {
		h.writeError(w, r, apperr.Validation("order_id", errs[0], orderID))
		return
	}

	result, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// shopifyProxy is the shared shell for Admin API proxy endpoints keyed only
// by the shop parameter.
func (h *Handlers) shopifyProxy(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, session *models.Session) (map[string]any, error)) {
	clean, err := validate.ValidateAndSanitize(queryParams(r), shopQuerySchema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop, _ := clean["shop"].(string)

	session, err := h.activeSession(r, shop)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := call(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// activeSession resolves the shop's newest usable session.
func (h *Handlers) activeSession(r *http.Request, shop string) (*models.Session, error) {
	sessions, err := h.store.LoadByShop(r.Context(), shop)
	if err != nil {
		return nil, apperr.Database("load sessions", err)
	}
	for _, s := range sessions {
		if s.IsActive() {
			return s, nil
		}
	}
	return nil, apperr.Authentication("no active session for shop")
}

// decodeBody parses a JSON object body, writing a validation error on
// malformed input.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, apperr.Validation("body", "must be a JSON object", nil))
		return nil, false
	}
	return body, true
}

// queryParams flattens the request query into a field map for schema
// validation. Only the first value of each parameter is considered.
func queryParams(r *http.Request) map[string]any {
	params := make(map[string]any, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

// writeJSONResponse writes a JSON response with the given status code
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError maps any error to the JSON error contract: code is the error
// kind, details carries the field error map for validation failures, and
// the request ID ties the response to the logs.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)

	resp := models.NewErrorResponse(appErr.Message, string(appErr.Kind))
	resp.RequestID = RequestID(r)
	if fieldErrors := validate.FieldErrors(appErr); fieldErrors != nil {
		resp.Details = map[string]any{"errors": fieldErrors}
	}

	logArgs := []any{
		"kind", string(appErr.Kind),
		"status", appErr.StatusCode,
		"severity", string(appErr.Severity),
		"path", r.URL.Path,
		"request_id", resp.RequestID,
	}
	switch appErr.Severity {
	case apperr.SeverityHigh, apperr.SeverityCritical:
		slog.Error("Request failed", logArgs...)
	default:
		slog.Warn("Request failed", logArgs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
