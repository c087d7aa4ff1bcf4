package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something broke", "INTERNAL_SERVER_ERROR")

	assert.Equal(t, "error", resp.Error)
	assert.Equal(t, "something broke", resp.Message)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", resp.Code)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestErrorResponseOmitsEmptyFields(t *testing.T) {
	resp := NewErrorResponse("bad request", "VALIDATION_ERROR")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "details")
	assert.NotContains(t, decoded, "request_id")
}

func TestHealthCheckResponseAddComponent(t *testing.T) {
	resp := NewHealthCheckResponse(StatusHealthy)
	resp.AddComponent("storage", StatusUnhealthy, "connection refused")

	component, ok := resp.Components["storage"]
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, component.Status)
	assert.Equal(t, "connection refused", component.Message)
}

func TestSessionResponseRedactsToken(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	session := NewSession("offline_demo.myshopify.com", "demo.myshopify.com", false)
	session.AccessToken = "shpat_secret_token"
	session.Scope = "read_products"
	session.Expires = &expires

	var resp SessionResponse
	resp.FromSession(session)

	assert.Equal(t, session.ID, resp.ID)
	assert.Equal(t, session.Shop, resp.Shop)
	assert.True(t, resp.Active)

	data, err := json.Marshal(&resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "shpat_secret_token")
}

func TestSessionResponseInactiveWithoutToken(t *testing.T) {
	session := NewSession("id", "demo.myshopify.com", false)

	var resp SessionResponse
	resp.FromSession(session)

	assert.False(t, resp.Active)
}
