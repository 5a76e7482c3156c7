package highlevel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		LocationID: "loc-1",
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ==========================
// Configuration Tests
// ==========================

func TestNewClient_RequiresInjectedCredentials(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"missing key", Config{BaseURL: "http://x", LocationID: "loc"}, "api key is required"},
		{"missing location", Config{BaseURL: "http://x", APIKey: "key"}, "location id is required"},
		{"missing base url", Config{APIKey: "key", LocationID: "loc"}, "base url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.True(t, errors.Is(err, ErrNotConfigured))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// ==========================
// Contact Operation Tests
// ==========================

func TestClient_CreateContact(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contacts/", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "2021-07-28", r.Header.Get("Version"))

		var body ContactRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "loc-1", body.LocationID)
		assert.Equal(t, "Acme LLC", body.CompanyName)
		assert.Equal(t, "batch-1", body.CustomFieldValue("batch_id"))

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"contact": map[string]string{"id": "contact-123"},
		})
	})

	id, err := client.CreateContact(context.Background(), &ContactRequest{
		Name:         "Acme LLC",
		CompanyName:  "Acme LLC",
		CustomFields: []CustomField{{Key: "batch_id", FieldValue: "batch-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "contact-123", id)
}

func TestClient_CreateContact_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "email invalid"})
	})

	_, err := client.CreateContact(context.Background(), &ContactRequest{Name: "Bad LLC"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
	assert.Contains(t, err.Error(), "email invalid")
}

func TestClient_CreateContact_MissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"contact": map[string]string{}})
	})

	_, err := client.CreateContact(context.Background(), &ContactRequest{Name: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contact id")
}

func TestClient_AddTagsAndNote(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/contacts/firm-1/tags":
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"order-1"}, body["tags"])
			writeJSON(w, http.StatusCreated, map[string]interface{}{"tags": body["tags"]})
		case "/contacts/firm-1/notes":
			writeJSON(w, http.StatusCreated, map[string]interface{}{"note": map[string]string{"id": "note-1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	require.NoError(t, client.AddTags(ctx, "firm-1", []string{"order-1"}))
	noteID, err := client.AddNote(ctx, "firm-1", "Order confirmed")
	require.NoError(t, err)

	assert.Equal(t, "note-1", noteID)
	assert.Equal(t, []string{"/contacts/firm-1/tags", "/contacts/firm-1/notes"}, paths)
}

func TestClient_TestConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/contacts/", r.URL.Path)
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": []interface{}{}})
	})

	require.NoError(t, client.TestConnection(context.Background()))
}

func TestClient_TestConnection_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
	})

	err := client.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestAPIError_Retryable(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).Retryable())
	assert.True(t, (&APIError{StatusCode: http.StatusBadGateway}).Retryable())
	assert.False(t, (&APIError{StatusCode: http.StatusBadRequest}).Retryable())
}
