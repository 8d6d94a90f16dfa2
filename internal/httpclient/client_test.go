package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, http.MethodPost, r.Method)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithHeader("x-api-key", "secret"), WithRateLimit(100, 1))
	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]string{"name": "kit"}, &out))
	assert.Equal(t, "kit", out["echo"])
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "deposit not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "deposit not found")
	assert.False(t, Transient(err))
}

func TestTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, Transient(&StatusError{StatusCode: http.StatusBadGateway}))
	assert.True(t, Transient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, Transient(errors.New("connection reset")))
	assert.False(t, Transient(context.Canceled))
}
