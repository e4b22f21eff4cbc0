package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryNotConfigured(t *testing.T) {
	c := NewClient("", time.Second)

	res := c.Query(context.Background(), "Plastic", "Ithaca, NY", "", "")

	assert.False(t, res.Available())
	assert.Nil(t, res.Regulation())
	assert.Equal(t, "not configured", res.Reason())
}

func TestQueryNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Query(context.Background(), "Glass", "Albany, NY", "", "").Regulation())
}

func TestQuerySuccess(t *testing.T) {
	var got queryRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"regulations":"Rinse #1 plastics.","sources":["https://example.gov/a","https://example.gov/b"]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	res := c.Query(context.Background(), "Plastic", "Ithaca, NY", "clean", "clamshell")

	require.True(t, res.Available())
	assert.Equal(t, "Rinse #1 plastics.", res.Regulation().Regulations)
	assert.Equal(t, []string{"https://example.gov/a", "https://example.gov/b"}, res.Regulation().Sources)
	assert.Equal(t, queryRequest{Material: "Plastic", Location: "Ithaca, NY", Condition: "clean", Context: "clamshell"}, got)
}

func TestQueryNonSuccessStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	res := NewClient(ts.URL, time.Second).Query(context.Background(), "Metal", "Albany, NY", "", "")

	assert.Nil(t, res.Regulation())
	assert.Equal(t, "status 503", res.Reason())
	assert.Equal(t, int32(1), calls.Load(), "no retries")
}

func TestQueryTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	res := NewClient(ts.URL, 50*time.Millisecond).Query(context.Background(), "Glass", "Ithaca, NY", "", "")

	assert.Nil(t, res.Regulation())
	assert.Equal(t, "timeout", res.Reason())
}

func TestQueryTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	res := NewClient(url, time.Second).Query(context.Background(), "Glass", "Ithaca, NY", "", "")

	assert.Nil(t, res.Regulation())
	assert.Contains(t, res.Reason(), "transport")
}

func TestQueryInvalidBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer ts.Close()

	res := NewClient(ts.URL, time.Second).Query(context.Background(), "Glass", "Ithaca, NY", "", "")

	assert.Nil(t, res.Regulation())
	assert.Equal(t, "invalid response body", res.Reason())
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	assert.True(t, NewClient(ts.URL, time.Second).Health(context.Background()))
	assert.False(t, NewClient("", time.Second).Health(context.Background()))
}
