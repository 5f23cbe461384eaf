package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendAndParse_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Model-Token") != "secret" {
			t.Errorf("missing client header")
		}
		var in map[string]float64
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"echo": in["temperature"]})
	}))
	defer srv.Close()

	c := NewClient(WithHeader("X-Model-Token", "secret"))
	var out map[string]float64
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost,
		URL:    srv.URL,
		Body:   map[string]float64{"temperature": 38.6},
	}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["echo"] != 38.6 {
		t.Fatalf("echo = %v", out["echo"])
	}
}

func TestSendAndParse_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusServiceUnavailable || !se.Retryable() {
		t.Fatalf("unexpected status error %+v", se)
	}
	if (&StatusError{Code: http.StatusBadRequest}).Retryable() {
		t.Fatalf("400 should not be retryable")
	}
}

func TestSendAndParse_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value": "0123456789012345678901234567890123456789"}`))
	}))
	defer srv.Close()

	var out map[string]string
	err := NewClient(WithMaxResponseBytes(16)).SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	if err == nil {
		t.Fatalf("expected truncated body to fail decoding")
	}
}
