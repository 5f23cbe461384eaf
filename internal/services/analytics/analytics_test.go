package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func newBase(url string, attempts int, threshold uint32) *HTTPServiceBase {
	b := NewHTTPServiceBaseWith(url, "test", time.Second, attempts, BreakerSettings{
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: threshold,
	})
	b.backoff = time.Millisecond
	return b
}

func TestPointClassifierDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pointPath || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req pointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(pointResponse{Anomalous: req.HeartRate > 180, Score: req.HeartRate / 100})
	}))
	defer srv.Close()

	c := NewHTTPPointClassifierWithBase(newBase(srv.URL, 1, 5))
	res, err := c.Predict(context.Background(), 39, 200)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !res.Anomalous || res.Score != 2 {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestSequencePredictorRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"next":[38.6,92]}`))
	}))
	defer srv.Close()

	p := NewHTTPSequencePredictorWithBase(newBase(srv.URL, 3, 10))
	got, err := p.PredictNext(context.Background(), [][2]float64{{38.5, 90}, {38.6, 91}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != [2]float64{38.6, 92} || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("got %v after %d calls", got, calls)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewHTTPSequencePredictorWithBase(newBase(srv.URL, 3, 10))
	if _, err := p.PredictNext(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSequencePredictorRejectsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"next":[38.6]}`))
	}))
	defer srv.Close()

	p := NewHTTPSequencePredictorWithBase(newBase(srv.URL, 1, 5))
	if _, err := p.PredictNext(context.Background(), nil); err == nil {
		t.Fatalf("expected error for short prediction")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := newBase(srv.URL, 1, 2)
	c := NewHTTPPointClassifierWithBase(base)
	for i := 0; i < 2; i++ {
		if _, err := c.Predict(context.Background(), 38, 90); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if base.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v", base.State())
	}
	_, err := c.Predict(context.Background(), 38, 90)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("server hit %d times", calls)
	}
}

func TestUnconfiguredBase(t *testing.T) {
	c := NewHTTPPointClassifierWithBase(newBase("", 3, 5))
	if _, err := c.Predict(context.Background(), 38, 90); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}
