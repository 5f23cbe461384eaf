package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	models "VitalSense/internal/domain/models"
	mid "VitalSense/internal/middleware"
	"VitalSense/internal/repository"
	"VitalSense/internal/service/ratelimit"
	"VitalSense/internal/services/vitals"
	"VitalSense/internal/usecase"
	"VitalSense/pkg/cache"
	xlogger "VitalSense/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordAssessment(string)         {}
func (nopMetrics) RecordRejected(string)           {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordRiskScore(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

type stubStore struct {
	rows      []*models.RiskAssessment
	healthErr error
	gotFrom   time.Time
	gotLimit  int
}

func (s *stubStore) Store(context.Context, *models.RiskAssessment) error { return nil }

func (s *stubStore) Query(_ context.Context, _ string, from, _ time.Time, limit int) ([]*models.RiskAssessment, error) {
	s.gotFrom, s.gotLimit = from, limit
	return s.rows, nil
}

func (s *stubStore) Health(context.Context) error { return s.healthErr }
func (s *stubStore) Close() error                 { return nil }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func setup(t *testing.T, store *stubStore, capacity float64) *echo.Echo {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	latest := repository.NewCachedLatest(mc, time.Minute)

	reg := usecase.NewSessionRegistry(func(id string) *vitals.Engine {
		return vitals.NewEngine(id, vitals.DefaultConfig())
	}, time.Hour, nil)
	pipe := mid.NewRealtimePipeline(nopMetrics{}, []mid.Sink{latest})
	proc := usecase.NewAssessmentProcessor(reg, pipe, nil, nopMetrics{}, nil)

	h := NewVitalsEchoHandler(xlogger.Nop(), proc, latest, nil, ratelimit.New(), RateLimit{Capacity: capacity, RefillPerSecond: 0.001})
	if store != nil {
		h.store = store
	}
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestIngestAndLatest(t *testing.T) {
	e := setup(t, nil, 100)

	_, env := do(e, http.MethodPost, "/api/readings", `{"subject_id":"rex","temperature":41,"heart_rate":190,"breed_group":"large"}`)
	if env.Status != http.StatusOK {
		t.Fatalf("ingest status %d: %s", env.Status, env.Data)
	}
	var a models.RiskAssessment
	if err := json.Unmarshal(env.Data, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.RiskLevel != models.RiskCritical || a.RiskScore != 100 {
		t.Fatalf("assessment %+v", a)
	}

	_, env = do(e, http.MethodGet, "/api/subjects/rex/latest", "")
	var latest models.RiskAssessment
	if env.Status != http.StatusOK || json.Unmarshal(env.Data, &latest) != nil || latest.ID != a.ID {
		t.Fatalf("latest status %d: %s", env.Status, env.Data)
	}

	if _, env = do(e, http.MethodGet, "/api/subjects/tom/latest", ""); env.Status != http.StatusNotFound {
		t.Fatalf("unknown subject status %d", env.Status)
	}
}

func TestIngestValidation(t *testing.T) {
	e := setup(t, nil, 100)

	cases := map[string]struct {
		body string
		want int
	}{
		"missing heart rate": {`{"subject_id":"rex","temperature":38.5}`, http.StatusBadRequest},
		"bad breed":          {`{"subject_id":"rex","temperature":38.5,"heart_rate":90,"breed_group":"huge"}`, http.StatusBadRequest},
		"malformed":          {`{"subject_id":`, http.StatusBadRequest},
		"bad subject id":     {`{"subject_id":"rex/../x","temperature":38.5,"heart_rate":90}`, http.StatusBadRequest},
		"sentinel zero":      {`{"subject_id":"rex","temperature":0,"heart_rate":90}`, http.StatusUnprocessableEntity},
		"negative":           {`{"subject_id":"rex","temperature":38.5,"heart_rate":-4}`, http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		if _, env := do(e, http.MethodPost, "/api/readings", tc.body); env.Status != tc.want {
			t.Fatalf("%s: status %d, want %d (%s)", name, env.Status, tc.want, env.Data)
		}
	}
	if _, env := do(e, http.MethodGet, "/api/subjects/rex/latest", ""); env.Status != http.StatusNotFound {
		t.Fatalf("rejected readings must not produce an assessment, got %d", env.Status)
	}
}

func TestIngestRateLimited(t *testing.T) {
	e := setup(t, nil, 2)
	body := `{"subject_id":"rex","temperature":38.5,"heart_rate":90}`
	for i := 0; i < 2; i++ {
		if _, env := do(e, http.MethodPost, "/api/readings", body); env.Status != http.StatusOK {
			t.Fatalf("request %d status %d", i, env.Status)
		}
	}
	if _, env := do(e, http.MethodPost, "/api/readings", body); env.Status != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", env.Status)
	}
}

func TestEndSession(t *testing.T) {
	e := setup(t, nil, 100)
	do(e, http.MethodPost, "/api/readings", `{"subject_id":"rex","temperature":38.5,"heart_rate":90}`)

	if rec, _ := do(e, http.MethodDelete, "/api/subjects/rex", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete code %d", rec.Code)
	}
	if _, env := do(e, http.MethodGet, "/api/subjects/rex/latest", ""); env.Status != http.StatusNotFound {
		t.Fatalf("latest after end: %d", env.Status)
	}
	if _, env := do(e, http.MethodDelete, "/api/subjects/rex", ""); env.Status != http.StatusNotFound {
		t.Fatalf("second delete: %d", env.Status)
	}
}

func TestAssessmentsQuery(t *testing.T) {
	store := &stubStore{rows: []*models.RiskAssessment{{ID: "1"}, {ID: "2"}}}
	e := setup(t, store, 100)

	_, env := do(e, http.MethodGet, "/api/subjects/rex/assessments?from=2026-01-01T00:00:00Z", "")
	if env.Status != http.StatusOK {
		t.Fatalf("status %d: %s", env.Status, env.Data)
	}
	var list struct {
		Rows  []models.RiskAssessment `json:"rows"`
		Total int64                   `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Total != 2 {
		t.Fatalf("list %+v err %v", list, err)
	}
	if store.gotLimit != 100 || store.gotFrom.Year() != 2026 {
		t.Fatalf("query args limit=%d from=%v", store.gotLimit, store.gotFrom)
	}

	if _, env = do(e, http.MethodGet, "/api/subjects/rex/assessments?from=soon", ""); env.Status != http.StatusBadRequest {
		t.Fatalf("bad range status %d", env.Status)
	}
	if _, env = do(e, http.MethodGet, "/api/subjects/rex/assessments?limit=5000", ""); env.Status != http.StatusBadRequest {
		t.Fatalf("bad limit status %d", env.Status)
	}
}

func TestAssessmentsWithoutStore(t *testing.T) {
	e := setup(t, nil, 100)
	if _, env := do(e, http.MethodGet, "/api/subjects/rex/assessments", ""); env.Status != http.StatusServiceUnavailable {
		t.Fatalf("status %d", env.Status)
	}
}

func TestHealth(t *testing.T) {
	store := &stubStore{}
	e := setup(t, store, 100)
	if rec, _ := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy code %d", rec.Code)
	}
	store.healthErr = errors.New("connection refused")
	if rec, _ := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded code %d", rec.Code)
	}
}
