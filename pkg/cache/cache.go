package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error
}

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// encode stores strings and byte slices verbatim and everything else as JSON.
func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}

var (
	lookups     *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetMetricsRegisterer overrides the registerer; call before the first cache is built.
func SetMetricsRegisterer(reg prometheus.Registerer) { registerer = reg }

func initMetricsOnce() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		lookups = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_cache_lookups_total",
			Help: "Cache reads by backend and result (hit, miss, error)",
		}, []string{"backend", "result"})
		evictions = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_cache_evictions_total",
			Help: "Entries dropped from a bounded cache, by reason",
		}, []string{"backend", "reason"})
	})
}

func observeLookup(backend string, err error) {
	if lookups == nil {
		return
	}
	switch {
	case err == nil:
		lookups.WithLabelValues(backend, "hit").Inc()
	case errors.Is(err, ErrCacheMiss):
		lookups.WithLabelValues(backend, "miss").Inc()
	default:
		lookups.WithLabelValues(backend, "error").Inc()
	}
}

func observeEviction(backend, reason string, n int) {
	if evictions == nil || n == 0 {
		return
	}
	evictions.WithLabelValues(backend, reason).Add(float64(n))
}
