package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client manages the ClickHouse connection pool and times every statement.
type Client struct {
	db *sql.DB
}

// NewClient opens the pool and pings the server before returning.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            9000,
		Database:        "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db, err := sql.Open("clickhouse", BuildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	initMetricsOnce()
	return &Client{db: db}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// ExecContext runs a statement and records its latency under op.
func (c *Client) ExecContext(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query, args...)
	observe(op, start, err)
	return res, err
}

// QueryContext runs a query and records its latency under op.
func (c *Client) QueryContext(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	observe(op, start, err)
	return rows, err
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.ExecContext(ctx, "init_schema", stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// BuildDSN renders the clickhouse-go DSN for cfg.
func BuildDSN(cfg ClientConfig) string {
	scheme := "clickhouse"
	if cfg.UseHTTP {
		scheme = "http"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	q := url.Values{}
	if cfg.DialTimeout > 0 {
		q.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		q.Set("read_timeout", cfg.ReadTimeout.String())
	}
	// write_timeout stays client-side; some server versions reject it as a setting.
	if cfg.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(cfg.MaxExecTime.Seconds())))
	}
	if cfg.AsyncInsert {
		q.Set("async_insert", "1")
		if cfg.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

var (
	queryLatency *prometheus.HistogramVec
	queryErrors  *prometheus.CounterVec
	metricsOnce  sync.Once
	registerer   prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetMetricsRegisterer overrides the registerer; call before the first NewClient.
func SetMetricsRegisterer(reg prometheus.Registerer) { registerer = reg }

func initMetricsOnce() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		queryLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vitals_clickhouse_query_seconds",
			Help:    "ClickHouse statement latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"op"})
		queryErrors = f.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_clickhouse_errors_total",
			Help: "ClickHouse statement failures",
		}, []string{"op"})
	})
}

func observe(op string, start time.Time, err error) {
	if queryLatency == nil {
		return
	}
	queryLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		queryErrors.WithLabelValues(op).Inc()
	}
}
