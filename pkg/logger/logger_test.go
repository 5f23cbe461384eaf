package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func (p *capturePublisher) entries() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b.Entries...)
	}
	return out
}

func TestWith_AddsFieldsToEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With(String("subject_id", "dog-1"))
	l.Info("assessed", Float64("risk_score", 42.5), Duration("took", 3*time.Millisecond))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["subject_id"] != "dog-1" {
		t.Fatalf("subject_id missing: %v", line)
	}
	if line["risk_score"] != 42.5 || line["message"] != "assessed" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filter not applied: %q", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("nothing")
	l.Error("nothing", Error(errors.New("x")))
	if l.With(String("a", "b")) != nil {
		t.Fatalf("With on nil should stay nil")
	}
	l.RemoveCollector()
}

func TestCollector_AggregatesAcrossSubjects(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWithWriter(&bytes.Buffer{}, zerolog.DebugLevel)
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "vitals.logs",
		Publisher:      pub,
		IgnoreFields:   []string{"subject_id"},
	})

	for _, id := range []string{"a", "b", "c"} {
		l.With(String("subject_id", id)).Error("sink failed", String("sink", "clickhouse"))
	}
	l.Warn("not collected")
	l.Error("sink failed", String("sink", "kafka"))
	l.RemoveCollector()

	entries := pub.entries()
	if pub.topic != "vitals.logs" {
		t.Fatalf("topic = %q", pub.topic)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 distinct entries, got %d: %+v", len(entries), entries)
	}
	counts := map[interface{}]int{}
	for _, e := range entries {
		if e.Level != "error" {
			t.Fatalf("unexpected level %q", e.Level)
		}
		counts[e.Fields["sink"]] = e.Count
	}
	if counts["clickhouse"] != 3 || counts["kafka"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCollector_FlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Publisher:      pub,
		Levels:         []string{"error", "warn"},
	})
	c.AddLog("warn", "one", nil, "x.go:1")
	if c.Pending() != 1 {
		t.Fatalf("pending = %d", c.Pending())
	}
	c.AddLog("error", "two", nil, "x.go:2")
	if c.Pending() != 0 {
		t.Fatalf("threshold flush did not reset, pending = %d", c.Pending())
	}
	c.AddLog("info", "ignored", nil, "x.go:3")
	c.Close()
	c.Close()

	if got := len(pub.entries()); got != 2 {
		t.Fatalf("published %d entries, want 2", got)
	}
}
