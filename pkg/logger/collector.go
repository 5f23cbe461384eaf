package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated log batches, usually the Kafka producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g., 30s)
	CountThreshold int           // max unique entries before an early flush
	Topic          string
	Publisher      Publisher
	// Levels lists the levels that are aggregated; empty means error only.
	Levels []string
	// IgnoreFields are left out of the dedup key, so one failing sink seen
	// across many subjects collapses into a single entry.
	IgnoreFields []string
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the message published on every flush.
type LogBatch struct {
	Host    string               `json:"host"`
	Flushed time.Time            `json:"flushed_at"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// LogCollector deduplicates log lines in memory and publishes them in
// batches. Entries with the same level, message, caller and key fields
// are merged into one with a count.
type LogCollector struct {
	config  *CollectionConfig
	levels  map[string]bool
	ignore  map[string]bool
	host    string
	logMap  map[string]*AggregatedLogEntry
	mutex   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	sending sync.WaitGroup
	now     func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	host, _ := os.Hostname()
	c := &LogCollector{
		config: config,
		levels: toSet(config.Levels),
		ignore: toSet(config.IgnoreFields),
		host:   host,
		logMap: make(map[string]*AggregatedLogEntry),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	if len(c.levels) == 0 {
		c.levels = map[string]bool{"error": true}
	}

	c.wg.Add(1)
	go c.periodicFlush()
	return c
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Accepts reports whether entries at level are aggregated.
func (d *LogCollector) Accepts(level string) bool { return d.levels[level] }

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	if !d.levels[level] {
		return
	}
	now := d.now()
	key := d.generateKey(level, message, fields, caller)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(d.logMap) >= d.config.CountThreshold {
		d.flushLocked()
	}
}

// Pending returns the number of distinct entries waiting for a flush.
func (d *LogCollector) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.logMap)
}

func (d *LogCollector) generateKey(level, message string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !d.ignore[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", level, message, caller)
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		fmt.Fprintf(h, "|%s=%s", k, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mutex.Lock()
			d.flushLocked()
			d.mutex.Unlock()
		case <-d.stopCh:
			d.mutex.Lock()
			d.flushLocked()
			d.mutex.Unlock()
			return
		}
	}
}

// flushLocked must be called with d.mutex held.
func (d *LogCollector) flushLocked() {
	if len(d.logMap) == 0 {
		return
	}
	if d.config.Publisher == nil {
		d.logMap = make(map[string]*AggregatedLogEntry)
		return
	}

	batch := LogBatch{Host: d.host, Flushed: d.now(), Entries: make([]AggregatedLogEntry, 0, len(d.logMap))}
	for _, entry := range d.logMap {
		batch.Entries = append(batch.Entries, *entry)
	}
	d.logMap = make(map[string]*AggregatedLogEntry)

	d.sending.Add(1)
	go func() {
		defer d.sending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch.Entries), d.config.Topic, err)
		}
	}()
}

// Close flushes what is left and waits for in-flight publishes.
func (d *LogCollector) Close() {
	select {
	case <-d.stopCh:
		return
	default:
		close(d.stopCh)
	}
	d.wg.Wait()
	d.sending.Wait()
}
