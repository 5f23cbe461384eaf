package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}
func TestParseRange(t *testing.T) {
	f, to, err := ParseRange("", "")
	if err != nil || !f.IsZero() || !to.IsZero() {
		t.Fatalf("open range: %v %v %v", f, to, err)
	}
	if _, _, err := ParseRange("yesterday", ""); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, _, err := ParseRange("2024-10-11T00:00:00Z", "2024-10-10T00:00:00Z"); err == nil {
		t.Fatalf("expected inverted range error")
	}
	f, to, err = ParseRange("2024-10-10T00:00:00Z", "1728604800")
	if err != nil || !to.After(f) {
		t.Fatalf("closed range: %v %v %v", f, to, err)
	}
}
