package devicegw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func gatewayServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClientStreamsReadings(t *testing.T) {
	srv := gatewayServer(t, []string{
		`{"type":"hello"}`,
		`not json`,
		`{"type":"reading","data":[{"subject_id":"rex","temperature":38.6,"heart_rate":92,"breed_group":"large"},{"subject_id":"tom","temperature":38.9,"heart_rate":150}]}`,
	})
	defer srv.Close()

	c := New(wsURL(srv), "secret", 10*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if !c.IsConnected() {
		t.Fatalf("expected connected")
	}

	rCh, _ := c.Read(ctx)
	var got []string
	for len(got) < 2 {
		select {
		case r := <-rCh:
			if r == nil {
				t.Fatalf("stream closed early")
			}
			got = append(got, r.SubjectID)
			if r.SubjectID == "rex" && (r.Temperature == nil || *r.Temperature != 38.6 || r.BreedGroup != "large") {
				t.Fatalf("decoded %+v", r)
			}
		case <-ctx.Done():
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "rex" || got[1] != "tom" {
		t.Fatalf("order = %v", got)
	}
}

func TestClientRejectsBadToken(t *testing.T) {
	srv := gatewayServer(t, nil)
	defer srv.Close()

	c := New(wsURL(srv), "wrong", 0, 0, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("expected handshake failure")
	}
	if c.IsConnected() {
		t.Fatalf("must not report connected")
	}
}

func TestClientReportsReadErrorAndReconnects(t *testing.T) {
	srv := gatewayServer(t, nil)
	defer srv.Close()

	c := New(wsURL(srv), "secret", 10*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, errCh := c.Read(ctx)

	// drop the connection from under the reader
	c.mu.Lock()
	_ = c.conn.Close()
	c.mu.Unlock()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected read error")
		}
	case <-ctx.Done():
		t.Fatalf("no read error reported")
	}
	if err := c.Reconnect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("expected connected after reconnect")
	}
	_ = c.Close()
}
