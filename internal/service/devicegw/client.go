package devicegw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"VitalSense/internal/domain/models"
	drepo "VitalSense/internal/domain/repository"
	"VitalSense/pkg/logger"
)

// Client implements DeviceStream over the device gateway WebSocket. The
// channels returned by Read survive reconnects.
type Client struct {
	url            string
	token          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	l              *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

var _ drepo.DeviceStream = (*Client)(nil)

// New creates a gateway stream. token is sent as a bearer header when set.
func New(url, token string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:            url,
		token:          token,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		dialer:         websocket.DefaultDialer,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	hdr := http.Header{}
	if c.token != "" {
		hdr.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, hdr)
	if err != nil {
		return fmt.Errorf("device gateway connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.l != nil {
		c.l.Info("device gateway connected", logger.String("url", c.url))
	}
	return nil
}

// gwMessage is one gateway frame; non-reading frames are ignored.
type gwMessage struct {
	Type string                  `json:"type"`
	Data []models.ReadingRequest `json:"data"`
}

// Read streams reading requests and errors until ctx is done. After a read
// error the loop waits for Reconnect to install a new connection.
func (c *Client) Read(ctx context.Context) (<-chan *models.ReadingRequest, <-chan error) {
	readings := make(chan *models.ReadingRequest, 256)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)

	go func() {
		defer close(readings)
		defer close(errs)
		var failed *websocket.Conn
		for {
			if ctx.Err() != nil {
				return
			}
			conn := c.current()
			if conn == nil || conn == failed {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.reconnectDelay):
				}
				continue
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				failed = conn
				c.markDisconnected(conn)
				select {
				case errs <- fmt.Errorf("device gateway read: %w", err):
				default:
				}
				continue
			}
			var m gwMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "reading" {
				continue
			}
			for i := range m.Data {
				r := m.Data[i]
				select {
				case readings <- &r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return readings, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingInterval/2))
			}
			c.mu.Unlock()
		}
	}
}

// Reconnect closes the current connection, waits reconnectDelay and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.connected = false
	}
	c.mu.Unlock()
}
