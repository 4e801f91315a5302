package websocket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendChSize = 1024
	ackChSize  = 16
	writeWait  = 10 * time.Second
	maxBackoff = 30 * time.Second
)

// connection owns one WebSocket with a single writer goroutine. Sends never block the
// caller; when the buffer is full the message is dropped.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}
	closed bool

	url          string
	secret       string
	maxReconnect int
	dialer       *ws.Dialer

	// start_session message replayed after a reconnect
	replay []byte

	log zerolog.Logger
}

func newConnection(log zerolog.Logger, maxReconnect int) *connection {
	return &connection{
		sendCh:       make(chan []byte, sendChSize),
		ackCh:        make(chan streaming.AckMessage, ackChSize),
		done:         make(chan struct{}),
		maxReconnect: maxReconnect,
		dialer:       &ws.Dialer{HandshakeTimeout: writeWait},
		log:          log,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.url = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.start(conn)
	return nil
}

// start runs the loops for conn. The writer exits with the reader so a replaced conn
// never consumes sends meant for its successor.
func (c *connection) start(conn *ws.Conn) {
	dead := make(chan struct{})
	go c.writeLoop(conn, dead)
	go c.readLoop(conn, dead)
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := c.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh into conn until it fails or the connection shuts down.
func (c *connection) writeLoop(conn *ws.Conn, dead <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-dead:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn().Err(err).Msg("WebSocket SetWriteDeadline error")
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("WebSocket write error")
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes server acks to ackCh.
func (c *connection) readLoop(conn *ws.Conn, dead chan<- struct{}) {
	defer close(dead)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("WebSocket read error")
			go c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.log.Debug().Str("raw", string(message)).Msg("Non-ack message received")
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.log.Debug().Str("for", ack.For).Msg("Ack channel full, dropping")
		}
	}
}

// reconnect replaces a failed conn with exponential backoff. Both loops may report the
// same failure; only the first caller for a given conn proceeds.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := 100 * time.Millisecond
	for attempt := 1; c.maxReconnect <= 0 || attempt <= c.maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		replay := c.replay
		c.mu.Unlock()

		if replay != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.TextMessage, replay); err != nil {
				c.log.Warn().Err(err).Msg("Failed to replay start_session after reconnect")
			}
		}

		c.log.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		c.start(conn)
		return
	}

	c.log.Error().Int("maxAttempts", c.maxReconnect).Msg("WebSocket reconnect failed after max attempts")
}

func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.log.Warn().Msg("WebSocket send channel full, dropping message")
		return false
	}
}

// sendAndWait sends data and blocks until the server acknowledges msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
		}
	}
}

// close sends a close frame and stops all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}
