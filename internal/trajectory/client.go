// Package trajectory talks to the external trajectory service and caches the
// polylines it returns, one per routine.
package trajectory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/rs/zerolog"
)

// Default connection settings.
const (
	DefaultAddr           = "127.0.0.1:65426"
	DefaultBackoff        = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the pause between connection attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithAttempts caps the number of connection attempts. Zero retries forever.
func WithAttempts(n int) Option {
	return func(c *Client) {
		c.attempts = n
	}
}

// WithRequestTimeout bounds one Generate round trip. Zero leaves only the
// caller's context deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger for connection events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Client is a blocking request/response client. One request is in flight at
// a time; concurrent callers queue on an internal lock.
type Client struct {
	addr     string
	backoff  time.Duration
	attempts int
	timeout  time.Duration
	log      zerolog.Logger
	dialer   net.Dialer

	mu   sync.Mutex
	conn net.Conn
	enc  *Encoder
	dec  *Decoder
}

// NewClient returns an unconnected client.
func NewClient(addr string, opts ...Option) *Client {
	c := &Client{
		addr:    addr,
		backoff: DefaultBackoff,
		timeout: DefaultRequestTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials addr, retrying with a fixed backoff until it succeeds, the
// attempt limit runs out or ctx is done.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := NewClient(addr, opts...)
	if err := c.Dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Dial establishes the connection, retrying as configured.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	var lastErr error
	for attempt := 1; c.attempts == 0 || attempt <= c.attempts; attempt++ {
		err := c.dialLocked(ctx)
		if err == nil {
			c.log.Info().Str("addr", c.addr).Int("attempt", attempt).Msg("Connected to trajectory service")
			return nil
		}
		lastErr = err
		c.log.Warn().Err(err).Str("addr", c.addr).Int("attempt", attempt).Msg("Trajectory service unreachable")
		if attempt == c.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		case <-time.After(c.backoff):
		}
	}
	return fmt.Errorf("%w: %d attempts: %w", ErrNotConnected, c.attempts, lastErr)
}

func (c *Client) dialLocked(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.enc = NewEncoder(conn)
	c.dec = NewDecoder(conn)
	return nil
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Addr returns the service address.
func (c *Client) Addr() string {
	return c.addr
}

// Generate sends one routine and waits for its polyline. A transport or
// framing failure drops the connection since the stream position is unknown;
// the next call redials once before giving up with ErrNotConnected. An error
// document from the service keeps the connection.
func (c *Client) Generate(ctx context.Context, t core.Trajectory) (core.Polyline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return nil, fmt.Errorf("%w: redial %s: %w", ErrNotConnected, c.addr, err)
		}
		c.log.Info().Str("addr", c.addr).Msg("Reconnected to trajectory service")
	}

	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.enc.Encode(NewRequest(t)); err != nil {
		c.dropLocked()
		return nil, c.ctxErr(ctx, fmt.Errorf("send request: %w", err))
	}
	pts, err := c.dec.DecodeResponse()
	switch {
	case err == nil:
		return pts, nil
	case errors.Is(err, ErrSolver):
		return nil, err
	case errors.Is(err, io.EOF):
		c.dropLocked()
		return nil, fmt.Errorf("%w: connection closed by service", ErrNotConnected)
	default:
		c.dropLocked()
		return nil, c.ctxErr(ctx, fmt.Errorf("read response: %w", err))
	}
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn, c.enc, c.dec = nil, nil, nil
	c.log.Warn().Str("addr", c.addr).Msg("Dropped trajectory service connection")
}

// Close closes the connection if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.enc, c.dec = nil, nil, nil
	return err
}
