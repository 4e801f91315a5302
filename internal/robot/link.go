package robot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/rs/zerolog"
)

// DefaultLinkAddr is where the robot bridge listens.
const DefaultLinkAddr = "127.0.0.1:3042"

// ErrLinkDown is returned by Publish while the link is waiting to redial.
var ErrLinkDown = errors.New("robot link down")

// redialInterval spaces out redials so a missing bridge is not dialled every frame.
const redialInterval = time.Second

// Link publishes robot status to the bridge as newline-delimited JSON, one
// document per change.
type Link struct {
	addr    string
	timeout time.Duration
	log     zerolog.Logger
	dialer  net.Dialer

	mu       sync.Mutex
	conn     net.Conn
	enc      *trajectory.Encoder
	lastDial time.Time
	last     *Status
	sent     uint64
}

// DialLink connects to addr. Every write is bounded by timeout.
func DialLink(ctx context.Context, addr string, timeout time.Duration, log zerolog.Logger) (*Link, error) {
	l := &Link{addr: addr, timeout: timeout, log: log.With().Str("component", "robot-link").Logger()}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.dialLocked(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Link) dialLocked(ctx context.Context) error {
	l.lastDial = time.Now()
	dctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	conn, err := l.dialer.DialContext(dctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("dial robot link %s: %w", l.addr, err)
	}
	l.conn = conn
	l.enc = trajectory.NewEncoder(conn)
	l.last = nil
	return nil
}

// Publish sends s unless it equals the last status sent. After a failed
// write the link is dropped and redialled at most once per second.
func (l *Link) Publish(ctx context.Context, s Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		if time.Since(l.lastDial) < redialInterval {
			return ErrLinkDown
		}
		if err := l.dialLocked(ctx); err != nil {
			return err
		}
		l.log.Info().Str("addr", l.addr).Msg("Robot link reconnected")
	}
	if l.last != nil && sameStatus(*l.last, s) {
		return nil
	}

	if err := l.conn.SetWriteDeadline(time.Now().Add(l.timeout)); err != nil {
		l.dropLocked()
		return fmt.Errorf("set deadline: %w", err)
	}
	if err := l.enc.Encode(s); err != nil {
		l.dropLocked()
		return fmt.Errorf("publish robot status: %w", err)
	}
	l.last = &s
	l.sent++
	return nil
}

// Sent returns how many status documents were written.
func (l *Link) Sent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

func (l *Link) dropLocked() {
	_ = l.conn.Close()
	l.conn, l.enc = nil, nil
	l.log.Warn().Str("addr", l.addr).Msg("Dropped robot link")
}

// Close closes the connection if one is open.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn, l.enc = nil, nil
	return err
}

func sameStatus(a, b Status) bool {
	if a.State != b.State || a.Pose != b.Pose {
		return false
	}
	if a.Routine == nil || b.Routine == nil {
		return a.Routine == b.Routine
	}
	return *a.Routine == *b.Routine
}
