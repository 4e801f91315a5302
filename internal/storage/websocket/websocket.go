// Package websocket streams session and generation messages to a viewer over WebSocket.
// It implements storage.Backend but keeps nothing itself.
package websocket

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/fieldpath/pathedit/pkg/streaming"
	"github.com/rs/zerolog"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL          string
	Secret       string
	AckTimeout   time.Duration
	MaxReconnect int // 0 retries forever
}

// DefaultAckTimeout applies when Config.AckTimeout is zero.
const DefaultAckTimeout = 10 * time.Second

// Backend streams journal data over WebSocket.
type Backend struct {
	conn    *connection
	cfg     Config
	started atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, log zerolog.Logger) *Backend {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return &Backend{
		conn: newConnection(log.With().Str("component", "stream").Logger(), cfg.MaxReconnect),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Started reports whether a session is announced and not yet ended.
func (b *Backend) Started() bool {
	return b.started.Load()
}

// Stats returns how many generation messages were queued and dropped.
func (b *Backend) Stats() (sent, dropped uint64) {
	return b.sent.Load(), b.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartSession announces s and waits for the server ack. The message is replayed after
// a reconnect.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: *s})
	if err != nil {
		return err
	}
	b.conn.setReplay(data)
	if err := b.conn.sendAndWait(data, streaming.TypeStartSession, b.cfg.AckTimeout); err != nil {
		return err
	}
	b.started.Store(true)
	return nil
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, struct{}{})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, b.cfg.AckTimeout)

	b.conn.setReplay(nil)
	b.started.Store(false)
	return err
}

// RecordGeneration pushes g to the writer without waiting.
func (b *Backend) RecordGeneration(g *core.Generation) error {
	data, err := marshalEnvelope(streaming.TypeGeneration, streaming.NewGenerationPayload(*g))
	if err != nil {
		return err
	}
	if b.conn.send(data) {
		b.sent.Add(1)
	} else {
		b.dropped.Add(1)
	}
	return nil
}
