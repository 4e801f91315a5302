// Package streaming defines the JSON messages pushed to trajectory viewers over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeGeneration   = "generation"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a session.
type StartSessionPayload struct {
	Session core.Session `json:"session"`
}

// GenerationPayload carries one solver result. A failed request has Error set and no
// polyline; viewers keep showing the previous path for that routine.
type GenerationPayload struct {
	Session    uuid.UUID     `json:"session"`
	Routine    int           `json:"routine"`
	Revision   uint64        `json:"revision"`
	Start      core.Pose     `json:"start"`
	End        core.Pose     `json:"end"`
	Polyline   core.Polyline `json:"polyline"`
	Length     float64       `json:"length"`
	DurationMs float64       `json:"durationMs"`
	Error      string        `json:"error,omitempty"`
}

// NewGenerationPayload builds the payload for g.
func NewGenerationPayload(g core.Generation) GenerationPayload {
	p := GenerationPayload{
		Session:    g.Session,
		Routine:    g.Routine,
		Revision:   g.Revision,
		Start:      g.Request.Start,
		End:        g.Request.End,
		Polyline:   g.Polyline,
		Length:     g.Polyline.Length(),
		DurationMs: float64(g.Duration.Microseconds()) / 1000,
		Error:      g.Error,
	}
	if p.Polyline == nil && g.OK() {
		p.Polyline = core.Polyline{}
	}
	return p
}
