package trajectory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fieldpath/pathedit/pkg/core"
)

// MaxLineSize bounds one protocol document. A longer line is a protocol error.
const MaxLineSize = 4 * 1024 * 1024

var (
	// ErrNotConnected is returned when no connection to the solver could be made.
	ErrNotConnected = errors.New("trajectory service not connected")
	// ErrMalformedResponse is returned when a response line is not a valid document.
	ErrMalformedResponse = errors.New("malformed trajectory response")
	// ErrSolver is returned when the service answered with an error document.
	ErrSolver = errors.New("trajectory service error")
)

// Units names the measurement units of a request. The service must reject a
// request whose units it does not understand.
type Units struct {
	Length string `json:"length"`
	Angle  string `json:"angle"`
}

// SIUnits is the only unit set the editor sends.
var SIUnits = Units{Length: "meter", Angle: "radian"}

// Request is one generation request as written on the wire.
type Request struct {
	Units  Units           `json:"units"`
	Start  core.Pose       `json:"start"`
	Points []core.Position `json:"points"`
	End    core.Pose       `json:"end"`
}

// NewRequest wraps a split routine in a request document.
func NewRequest(t core.Trajectory) Request {
	points := t.Points
	if points == nil {
		points = []core.Position{}
	}
	return Request{Units: SIUnits, Start: t.Start, Points: points, End: t.End}
}

// Trajectory returns the request without its units.
func (r Request) Trajectory() core.Trajectory {
	return core.Trajectory{Start: r.Start, Points: r.Points, End: r.End}
}

type errorDoc struct {
	Error string `json:"error"`
}

// Encoder writes newline-delimited JSON documents.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes v as one line and flushes.
func (e *Encoder) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// EncodeError writes an error document.
func (e *Encoder) EncodeError(msg string) error {
	return e.Encode(errorDoc{Error: msg})
}

// Decoder reads newline-delimited JSON documents.
type Decoder struct {
	s *bufio.Scanner
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Decoder{s: s}
}

// Line returns the next non-empty line, or io.EOF once the peer has closed.
// A final line cut short by the close is still returned and fails to parse.
func (d *Decoder) Line() ([]byte, error) {
	for d.s.Scan() {
		line := bytes.TrimSpace(d.s.Bytes())
		if len(line) > 0 {
			return line, nil
		}
	}
	if err := d.s.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedResponse, MaxLineSize)
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	return nil, io.EOF
}

// DecodeRequest reads one request document and checks its units.
func (d *Decoder) DecodeRequest() (Request, error) {
	line, err := d.Line()
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("unmarshal request: %w", err)
	}
	if req.Units != SIUnits {
		return Request{}, fmt.Errorf("unsupported units %s/%s", req.Units.Length, req.Units.Angle)
	}
	return req, nil
}

// DecodeResponse reads one response. A JSON array is a polyline; an object
// carrying "error" is a service failure wrapped in ErrSolver.
func (d *Decoder) DecodeResponse() (core.Polyline, error) {
	line, err := d.Line()
	if err != nil {
		return nil, err
	}
	return ParseResponse(line)
}

// ParseResponse decodes a single response document.
func ParseResponse(line []byte) (core.Polyline, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedResponse)
	}
	switch line[0] {
	case '[':
		var pts core.Polyline
		if err := json.Unmarshal(line, &pts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return pts, nil
	case '{':
		var doc errorDoc
		if err := json.Unmarshal(line, &doc); err != nil || doc.Error == "" {
			return nil, fmt.Errorf("%w: object without error", ErrMalformedResponse)
		}
		return nil, fmt.Errorf("%w: %s", ErrSolver, doc.Error)
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedResponse, line[0])
	}
}
