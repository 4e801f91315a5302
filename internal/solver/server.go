// Package solver is a reference trajectory service. It answers every request with
// straight segments through the start, the interior points and the end, sampled
// evenly. It speaks the same protocol the editor's client does and stands in for a
// real solver in development and tests.
package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/fieldpath/pathedit/internal/geo"
	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/rs/zerolog"
)

// DefaultSamples is the number of points emitted per segment when unset.
const DefaultSamples = 8

// Solve builds the sampled polyline for one request.
func Solve(t core.Trajectory, samples int) (core.Polyline, error) {
	path := make([]core.Position, 0, len(t.Points)+2)
	path = append(path, t.Start.Translation)
	path = append(path, t.Points...)
	path = append(path, t.End.Translation)
	if !geo.Finite(path...) {
		return nil, geo.ErrInvalidCoordinates
	}
	return geo.Sample(path, samples), nil
}

// Server accepts solver connections and answers requests in order, one
// response line per request line.
type Server struct {
	samples int
	log     zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	served uint64
	wg     sync.WaitGroup
}

// New creates a server emitting samples points per segment.
func New(samples int, log zerolog.Logger) *Server {
	if samples < 1 {
		samples = DefaultSamples
	}
	return &Server{
		samples: samples,
		log:     log.With().Str("component", "solver").Logger(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds addr. Use port 0 for a free port.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Served returns the number of requests answered with a polyline.
func (s *Server) Served() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// Serve accepts connections until ctx is done, then closes the listener and every
// open connection and waits for the handlers to return.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("solver: Serve called before Listen")
	}
	s.log.Info().Str("addr", ln.Addr().String()).Int("samples", s.samples).Msg("Reference solver listening")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		if ctx.Err() != nil {
			_ = conn.Close()
		}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("Client connected")
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		log.Debug().Msg("Client disconnected")
	}()

	dec := trajectory.NewDecoder(conn)
	enc := trajectory.NewEncoder(conn)
	for {
		req, err := dec.DecodeRequest()
		if errors.Is(err, io.EOF) {
			return
		}
		if errors.Is(err, trajectory.ErrMalformedResponse) {
			// oversized line; the stream cannot be resynchronized
			_ = enc.EncodeError(err.Error())
			return
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				return
			}
			log.Warn().Err(err).Msg("Rejected request")
			if err := enc.EncodeError(err.Error()); err != nil {
				return
			}
			continue
		}

		poly, err := Solve(req.Trajectory(), s.samples)
		if err != nil {
			if err := enc.EncodeError(err.Error()); err != nil {
				return
			}
			continue
		}
		if err := enc.Encode(poly); err != nil {
			log.Debug().Err(err).Msg("Write failed")
			return
		}
		s.mu.Lock()
		s.served++
		s.mu.Unlock()
	}
}
