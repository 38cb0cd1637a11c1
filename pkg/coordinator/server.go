package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"empacy/pkg/protocol"
)

// maxLineSize bounds one request line; context packages and language exports
// travel inline.
const maxLineSize = 16 << 20

// Server speaks line-delimited JSON: one Request per line in, one Response per
// line out, in request order per connection.
type Server struct {
	coord *Coordinator
}

// NewServer returns a Server dispatching to coord.
func NewServer(coord *Coordinator) *Server {
	return &Server{coord: coord}
}

// ListenAndServe binds a Unix socket at path, replacing a stale one, and
// serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path) //nolint:noctx // UDS bind is instant
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", path, err)
	}
	defer os.Remove(path) //nolint:errcheck // best-effort cleanup
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// waits for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.coord.logger.Info("coordinator listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer stopConn()
			if err := s.serveStream(ctx, conn, conn); err != nil {
				s.coord.logger.Debug("connection closed", "error", err)
			}
		}()
	}
}

// ServeStdio serves requests read from r, writing responses to w, until r is
// exhausted or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	return s.serveStream(ctx, r, w)
}

func (s *Server) serveStream(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp protocol.Response
		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = protocol.Fail(&protocol.ValidationError{Field: "request", Reason: err.Error()})
		} else {
			resp = s.coord.Handle(ctx, req)
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}
