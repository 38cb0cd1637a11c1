package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"empacy/pkg/protocol"
)

// Client sends requests to a coordinator over its Unix socket. Calls are
// serialized; one Client holds one connection.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
	seq     int
}

// Dial connects to the coordinator socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to coordinator: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Call sends op with params (marshaled as JSON; nil for none) and waits for
// the response. A response with success=false is returned without error; the
// error return covers transport failures only.
func (c *Client) Call(ctx context.Context, op protocol.Op, params any) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := protocol.Request{Op: op}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return protocol.Response{}, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	c.seq++
	req.ID = fmt.Sprintf("req-%d", c.seq)

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{}) //nolint:errcheck // reset only
	}

	data, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return protocol.Response{}, fmt.Errorf("send request: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return protocol.Response{}, fmt.Errorf("read response: %w", err)
		}
		return protocol.Response{}, errors.New("no response received")
	}
	var resp protocol.Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.ID != req.ID {
		return resp, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return resp, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
