// Package client implements the bridge's client side: dial the loopback
// socket, submit one script, and collect the response stream.
//
// Transport failures (bridge unreachable, protocol garbage, wait expired)
// surface as Go errors so callers can tell "the bridge is down" apart from
// "the script failed inside the host", which arrives as a Result with an
// error status and a nil error.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/forge3d/blenderbridge/internal/bridge"
)

// Client errors
var (
	// ErrUnreachable indicates the bridge could not be reached at all
	ErrUnreachable = errors.New("could not connect to the bridge (is the host running with the bridge server?)")

	// ErrProtocol indicates the bridge answered with something that is not
	// a valid response stream
	ErrProtocol = errors.New("invalid response from bridge")

	// ErrTimeout indicates the bridge did not finish within the client's wait bound
	ErrTimeout = errors.New("bridge did not respond within timeout")
)

// maxResponseBytes bounds a single response frame from the bridge.
const maxResponseBytes = 1 << 20

// Config holds the client configuration.
type Config struct {
	// Addr is the bridge address in host:port form
	Addr string

	// Timeout is the per-request wait bound
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at a local bridge.
func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:8081",
		Timeout: 120 * time.Second,
	}
}

// Result is the collected outcome of one script submission.
type Result struct {
	// Status is the terminal status reported by the bridge (ok or error)
	Status string `json:"status"`

	// Messages is the ordered progress log, including the running
	// acknowledgement
	Messages []string `json:"messages"`

	// Error is the failure description for an error status
	Error string `json:"error,omitempty"`

	// Trace is the diagnostic backtrace for an error status
	Trace string `json:"trace,omitempty"`
}

// Client submits scripts to a bridge.
type Client struct {
	config Config
}

// New creates a client. Zero-valued config fields fall back to defaults.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Client{config: config}
}

// Execute submits code and blocks until the terminal frame arrives or the
// wait bound expires.
func (c *Client) Execute(ctx context.Context, code string) (*Result, error) {
	return c.Do(ctx, code, nil)
}

// Do is Execute with a live event callback: onEvent fires for every frame
// as it arrives (status is one of running, progress, ok, error), before the
// collected Result is returned.
func (c *Client) Do(ctx context.Context, code string, onEvent func(status, message string)) (*Result, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := bridge.WriteRequest(conn, &bridge.Request{Code: code}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	result := &Result{}
	for {
		resp, err := bridge.ReadResponse(conn, maxResponseBytes)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w (%v)", ErrTimeout, c.config.Timeout)
			}
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}

		if onEvent != nil {
			onEvent(resp.Status, eventMessage(resp))
		}

		switch resp.Status {
		case bridge.StatusRunning, bridge.StatusProgress:
			result.Messages = append(result.Messages, resp.Message)
		case bridge.StatusOK:
			result.Status = bridge.StatusOK
			if resp.Message != "" {
				result.Messages = append(result.Messages, resp.Message)
			}
			return result, nil
		case bridge.StatusError:
			result.Status = bridge.StatusError
			result.Error = resp.Error
			result.Trace = resp.Trace
			return result, nil
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrProtocol, resp.Status)
		}
	}
}

// Failed reports whether the result is an in-band failure.
func (r *Result) Failed() bool {
	return r.Status == bridge.StatusError
}

// eventMessage picks the human-readable line for a frame.
func eventMessage(resp *bridge.Response) string {
	if resp.Status == bridge.StatusError {
		return resp.Error
	}
	return resp.Message
}
