// internal/bridge/errors.go
package bridge

import "errors"

// Configuration errors
var (
	// ErrInvalidPort indicates the port number is out of valid range
	ErrInvalidPort = errors.New("port must be between 0 and 65535 (0 picks an ephemeral port)")

	// ErrNonLoopbackHost indicates the bind address is not a loopback address
	ErrNonLoopbackHost = errors.New("bridge must bind a loopback address")

	// ErrInvalidMaxConnections indicates max connections is too low
	ErrInvalidMaxConnections = errors.New("max connections must be at least 1")

	// ErrInvalidExecTimeout indicates the execution timeout is too short
	ErrInvalidExecTimeout = errors.New("execution timeout must be at least 1 second")

	// ErrInvalidPayloadLimit indicates the payload size limit is too low
	ErrInvalidPayloadLimit = errors.New("max payload size must be at least 1 KiB")

	// ErrInvalidQueueDepth indicates the job queue bound is too low
	ErrInvalidQueueDepth = errors.New("queue depth must be at least 1")
)

// Framing errors. A framing failure is fatal to the connection: the server
// sends a best-effort terminal error frame naming the failure, then closes.
var (
	// ErrEmptyFrame indicates a frame header announcing a zero-length payload
	ErrEmptyFrame = errors.New("empty frame")

	// ErrFrameTooLarge indicates a frame header exceeding the payload limit
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")

	// ErrTruncatedFrame indicates the stream ended mid-header or mid-payload
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrBadPayload indicates the frame payload is not valid JSON
	ErrBadPayload = errors.New("frame payload is not valid JSON")
)

// Request errors
var (
	// ErrEmptyRequest indicates a request frame carrying no code payload
	ErrEmptyRequest = errors.New("no code provided")
)

// Server errors
var (
	// ErrBind indicates the listen port could not be bound at startup
	ErrBind = errors.New("failed to bind bridge port")

	// ErrServerNotRunning indicates the server is not currently running
	ErrServerNotRunning = errors.New("server is not running")

	// ErrServerAlreadyRunning indicates the server is already running
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrMaxConnectionsReached indicates the server has reached its connection limit
	ErrMaxConnectionsReached = errors.New("maximum connections reached")

	// ErrRateLimited indicates the client has exceeded the connection rate limit
	ErrRateLimited = errors.New("connection rate limit exceeded, please try again later")
)

// Execution wait errors
var (
	// ErrExecTimeout indicates the wait for a job's outcome expired.
	// The job itself is not cancelled and may still complete on the host thread.
	ErrExecTimeout = errors.New("timed out waiting for the host to finish the script")
)

// IsFramingError reports whether err is one of the frame decoding failures.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrEmptyFrame) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrTruncatedFrame) ||
		errors.Is(err, ErrBadPayload)
}
