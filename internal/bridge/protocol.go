// internal/bridge/protocol.go
package bridge

import "encoding/json"

// Status constants define the response frame types sent to clients
const (
	// StatusRunning acknowledges that a request was accepted and queued
	StatusRunning = "running"

	// StatusProgress carries an intermediate status message from the script
	StatusProgress = "progress"

	// StatusOK is the terminal frame for a successful execution
	StatusOK = "ok"

	// StatusError is the terminal frame for a failed execution
	StatusError = "error"
)

// Request is one framed script submission.
type Request struct {
	// Code is the script payload to execute on the host thread
	Code string `json:"code"`

	// Script is the legacy payload field accepted from older clients
	Script string `json:"script,omitempty"`
}

// Payload returns the script payload, preferring the current field name.
func (r *Request) Payload() string {
	if r.Code != "" {
		return r.Code
	}
	return r.Script
}

// Validate checks that the request carries a payload.
func (r *Request) Validate() error {
	if r.Payload() == "" {
		return ErrEmptyRequest
	}
	return nil
}

// Response is one framed message sent back to the client. A request produces
// one running frame, zero or more progress frames, and exactly one terminal
// frame (ok or error).
type Response struct {
	// Status indicates the frame type (running, progress, ok, error)
	Status string `json:"status"`

	// Message carries human-readable detail for non-error frames
	Message string `json:"message,omitempty"`

	// Error contains the failure description for error frames
	Error string `json:"error,omitempty"`

	// Trace contains the diagnostic backtrace captured at the failure site
	Trace string `json:"trace,omitempty"`
}

// NewRunningResponse creates the acknowledgement frame for an accepted request
func NewRunningResponse() *Response {
	return &Response{
		Status:  StatusRunning,
		Message: "script execution started",
	}
}

// NewProgressResponse creates a progress frame
func NewProgressResponse(message string) *Response {
	return &Response{
		Status:  StatusProgress,
		Message: message,
	}
}

// NewOKResponse creates the terminal success frame
func NewOKResponse() *Response {
	return &Response{
		Status:  StatusOK,
		Message: "script completed successfully",
	}
}

// NewErrorResponse creates a terminal error frame
func NewErrorResponse(errMsg, trace string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
		Trace:  trace,
	}
}

// Terminal reports whether this frame ends the response stream for a request.
func (r *Response) Terminal() bool {
	return r.Status == StatusOK || r.Status == StatusError
}

// Marshal serializes the response to JSON
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResponse deserializes a JSON response frame. Unknown fields are
// tolerated so newer servers can add fields without breaking older clients.
func UnmarshalResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, ErrBadPayload
	}
	return &resp, nil
}

// UnmarshalRequest deserializes a JSON request frame.
func UnmarshalRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, ErrBadPayload
	}
	return &req, nil
}
