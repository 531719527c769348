// internal/bridge/framing.go
package bridge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// HeaderSize is the fixed size of the length prefix on every frame.
// The header is a big-endian uint32 giving the byte length of the JSON
// payload that follows.
const HeaderSize = 4

// ReadFrame reads one length-prefixed frame from r and returns its payload.
// A clean disconnect before any header byte returns io.EOF; any other short
// read is reported as a framing error.
func ReadFrame(r io.Reader, maxPayload int) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading length header: %w", ErrTruncatedFrame, err)
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if maxPayload > 0 && int(length) > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, length, maxPayload)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: expected %d payload bytes: %w", ErrTruncatedFrame, length, err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing length header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// ReadRequest reads and decodes one request frame.
func ReadRequest(r io.Reader, maxPayload int) (*Request, error) {
	payload, err := ReadFrame(r, maxPayload)
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(payload)
}

// WriteResponse encodes and writes one response frame.
func WriteResponse(w io.Writer, resp *Response) error {
	payload, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadResponse reads and decodes one response frame. Used by the client side.
func ReadResponse(r io.Reader, maxPayload int) (*Response, error) {
	payload, err := ReadFrame(r, maxPayload)
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(payload)
}

// WriteRequest encodes and writes one request frame. Used by the client side.
func WriteRequest(w io.Writer, req *Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	return WriteFrame(w, payload)
}
