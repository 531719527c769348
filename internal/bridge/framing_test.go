// internal/bridge/framing_test.go
package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteReadFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"code": "x = 1"}`)

	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	if buf.Len() != HeaderSize+len(payload) {
		t.Errorf("expected %d bytes on the wire, got %d", HeaderSize+len(payload), buf.Len())
	}

	got, err := ReadFrame(&buf, 0)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected %q, got %q", payload, got)
	}
}

func TestReadFrameHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 2})
	buf.WriteString("{}")

	got, err := ReadFrame(&buf, 0)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("expected {}, got %q", got)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), 0)
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), 0)
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 100)
	buf.Write(header)
	buf.WriteString("short")

	_, err := ReadFrame(&buf, 0)
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestReadFrameEmpty(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}), 0)
	if !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 1<<20)
	buf.Write(header)

	_, err := ReadFrame(&buf, 1024)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestIsFramingError(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 10)
	buf.Write(header)

	_, err := ReadFrame(&buf, 1024)
	if !IsFramingError(err) {
		t.Errorf("expected a framing error, got %v", err)
	}
	if IsFramingError(io.EOF) {
		t.Error("io.EOF is not a framing error")
	}
	if IsFramingError(nil) {
		t.Error("nil is not a framing error")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, &Request{Code: "send_status(\"hi\")"}); err != nil {
		t.Fatalf("WriteRequest() error = %v", err)
	}

	req, err := ReadRequest(&buf, 1024)
	if err != nil {
		t.Fatalf("ReadRequest() error = %v", err)
	}
	if req.Payload() != "send_status(\"hi\")" {
		t.Errorf("unexpected payload %q", req.Payload())
	}
}

func TestReadRequestBadJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("not json")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	_, err := ReadRequest(&buf, 1024)
	if err != ErrBadPayload {
		t.Errorf("expected ErrBadPayload, got %v", err)
	}
}
