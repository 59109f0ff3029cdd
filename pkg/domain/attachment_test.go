package domain

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type trackingCloser struct {
	io.Reader
	closed int
}

func (c *trackingCloser) Close() error {
	c.closed++
	return nil
}

func TestAttachmentContentSingleRead(t *testing.T) {
	stream := &trackingCloser{Reader: bytes.NewReader([]byte("scan.png bytes"))}
	content := NewAttachmentContent("image/png", stream)

	if content.ContentType() != "image/png" {
		t.Fatalf("unexpected content type %q", content.ContentType())
	}
	body, err := content.Body()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if string(body) != "scan.png bytes" {
		t.Fatalf("unexpected body %q", body)
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times, want 1", stream.closed)
	}

	if _, err := content.Body(); !errors.Is(err, ErrAttachmentConsumed) {
		t.Fatalf("second read: got %v, want ErrAttachmentConsumed", err)
	}
}

func TestAttachmentContentCloseWithoutRead(t *testing.T) {
	stream := &trackingCloser{Reader: bytes.NewReader([]byte("x"))}
	content := NewAttachmentContent("text/plain", stream)
	if err := content.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times, want 1", stream.closed)
	}
	if _, err := content.Body(); !errors.Is(err, ErrAttachmentConsumed) {
		t.Fatalf("read after close: got %v, want ErrAttachmentConsumed", err)
	}
	// Redundant close stays a no-op.
	if err := content.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if stream.closed != 1 {
		t.Fatalf("stream closed %d times after second close, want 1", stream.closed)
	}
}

type failingCloser struct {
	io.Reader
}

func (failingCloser) Close() error { return errors.New("close failed") }

func TestAttachmentContentBodyClosesOnReadError(t *testing.T) {
	content := NewAttachmentContent("application/xml", io.NopCloser(bytes.NewReader(nil)))
	body, err := content.Body()
	if err != nil {
		t.Fatalf("empty read: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty body, got %q", body)
	}

	// A failing Close does not mask the read result.
	c2 := NewAttachmentContent("application/xml", failingCloser{Reader: bytes.NewReader([]byte("ok"))})
	body, err = c2.Body()
	if err != nil {
		t.Fatalf("read with failing closer: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}
