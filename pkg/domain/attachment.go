package domain

import (
	"io"
	"sync"
)

// AttachmentContent wraps the content type and byte stream of a stored
// attachment. The stream is single-read: Body consumes it, closing the
// stream on every exit path, and any subsequent read fails with
// ErrAttachmentConsumed rather than silently returning empty bytes.
type AttachmentContent struct {
	contentType string

	mu       sync.Mutex
	stream   io.ReadCloser
	consumed bool
}

// NewAttachmentContent builds a one-shot content wrapper around the stream.
func NewAttachmentContent(contentType string, stream io.ReadCloser) *AttachmentContent {
	return &AttachmentContent{contentType: contentType, stream: stream}
}

// ContentType returns the attachment's MIME type.
func (a *AttachmentContent) ContentType() string { return a.contentType }

// Body reads the entire stream and releases it. The first call consumes the
// wrapper; later calls return ErrAttachmentConsumed.
func (a *AttachmentContent) Body() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.consumed {
		return nil, ErrAttachmentConsumed
	}
	a.consumed = true
	stream := a.stream
	a.stream = nil
	defer func() { _ = stream.Close() }()
	return io.ReadAll(stream)
}

// Close releases the stream without reading it. Closing a consumed wrapper
// is a no-op.
func (a *AttachmentContent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.consumed || a.stream == nil {
		a.consumed = true
		return nil
	}
	a.consumed = true
	stream := a.stream
	a.stream = nil
	return stream.Close()
}
