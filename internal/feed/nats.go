package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes feed events to a NATS server as JSON messages.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials the given NATS URL (empty means nats.DefaultURL, or the
// CASECORE_NATS_URL environment variable when set).
func ConnectNATS(url string) (*NATSPublisher, error) {
	if url == "" {
		url = os.Getenv("CASECORE_NATS_URL")
	}
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("casecore"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// NewNATSPublisher wraps an existing connection. The caller retains
// ownership of the connection.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) PublishFormSaved(event FormEvent) error {
	return p.publish(SubjectFormsSaved, event)
}

func (p *NATSPublisher) PublishCaseSaved(event CaseEvent) error {
	return p.publish(SubjectCasesSaved, event)
}

func (p *NATSPublisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Drain()
	}
}
