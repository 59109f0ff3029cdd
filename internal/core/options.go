package core

import (
	"time"

	"casecore/internal/blob"
	"casecore/internal/feed"
)

// Logger is the minimal structured logging contract used by the service.
// Message plus alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time acquisition for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil function falls
// back to the wall clock in UTC.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

type serviceOptions struct {
	logger    Logger
	clock     Clock
	blobs     blob.Store
	publisher feed.Publisher
	metrics   MetricsRecorder
}

// Option customizes service construction.
type Option func(*serviceOptions)

// WithLogger installs a structured logger. A nil logger is ignored.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBlobStore installs the attachment blob store.
func WithBlobStore(store blob.Store) Option {
	return func(o *serviceOptions) {
		if store != nil {
			o.blobs = store
		}
	}
}

// WithPublisher installs the change feed publisher.
func WithPublisher(pub feed.Publisher) Option {
	return func(o *serviceOptions) {
		if pub != nil {
			o.publisher = pub
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

func defaultOptions() serviceOptions {
	return serviceOptions{
		logger:    noopLogger{},
		clock:     ClockFunc(nil),
		publisher: feed.NopPublisher{},
	}
}
