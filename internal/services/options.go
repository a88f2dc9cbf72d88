package services

import (
	"log/slog"

	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/logging"
	"github.com/videotube/accounts/internal/metrics"
)

type options struct {
	logger  *slog.Logger
	events  events.Publisher
	metrics *metrics.Metrics
}

// Option configures the ambient dependencies of a service.
type Option func(*options)

// WithLogger sets the logger used by a service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEvents sets where account events are published.
func WithEvents(p events.Publisher) Option {
	return func(o *options) { o.events = p }
}

// WithMetrics records auth outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: logging.Discard(),
		events: events.Nop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
