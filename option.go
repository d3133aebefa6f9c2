package tokenflow

import (
	"github.com/viant/tokenflow/runtime/execution"
	"github.com/viant/tokenflow/service/dao/definition"
	"github.com/viant/tokenflow/service/dao/history"
	"github.com/viant/tokenflow/service/messaging"
	"github.com/viant/tokenflow/service/meta"
	"github.com/viant/tokenflow/service/worklist"
	"github.com/viant/tokenflow/tracing"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option represents service option
type Option func(s *Service)

// WithConfig sets the engine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger shared by every engine service
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithListener registers token lifecycle listeners
func WithListener(listeners ...execution.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithHistory sets the archive of ended instances
func WithHistory(store history.Store) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithMetaService sets the resource loader used for definitions
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithActivity registers a custom activity type for definition documents
func WithActivity(kind string, factory definition.Factory) Option {
	return func(s *Service) {
		s.activities = append(s.activities, definition.WithActivity(kind, factory))
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

// WithWorklistEvents publishes work item events to queue; the caller must
// consume it.
func WithWorklistEvents(queue messaging.Queue[worklist.Event]) Option {
	return func(s *Service) {
		s.worklistEvents = queue
	}
}
