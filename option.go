package runlet

import (
	"github.com/runlet/runlet/service/event"
	"github.com/runlet/runlet/tracing"
)

// Option customises the scheduler.
type Option func(s *Scheduler)

// WithConfig replaces the whole configuration. The worker count passed to
// New still applies when positive.
func WithConfig(config *Config) Option {
	return func(s *Scheduler) {
		if config == nil {
			return
		}
		workerCount := s.config.Pool.WorkerCount
		s.config = config
		if workerCount > 0 {
			s.config.Pool.WorkerCount = workerCount
		}
	}
}

// WithQueueCapacity sets the initial capacity of the FIFO job queue.
func WithQueueCapacity(size int) Option {
	return func(s *Scheduler) {
		s.config.Pool.QueueSize = size
	}
}

// WithEventService attaches a lifecycle event service.
func WithEventService(service *event.Service) Option {
	return func(s *Scheduler) {
		s.events = service
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the given file.
// Safe to apply multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Scheduler) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}
