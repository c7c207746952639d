package event

import (
	"github.com/runlet/runlet/service/messaging/fs"
	"github.com/runlet/runlet/service/messaging/memory"
)

// Option customises the event service.
type Option func(*Service)

// WithMemoryConfig overrides the memory queue configuration.
func WithMemoryConfig(config memory.Config) Option {
	return func(s *Service) {
		s.memoryConfig = config
	}
}

// WithFSConfig overrides the filesystem queue configuration.
func WithFSConfig(config fs.Config) Option {
	return func(s *Service) {
		s.fsConfig = config
	}
}
