package event

import (
	"fmt"

	"github.com/viant/afs"

	"github.com/runlet/runlet/service/messaging"
	"github.com/runlet/runlet/service/messaging/fs"
	"github.com/runlet/runlet/service/messaging/memory"
)

// Service wires a queue vendor to the lifecycle event publisher.
type Service struct {
	queueVendor  messaging.Vendor
	memoryConfig memory.Config
	fsConfig     fs.Config
	publisher    *Publisher
	listener     *Listener
}

// New creates an event service backed by the given queue vendor.
func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:  queueVendor,
		memoryConfig: memory.DefaultConfig(),
		fsConfig:     fs.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	var queue messaging.Queue[Event]
	switch queueVendor {
	case messaging.VendorMemory:
		queue = memory.NewQueue[Event](ret.memoryConfig)
	case messaging.VendorFS:
		var err error
		if queue, err = fs.NewQueue[Event](afs.New(), ret.fsConfig); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	ret.publisher = NewPublisher(queue)
	return ret, nil
}

// Publisher returns the lifecycle event publisher.
func (s *Service) Publisher() *Publisher {
	return s.publisher
}

// SetListener replaces the event handler, restarting the consuming loop.
func (s *Service) SetListener(handler func(*Event)) {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener(s.publisher, handler)
	s.listener.Start()
}

// Stop terminates the listener when one is attached.
func (s *Service) Stop() {
	if s.listener != nil {
		s.listener.Stop()
	}
}
