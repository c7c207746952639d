package event

import (
	"context"
	"errors"
	"log"
	"time"
)

// idlePollDelay throttles the loop when a non-blocking queue vendor reports
// no pending event.
const idlePollDelay = 20 * time.Millisecond

// Listener drains events from a publisher and hands them to a callback on a
// dedicated goroutine.
type Listener struct {
	publisher *Publisher
	handler   func(*Event)
	ctx       context.Context
	cancelFn  context.CancelFunc
}

// NewListener creates a listener invoking handler for every event.
func NewListener(publisher *Publisher, handler func(*Event)) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancelFn:  cancel,
	}
}

// Start begins consuming events.
func (l *Listener) Start() {
	go func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
				event, err := l.publisher.Consume(l.ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					log.Printf("error consuming event: %v", err)
					continue
				}
				if event == nil {
					select {
					case <-l.ctx.Done():
						return
					case <-time.After(idlePollDelay):
					}
					continue
				}
				l.handler(event)
			}
		}
	}()
}

// Stop terminates the consuming goroutine.
func (l *Listener) Stop() {
	l.cancelFn()
}
