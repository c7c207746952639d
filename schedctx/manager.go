// Package schedctx installs the "current scheduler" into the context each
// worker passes to the jobs it runs. It is deliberately decoupled from the
// scheduler itself so that code executed inside a poll (for example a future
// that spawns sub-tasks) can reach the runtime without importing it.
package schedctx

import (
	"context"

	"github.com/runlet/runlet/future"
	"github.com/runlet/runlet/runtime/task"
)

// Runtime is the scheduler surface visible to code running inside a worker.
type Runtime interface {
	Submit(ctx context.Context, f future.Future) (*task.Handle, error)
}

type runtimeKey string

const currentKey runtimeKey = "schedctx.runtime"

// Manager installs and resolves the per-worker runtime context. The zero
// value is usable; the type exists so callers can swap the installation
// strategy in tests.
type Manager struct{}

// New returns a new context manager.
func New() *Manager {
	return &Manager{}
}

// Install attaches rt as the current runtime with no automatic cleanup. It
// is intended for worker-lifetime installation: the returned context becomes
// the base context of the worker and persists until the worker exits.
func (m *Manager) Install(ctx context.Context, rt Runtime) context.Context {
	return context.WithValue(ctx, currentKey, rt)
}

// Scope restores a previously installed runtime, see Enter.
type Scope struct {
	prev Runtime
	m    *Manager
}

// Enter attaches rt as the current runtime and returns a scope that
// reinstates whatever was installed before, for nested use inside a poll.
func (m *Manager) Enter(ctx context.Context, rt Runtime) (context.Context, *Scope) {
	scope := &Scope{prev: FromContext(ctx), m: m}
	return m.Install(ctx, rt), scope
}

// Exit restores the runtime that was current when the scope was entered. It
// is safe to call even when no runtime was installed before.
func (s *Scope) Exit(ctx context.Context) context.Context {
	if s == nil || s.m == nil {
		return ctx
	}
	if s.prev == nil {
		return context.WithValue(ctx, currentKey, nil)
	}
	return s.m.Install(ctx, s.prev)
}

// FromContext returns the current runtime or nil when none is installed.
func FromContext(ctx context.Context) Runtime {
	value := ctx.Value(currentKey)
	if value == nil {
		return nil
	}
	rt, _ := value.(Runtime)
	return rt
}
