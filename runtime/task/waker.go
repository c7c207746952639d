package task

import "github.com/runlet/runlet/future"

// Waker is a lightweight handle referencing a cell without owning its
// future. Many wakers may exist per task; all funnel into the same state
// machine, so concurrent and repeated wakes coalesce instead of stacking up.
type Waker struct {
	cell *Cell
}

// newWaker binds a fresh waker to the cell; one is created per poll and
// handed to the future, which may clone and retain it arbitrarily.
func newWaker(cell *Cell) *Waker {
	return &Waker{cell: cell}
}

// Wake signals that the task may be able to make progress. Safe from any
// goroutine, any number of times, including after the task completed.
func (w *Waker) Wake() {
	if w == nil || w.cell == nil {
		return
	}
	w.cell.Wake()
}

// Clone returns an independent waker bound to the same task.
func (w *Waker) Clone() *Waker {
	if w == nil {
		return nil
	}
	return &Waker{cell: w.cell}
}

var _ future.Waker = (*Waker)(nil)
