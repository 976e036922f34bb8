// Package runguard admits at most one pipeline run at a time.
package runguard

import (
	"context"
	"sync/atomic"
)

// State is the gate's state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Guard is an Idle/Running state machine. The zero value is idle.
type Guard struct {
	state atomic.Int32
}

// TryAcquire moves the guard from Idle to Running. It returns false if a run
// is already in progress; the caller must skip, not wait.
func (g *Guard) TryAcquire() bool {
	return g.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
}

// Release returns the guard to Idle.
func (g *Guard) Release() {
	g.state.Store(int32(StateIdle))
}

// State reports the current state.
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Run calls fn if the guard is idle and releases it afterwards, even if fn
// panics. ran is false when the call was skipped.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error) {
	if !g.TryAcquire() {
		return false, nil
	}
	defer g.Release()
	return true, fn(ctx)
}
