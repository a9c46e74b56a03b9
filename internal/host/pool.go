package host

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// SessionPool bounds the number of concurrently active Sessions a host
// process will run at once, generalising CPUX86Runner's single
// execMu/execActive guard (cpu_x86_runner.go) — built for exactly one
// CPU instance — to many sessions each owning their own CPU, running
// concurrently up to some resource bound.
type SessionPool struct {
	sem *semaphore.Weighted
}

// NewSessionPool returns a pool that admits at most maxConcurrent
// sessions' worth of Run/RunToBreakpoint calls at a time. Step/Load/
// register and memory inspection are cheap and not gated by the pool —
// only the potentially long-running execution calls are.
func NewSessionPool(maxConcurrent int64) *SessionPool {
	return &SessionPool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// RunBounded acquires a pool slot, runs s.Run(max), and releases the
// slot, blocking on ctx if the pool is at capacity.
func (p *SessionPool) RunBounded(ctx context.Context, s *Session, max int) (int, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer p.sem.Release(1)
	return s.Run(max)
}

// RunToBreakpointBounded is RunBounded's run_to_breakpoint counterpart.
func (p *SessionPool) RunToBreakpointBounded(ctx context.Context, s *Session) (int, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer p.sem.Release(1)
	return s.RunToBreakpoint()
}

// TryAcquire reports whether a slot is immediately available without
// blocking, for a front-end that wants to reject a request rather than
// queue it.
func (p *SessionPool) TryAcquire() bool {
	return p.sem.TryAcquire(1)
}

// Release returns a slot acquired via TryAcquire.
func (p *SessionPool) Release() {
	p.sem.Release(1)
}
