package scanner

import (
	"context"
	"sync"
	"time"
)

// Pauser gates the scan between descriptors. A paused scan lets every
// in-flight resolution finish; workers then park in Wait until Resume.
type Pauser struct {
	mu     sync.Mutex
	gate   chan struct{} // closed while running
	since  time.Time     // zero while running
	total  time.Duration
	parked int
}

// NewPauser returns a running Pauser.
func NewPauser() *Pauser {
	gate := make(chan struct{})
	close(gate)
	return &Pauser{gate: gate}
}

// Wait parks the caller while the scan is paused. A nil Pauser never
// blocks.
func (p *Pauser) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	gate := p.gate
	paused := !p.since.IsZero()
	if paused {
		p.parked++
	}
	p.mu.Unlock()

	if paused {
		defer func() {
			p.mu.Lock()
			p.parked--
			p.mu.Unlock()
		}()
	}

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops new descriptors from starting. It reports false when the
// scan was already paused.
func (p *Pauser) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.since.IsZero() {
		return false
	}
	p.since = time.Now()
	p.gate = make(chan struct{})
	return true
}

// Resume releases parked workers. It reports false when the scan was not
// paused.
func (p *Pauser) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.since.IsZero() {
		return false
	}
	p.total += time.Since(p.since)
	p.since = time.Time{}
	close(p.gate)
	return true
}

// Toggle pauses a running scan or resumes a paused one and returns
// whether the scan is now paused.
func (p *Pauser) Toggle() bool {
	if p.Pause() {
		return true
	}
	p.Resume()
	return false
}

// Paused reports the current state and the time spent paused so far,
// the ongoing pause included.
func (p *Pauser) Paused() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.total
	if p.since.IsZero() {
		return false, total
	}
	return true, total + time.Since(p.since)
}

// Parked returns how many workers are waiting on the gate.
func (p *Pauser) Parked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}
