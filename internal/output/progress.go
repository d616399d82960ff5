package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

const redrawEvery = 500 * time.Millisecond

// Progress keeps a one-line scan summary redrawn on stderr.
type Progress struct {
	total    int
	resolved atomic.Int64
	ok       atomic.Int64
	dead     atomic.Int64
	filtered atomic.Int64
	start    time.Time
	quiet    bool
	pauser   *scanner.Pauser

	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}

	mu  sync.Mutex // a redraw never interleaves with a result line
	out io.Writer
}

// NewProgress returns a tracker for total descriptors. pauser may be nil.
func NewProgress(total int, quiet bool, pauser *scanner.Pauser) *Progress {
	return &Progress{
		total:   total,
		start:   time.Now(),
		quiet:   quiet,
		pauser:  pauser,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		out:     os.Stderr,
	}
}

// Start redraws the line periodically until Stop.
func (p *Progress) Start() {
	if p.quiet {
		close(p.stopped)
		return
	}
	go func() {
		defer close(p.stopped)
		ticker := time.NewTicker(redrawEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Redraw()
			case <-p.stop:
				p.mu.Lock()
				fmt.Fprint(p.out, p.line()+"\n")
				p.mu.Unlock()
				return
			}
		}
	}()
}

// Increment records one resolved descriptor.
func (p *Progress) Increment(s scanner.Status) {
	p.resolved.Add(1)
	switch s {
	case scanner.Success:
		p.ok.Add(1)
	case scanner.DeadProxy:
		p.dead.Add(1)
	}
}

// IncrementFiltered records a result hidden by the filter chain.
func (p *Progress) IncrementFiltered() {
	p.filtered.Add(1)
}

// Stop prints the final line and waits for the redraw loop to exit. It is
// safe to call more than once, with or without Start.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		if p.quiet {
			return
		}
		select {
		case <-p.stopped:
		case <-time.After(redrawEvery):
		}
	})
}

// ClearLine erases the progress line so a result can be printed.
func (p *Progress) ClearLine() {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprint(p.out, "\r\033[K")
	p.mu.Unlock()
}

// Redraw prints the current progress line.
func (p *Progress) Redraw() {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, p.line())
}

func (p *Progress) line() string {
	resolved := p.resolved.Load()
	elapsed := time.Since(p.start).Seconds()

	var rate, pct float64
	if elapsed > 0 {
		rate = float64(resolved) / elapsed
	}
	if p.total > 0 {
		pct = float64(resolved) / float64(p.total) * 100
	}

	parts := []string{
		fmt.Sprintf("[%3.0f%%] %d/%d", pct, resolved, p.total),
		fmt.Sprintf("%.1f targets/s", rate),
		fmt.Sprintf("OK: %d", p.ok.Load()),
		fmt.Sprintf("Dead: %d", p.dead.Load()),
		fmt.Sprintf("Filtered: %d", p.filtered.Load()),
	}
	if rate > 0 && resolved < int64(p.total) {
		left := time.Duration(float64(int64(p.total)-resolved) / rate * float64(time.Second))
		parts = append(parts, "ETA: "+left.Round(time.Second).String())
	}
	if p.pauser != nil {
		if paused, _ := p.pauser.Paused(); paused {
			parts = append(parts, "PAUSED")
		}
	}
	return "\r\033[K" + strings.Join(parts, " | ")
}
