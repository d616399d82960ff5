package scanner

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maxvaer/proxyftp/internal/descriptor"
)

// Resolving is what a scan needs from a Resolver.
type Resolving interface {
	Resolve(ctx context.Context, d descriptor.Descriptor, path string) Outcome
}

// ScanConfig configures one batch scan.
type ScanConfig struct {
	Resolver Resolving
	// Path is listed on every target. Empty means the login directory.
	Path string
	// Threads > 1 resolves descriptors concurrently.
	Threads int
	// TargetTimeout bounds one descriptor's whole resolution, fallback
	// included. Zero means no bound beyond the per-operation timeouts.
	TargetTimeout time.Duration
	Throttler     *Throttler
	Pauser        *Pauser
	Logger        logrus.FieldLogger
}

// ProgressFunc is called after each descriptor resolves. done counts the
// results so far; r.Index is the descriptor's input position.
type ProgressFunc func(done, total int, r Result)

// Session is the state of one batch scan. It is created per scan and never
// reused.
type Session struct {
	ID string

	cfg         ScanConfig
	descriptors []descriptor.Descriptor
	results     []Result // completion order
	cursor      int
	log         logrus.FieldLogger
}

// NewSession prepares a scan over descriptors.
func NewSession(descriptors []descriptor.Descriptor, cfg ScanConfig) *Session {
	id := uuid.NewString()
	return &Session{
		ID:          id,
		cfg:         cfg,
		descriptors: descriptors,
		log:         orDiscard(cfg.Logger).WithField("session", id),
	}
}

// Scan resolves every descriptor and returns the results in input order.
// When ctx is cancelled the results gathered so far are returned.
func Scan(ctx context.Context, descriptors []descriptor.Descriptor, cfg ScanConfig, onProgress ProgressFunc) []Result {
	return NewSession(descriptors, cfg).Run(ctx, onProgress)
}

// Run executes the scan. It may be called once.
func (s *Session) Run(ctx context.Context, onProgress ProgressFunc) []Result {
	total := len(s.descriptors)
	s.log.WithFields(logrus.Fields{"targets": total, "threads": s.cfg.Threads}).Info("scan started")
	start := time.Now()

	if s.cfg.Threads > 1 {
		s.runPool(ctx, onProgress)
	} else {
		s.runSequential(ctx, onProgress)
	}

	s.log.WithFields(logrus.Fields{
		"results":  len(s.results),
		"elapsed":  time.Since(start).Round(time.Millisecond),
		"canceled": ctx.Err() != nil,
	}).Info("scan finished")
	return s.Results()
}

// Results returns the results gathered so far, in input order.
func (s *Session) Results() []Result {
	out := slices.Clone(s.results)
	slices.SortFunc(out, func(a, b Result) int { return a.Index - b.Index })
	return out
}

func (s *Session) runSequential(ctx context.Context, onProgress ProgressFunc) {
	for s.cursor < len(s.descriptors) {
		if err := s.cfg.Pauser.Wait(ctx); err != nil {
			return
		}
		item := WorkItem{Index: s.cursor, Descriptor: s.descriptors[s.cursor]}
		if err := s.cfg.Throttler.Wait(ctx, item.Descriptor.ProxyAddr()); err != nil {
			return
		}

		out := s.resolve(ctx, item)
		if ctx.Err() != nil {
			return
		}
		s.record(Result{Index: item.Index, Descriptor: item.Descriptor, Outcome: out}, onProgress)
		s.cursor++
	}
}

func (s *Session) runPool(ctx context.Context, onProgress ProgressFunc) {
	items := make([]WorkItem, len(s.descriptors))
	for i, d := range s.descriptors {
		items[i] = WorkItem{Index: i, Descriptor: d}
	}
	results := RunWorkerPool(ctx, items, WorkerConfig{
		Threads:   s.cfg.Threads,
		Throttler: s.cfg.Throttler,
		Pauser:    s.cfg.Pauser,
	}, s.resolve)

	for r := range results {
		s.record(r, onProgress)
		s.cursor = len(s.results)
	}
}

func (s *Session) resolve(ctx context.Context, item WorkItem) Outcome {
	if s.cfg.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TargetTimeout)
		defer cancel()
	}
	return s.cfg.Resolver.Resolve(ctx, item.Descriptor, s.cfg.Path)
}

func (s *Session) record(r Result, onProgress ProgressFunc) {
	s.results = append(s.results, r)
	s.log.WithFields(logrus.Fields{
		"index":   r.Index,
		"proxy":   r.Descriptor.ProxyAddr(),
		"target":  r.Descriptor.Target(),
		"status":  r.Outcome.Status,
		"version": r.Outcome.WorkingVersion,
	}).Debug("target resolved")
	if onProgress != nil {
		onProgress(len(s.results), len(s.descriptors), r)
	}
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// orDiscard returns l, or a logger that drops everything when l is nil.
func orDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return discard
}
