package scanner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxvaer/proxyftp/internal/descriptor"
	"github.com/maxvaer/proxyftp/internal/ftpclient"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

// DefaultHealthTimeout bounds the bare TCP pre-check against the proxy.
const DefaultHealthTimeout = 3 * time.Second

// DialerFactory builds a fresh dialer for one attempt through a proxy.
type DialerFactory func(v tunnel.Version, host string, port uint16) (ftpclient.Dialer, error)

// TunnelFactory returns a DialerFactory producing SOCKS tunnels.
func TunnelFactory(connectTimeout time.Duration) DialerFactory {
	return func(v tunnel.Version, host string, port uint16) (ftpclient.Dialer, error) {
		d, err := tunnel.New(v, host, port, tunnel.WithConnectTimeout(connectTimeout))
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// FTPProber is the FTP side of an attempt. *Prober implements it.
type FTPProber interface {
	Probe(ctx context.Context, dialer ftpclient.Dialer, target, path string) Outcome
	Retrieve(ctx context.Context, dialer ftpclient.Dialer, target, path, filename string) ([]byte, error)
}

// Resolver tries the declared SOCKS version of a descriptor and then the
// other one, returning the first success.
type Resolver struct {
	Prober FTPProber
	Dial   DialerFactory
	// PreCheck enables a bare TCP connect to the proxy before any FTP
	// attempt. A refused connect short-circuits to DeadProxy.
	PreCheck      bool
	HealthTimeout time.Duration
	Logger        logrus.FieldLogger

	checkAlive func(ctx context.Context, host string, port uint16, timeout time.Duration) error
}

// NewResolver returns a Resolver with the pre-check enabled.
func NewResolver(prober FTPProber, dial DialerFactory, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		Prober:        prober,
		Dial:          dial,
		PreCheck:      true,
		HealthTimeout: DefaultHealthTimeout,
		Logger:        logger,
	}
}

type fallbackState int

const (
	stateTrying fallbackState = iota
	stateSuccess
	stateExhausted
)

// fallback walks the ordered candidate versions for one descriptor.
type fallback struct {
	candidates []tunnel.Version
	pos        int
	state      fallbackState
}

func newFallback(declared tunnel.Version) *fallback {
	cands := []tunnel.Version{declared}
	if declared.Valid() {
		cands = append(cands, declared.Other())
	}
	return &fallback{candidates: cands}
}

func (f *fallback) current() tunnel.Version { return f.candidates[f.pos] }

func (f *fallback) succeed() { f.state = stateSuccess }

// fail moves to the next candidate, or gives up when none remain or stop
// is set.
func (f *fallback) fail(stop bool) {
	if stop || f.pos == len(f.candidates)-1 {
		f.state = stateExhausted
		return
	}
	f.pos++
}

func (r *Resolver) log() logrus.FieldLogger {
	return orDiscard(r.Logger)
}

// Resolve lists path on d's target. On success WorkingVersion is the
// version that worked; when every candidate fails the outcome of the last
// attempt is returned.
func (r *Resolver) Resolve(ctx context.Context, d descriptor.Descriptor, path string) Outcome {
	start := time.Now()
	log := r.log().WithFields(logrus.Fields{"proxy": d.ProxyAddr(), "target": d.Target()})

	if err := r.precheck(ctx, d); err != nil {
		out := Outcome{Status: Classify(err), Error: err.Error(), Path: path, Elapsed: time.Since(start)}
		log.WithField("status", out.Status).Debug("proxy failed pre-check")
		return out
	}

	var last Outcome
	f := newFallback(d.Version)
	for f.state == stateTrying {
		v := f.current()
		last = r.probe(ctx, d, v, path)
		log.WithFields(logrus.Fields{"version": v, "status": last.Status}).Debug("probe attempt finished")
		if last.OK() {
			last.WorkingVersion = v
			f.succeed()
		} else {
			f.fail(ctx.Err() != nil)
		}
	}

	if f.state == stateExhausted {
		last.WorkingVersion = 0
		last.Listing = nil
	}
	last.Path = path
	last.Elapsed = time.Since(start)
	return last
}

func (r *Resolver) probe(ctx context.Context, d descriptor.Descriptor, v tunnel.Version, path string) Outcome {
	dialer, err := r.Dial(v, d.ProxyHost, d.ProxyPort)
	if err != nil {
		return Outcome{Status: Classify(err), Error: err.Error()}
	}
	return r.Prober.Probe(ctx, dialer, d.Target(), path)
}

// Fetch retrieves filename from path on d's target with the same fallback
// as Resolve. It returns the version that worked.
func (r *Resolver) Fetch(ctx context.Context, d descriptor.Descriptor, path, filename string) ([]byte, tunnel.Version, error) {
	if err := r.precheck(ctx, d); err != nil {
		return nil, 0, err
	}

	var lastErr error
	f := newFallback(d.Version)
	for f.state == stateTrying {
		v := f.current()
		data, err := r.retrieve(ctx, d, v, path, filename)
		r.log().WithFields(logrus.Fields{
			"proxy":   d.ProxyAddr(),
			"version": v,
			"status":  Classify(err),
		}).Debug("retrieve attempt finished")
		if err == nil {
			f.succeed()
			return data, v, nil
		}
		lastErr = err
		f.fail(ctx.Err() != nil)
	}
	return nil, 0, lastErr
}

func (r *Resolver) retrieve(ctx context.Context, d descriptor.Descriptor, v tunnel.Version, path, filename string) ([]byte, error) {
	dialer, err := r.Dial(v, d.ProxyHost, d.ProxyPort)
	if err != nil {
		return nil, err
	}
	return r.Prober.Retrieve(ctx, dialer, d.Target(), path, filename)
}

// precheck returns an error when the proxy refuses a bare TCP connect.
// It is a fast-fail hint; a pass proves nothing.
func (r *Resolver) precheck(ctx context.Context, d descriptor.Descriptor) error {
	if !r.PreCheck {
		return nil
	}
	timeout := r.HealthTimeout
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	check := r.checkAlive
	if check == nil {
		check = tunnel.CheckAlive
	}

	err := check(ctx, d.ProxyHost, d.ProxyPort, timeout)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
