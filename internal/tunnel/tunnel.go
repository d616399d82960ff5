package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultConnectTimeout bounds the TCP connect to the proxy endpoint when no
// WithConnectTimeout option is given.
const DefaultConnectTimeout = 10 * time.Second

// Version identifies a SOCKS protocol version.
type Version int

const (
	SOCKS4 Version = 4
	SOCKS5 Version = 5
)

// Valid reports whether v is one of the supported versions.
func (v Version) Valid() bool {
	return v == SOCKS4 || v == SOCKS5
}

// Other returns the alternate version used as the fallback candidate.
func (v Version) Other() Version {
	if v == SOCKS4 {
		return SOCKS5
	}
	return SOCKS4
}

func (v Version) String() string {
	switch v {
	case SOCKS4:
		return "socks4"
	case SOCKS5:
		return "socks5"
	case 0:
		return ""
	default:
		return fmt.Sprintf("socks(%d)", int(v))
	}
}

var (
	// ErrUnsupportedVersion is returned by New for versions other than 4 and 5.
	ErrUnsupportedVersion = errors.New("unsupported SOCKS version")
	// ErrRequestRejected is returned when a SOCKS4 proxy refuses the CONNECT.
	ErrRequestRejected = errors.New("socks4: request rejected or failed")
)

// ConnectError reports that the proxy endpoint itself could not be reached
// over TCP. Callers treat it as a dead proxy.
type ConnectError struct {
	Proxy string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to proxy %s: %v", e.Proxy, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// HandshakeError reports a failure after the proxy accepted the TCP
// connection: a protocol mismatch, a refused CONNECT, or a relay failure.
type HandshakeError struct {
	Proxy   string
	Version Version
	Err     error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s handshake with %s: %v", e.Version, e.Proxy, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Dialer opens connections through one SOCKS endpoint. A Dialer holds no
// shared state; build one per attempt and drop it afterwards.
type Dialer struct {
	version        Version
	addr           string
	connectTimeout time.Duration
	forward        proxy.ContextDialer
	socks5         proxy.ContextDialer
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithConnectTimeout bounds the TCP connect to the proxy endpoint.
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Dialer) {
		t.connectTimeout = d
	}
}

// WithForward sets the dialer used to reach the proxy endpoint. The default
// is a plain net.Dialer.
func WithForward(f proxy.ContextDialer) Option {
	return func(t *Dialer) {
		t.forward = f
	}
}

// New returns a Dialer that relays through the SOCKS proxy at host:port
// using protocol version v.
func New(v Version, host string, port uint16, opts ...Option) (*Dialer, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, int(v))
	}
	if host == "" || port == 0 {
		return nil, fmt.Errorf("invalid proxy endpoint %q port %d", host, port)
	}

	d := &Dialer{
		version:        v,
		addr:           net.JoinHostPort(host, strconv.Itoa(int(port))),
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.forward == nil {
		d.forward = &net.Dialer{Timeout: d.connectTimeout}
	}

	if v == SOCKS5 {
		pd, err := proxy.SOCKS5("tcp", d.addr, nil, proxyConnector{d})
		if err != nil {
			return nil, fmt.Errorf("creating socks5 dialer for %s: %w", d.addr, err)
		}
		cd, ok := pd.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", d.addr)
		}
		d.socks5 = cd
	}
	return d, nil
}

// Version returns the SOCKS version this dialer speaks.
func (d *Dialer) Version() Version { return d.version }

// Addr returns the proxy endpoint as host:port.
func (d *Dialer) Addr() string { return d.addr }

// DialContext connects to address through the proxy.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.version == SOCKS4 {
		return d.dialSOCKS4(ctx, network, address)
	}

	conn, err := d.socks5.DialContext(ctx, network, address)
	if err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &HandshakeError{Proxy: d.addr, Version: d.version, Err: err}
	}
	return conn, nil
}

// Dial is DialContext with a background context.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

// connectProxy opens the raw TCP connection to the proxy endpoint and tags
// failures as ConnectError.
func (d *Dialer) connectProxy(ctx context.Context, network string) (net.Conn, error) {
	if d.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.connectTimeout)
		defer cancel()
	}
	conn, err := d.forward.DialContext(ctx, network, d.addr)
	if err != nil {
		return nil, &ConnectError{Proxy: d.addr, Err: err}
	}
	return conn, nil
}

// proxyConnector adapts Dialer.connectProxy to the proxy.Dialer interfaces
// so x/net's SOCKS5 client reports unreachable proxies as ConnectError.
type proxyConnector struct {
	d *Dialer
}

func (p proxyConnector) DialContext(ctx context.Context, network, _ string) (net.Conn, error) {
	return p.d.connectProxy(ctx, network)
}

func (p proxyConnector) Dial(network, address string) (net.Conn, error) {
	return p.DialContext(context.Background(), network, address)
}
