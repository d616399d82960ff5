// Package ftpclient is a small read-only FTP client. The control connection
// and every passive data connection are opened through a caller-supplied
// dialer, so the whole session can run inside a SOCKS tunnel.
package ftpclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrBadPassiveReply is returned when an EPSV or PASV reply cannot be parsed.
var ErrBadPassiveReply = errors.New("ftp: malformed passive mode reply")

var aLongTimeAgo = time.Unix(1, 0)

// Dialer opens network connections. *net.Dialer and *tunnel.Dialer both
// satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type dialOptions struct {
	dialer      Dialer
	timeout     time.Duration
	disableEPSV bool
	debug       io.Writer
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

// WithDialer routes the control and data connections through d.
func WithDialer(d Dialer) DialOption {
	return func(o *dialOptions) {
		o.dialer = d
	}
}

// WithTimeout bounds the connect and every subsequent command. Data reads
// reset the bound after each successful read.
func WithTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) {
		o.timeout = d
	}
}

// WithDisabledEPSV skips EPSV and always uses PASV.
func WithDisabledEPSV(disabled bool) DialOption {
	return func(o *dialOptions) {
		o.disableEPSV = disabled
	}
}

// WithDebugOutput copies the control channel traffic to w.
func WithDebugOutput(w io.Writer) DialOption {
	return func(o *dialOptions) {
		o.debug = w
	}
}

// ServerConn is one FTP control session. It is not safe for concurrent use.
type ServerConn struct {
	opts     dialOptions
	ctx      context.Context
	host     string
	netConn  net.Conn
	conn     *textproto.Conn
	stop     func() bool
	skipEPSV bool

	// Greeting is the text of the server's 220 reply.
	Greeting string

	mu        sync.Mutex
	cancelled bool
	data      net.Conn
}

// Dial connects to the FTP server at addr and reads its greeting. ctx bounds
// the lifetime of the whole session: once it is done every pending and
// future operation fails.
func Dial(ctx context.Context, addr string, options ...DialOption) (*ServerConn, error) {
	opts := dialOptions{dialer: &net.Dialer{}}
	for _, o := range options {
		o(&opts)
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ftp: %w", err)
	}

	dctx := ctx
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	netConn, err := opts.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	var rwc io.ReadWriteCloser = netConn
	if opts.debug != nil {
		rwc = newDebugWrapper(netConn, opts.debug)
	}

	c := &ServerConn{
		opts:    opts,
		ctx:     ctx,
		host:    host,
		netConn: netConn,
		conn:    textproto.NewConn(rwc),
	}
	c.stop = context.AfterFunc(ctx, c.abort)

	if err := c.arm(netConn); err != nil {
		c.Close()
		return nil, err
	}
	_, msg, err := c.conn.ReadResponse(StatusReady)
	if err != nil {
		c.Close()
		return nil, c.wrap(err)
	}
	c.Greeting = msg
	return c, nil
}

// abort runs once ctx is done and forces every blocked read or write to
// return.
func (c *ServerConn) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	_ = c.netConn.SetDeadline(aLongTimeAgo)
	if c.data != nil {
		_ = c.data.SetDeadline(aLongTimeAgo)
	}
}

// arm refreshes the per-operation deadline on conn.
func (c *ServerConn) arm(conn net.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return c.ctx.Err()
	}
	if c.opts.timeout > 0 {
		return conn.SetDeadline(time.Now().Add(c.opts.timeout))
	}
	return nil
}

// wrap attaches the context error when an I/O failure was caused by
// cancellation.
func (c *ServerConn) wrap(err error) error {
	if err == nil {
		return nil
	}
	if cerr := c.ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}

// cmd sends a command and reads the reply, checking it against expected
// the way textproto.Reader.ReadResponse does. expected <= 0 accepts any code.
func (c *ServerConn) cmd(expected int, format string, args ...any) (int, string, error) {
	if err := c.arm(c.netConn); err != nil {
		return 0, "", err
	}
	if _, err := c.conn.Cmd(format, args...); err != nil {
		return 0, "", c.wrap(err)
	}
	code, msg, err := c.conn.ReadResponse(expected)
	return code, msg, c.wrap(err)
}

// Login authenticates with user and password.
func (c *ServerConn) Login(user, password string) error {
	code, msg, err := c.cmd(-1, "USER %s", user)
	if err != nil {
		return err
	}

	switch code {
	case StatusLoggedIn:
		return nil
	case StatusUserOK:
		_, _, err = c.cmd(2, "PASS %s", password)
		return err
	default:
		return &textproto.Error{Code: code, Msg: msg}
	}
}

// ChangeDir issues CWD.
func (c *ServerConn) ChangeDir(path string) error {
	_, _, err := c.cmd(2, "CWD %s", path)
	return err
}

// Binary switches the transfer type to image.
func (c *ServerConn) Binary() error {
	_, _, err := c.cmd(StatusCommandOK, "TYPE I")
	return err
}

// List issues LIST for path (the current directory when empty) and returns
// the raw lines in server order. Lines are never dropped or reinterpreted.
func (c *ServerConn) List(path string) ([]string, error) {
	cmd := "LIST"
	if path != "" {
		cmd += " " + path
	}
	r, err := c.dataCmd(cmd)
	if err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := errors.Join(sc.Err(), r.Close()); err != nil {
		return nil, err
	}
	return lines, nil
}

// Retr opens the data stream for path. The caller must Close the Response;
// Close reports whether the server confirmed the transfer.
func (c *ServerConn) Retr(path string) (*Response, error) {
	return c.dataCmd("RETR %s", path)
}

// Quit ends the session politely and closes the control connection.
func (c *ServerConn) Quit() error {
	_, _, err := c.cmd(-1, "QUIT")
	return errors.Join(err, c.Close())
}

// Close closes the control connection without sending QUIT.
func (c *ServerConn) Close() error {
	c.stop()
	return c.conn.Close()
}

func (c *ServerConn) dataCmd(format string, args ...any) (*Response, error) {
	conn, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	code, msg, err := c.cmd(-1, format, args...)
	if err != nil {
		c.dropData(conn)
		return nil, err
	}
	if code != StatusAlreadyOpen && code != StatusAboutToSend {
		c.dropData(conn)
		return nil, &textproto.Error{Code: code, Msg: msg}
	}
	return &Response{conn: conn, c: c}, nil
}

func (c *ServerConn) openDataConn() (net.Conn, error) {
	host, port, err := c.passiveAddr()
	if err != nil {
		return nil, err
	}

	ctx := c.ctx
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}
	conn, err := c.opts.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("ftp: opening data connection: %w", err)
	}

	c.mu.Lock()
	c.data = conn
	cancelled := c.cancelled
	c.mu.Unlock()
	if cancelled {
		c.dropData(conn)
		return nil, c.ctx.Err()
	}
	return conn, nil
}

func (c *ServerConn) dropData(conn net.Conn) {
	c.mu.Lock()
	if c.data == conn {
		c.data = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// passiveAddr tries EPSV once per session and falls back to PASV. The PASV
// address is ignored in favour of the control host, which is the only host
// known to be reachable through the tunnel.
func (c *ServerConn) passiveAddr() (string, int, error) {
	if !c.opts.disableEPSV && !c.skipEPSV {
		_, line, err := c.cmd(StatusExtendedPassiveMode, "EPSV")
		if err == nil {
			port, perr := parseEPSV(line)
			if perr == nil {
				return c.host, port, nil
			}
		} else if c.ctx.Err() != nil {
			return "", 0, err
		}
		c.skipEPSV = true
	}

	_, line, err := c.cmd(StatusPassiveMode, "PASV")
	if err != nil {
		return "", 0, err
	}
	port, err := parsePASV(line)
	if err != nil {
		return "", 0, err
	}
	return c.host, port, nil
}

// parseEPSV extracts the port from "Entering Extended Passive Mode (|||port|)".
func parseEPSV(line string) (int, error) {
	start := strings.Index(line, "|||")
	end := strings.LastIndex(line, "|")
	if start == -1 || end <= start+3 {
		return 0, ErrBadPassiveReply
	}
	port, err := strconv.Atoi(line[start+3 : end])
	if err != nil || port < 1 || port > 65535 {
		return 0, ErrBadPassiveReply
	}
	return port, nil
}

// parsePASV extracts the port from "Entering Passive Mode (h1,h2,h3,h4,p1,p2)".
func parsePASV(line string) (int, error) {
	start := strings.Index(line, "(")
	end := strings.LastIndex(line, ")")
	if start == -1 || end <= start {
		return 0, ErrBadPassiveReply
	}
	parts := strings.Split(line[start+1:end], ",")
	if len(parts) != 6 {
		return 0, ErrBadPassiveReply
	}
	hi, err1 := strconv.Atoi(strings.TrimSpace(parts[4]))
	lo, err2 := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err1 != nil || err2 != nil || hi < 0 || hi > 255 || lo < 0 || lo > 255 {
		return 0, ErrBadPassiveReply
	}
	port := hi<<8 | lo
	if port == 0 {
		return 0, ErrBadPassiveReply
	}
	return port, nil
}

// Response is an open data stream.
type Response struct {
	conn   net.Conn
	c      *ServerConn
	closed bool
}

// Read reads from the data connection. Each call refreshes the idle timeout.
func (r *Response) Read(buf []byte) (int, error) {
	if err := r.c.arm(r.conn); err != nil {
		return 0, err
	}
	n, err := r.conn.Read(buf)
	if err != nil && err != io.EOF {
		err = r.c.wrap(err)
	}
	return n, err
}

// Close closes the data connection and reads the transfer completion reply.
// A non-2xx completion reply is returned as a *textproto.Error. After the
// first call Close does nothing and returns nil.
func (r *Response) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.c.dropData(r.conn)

	if err := r.c.arm(r.c.netConn); err != nil {
		return err
	}
	_, _, err := r.c.conn.ReadResponse(2)
	return r.c.wrap(err)
}

type debugWrapper struct {
	conn io.ReadWriteCloser
	io.Reader
	io.Writer
}

func newDebugWrapper(conn io.ReadWriteCloser, w io.Writer) io.ReadWriteCloser {
	return &debugWrapper{
		Reader: io.TeeReader(conn, w),
		Writer: io.MultiWriter(w, conn),
		conn:   conn,
	}
}

func (w *debugWrapper) Close() error {
	return w.conn.Close()
}
