package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxvaer/proxyftp/internal/ftpclient"
)

const (
	// DefaultFTPPort is used when the target names no port.
	DefaultFTPPort = 21
	// DefaultTimeout bounds each FTP operation when Prober.Timeout is zero.
	DefaultTimeout = 15 * time.Second

	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

// ErrTooLarge is returned by Retrieve when a file exceeds MaxRetrieveBytes.
var ErrTooLarge = errors.New("file exceeds retrieve size limit")

// Credentials is an FTP login. A nil *Credentials means anonymous.
type Credentials struct {
	User     string
	Password string
}

// Prober runs the FTP side of a probe over a dialer supplied per call. The
// zero value probes port 21 anonymously with DefaultTimeout.
type Prober struct {
	Port        int
	Timeout     time.Duration
	Credentials *Credentials
	DisableEPSV bool
	// MaxRetrieveBytes caps Retrieve; zero means no cap.
	MaxRetrieveBytes int64
	// Trace receives a copy of the control channel traffic when set.
	Trace  io.Writer
	Logger logrus.FieldLogger
}

func (p *Prober) port() int {
	if p.Port > 0 {
		return p.Port
	}
	return DefaultFTPPort
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Prober) log() logrus.FieldLogger {
	return orDiscard(p.Logger)
}

// addr resolves target ("host", "[v6]" or "host:port") to a dial address.
func (p *Prober) addr(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	host := strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(p.port()))
}

// Probe connects to target through dialer, logs in, changes to path and
// lists it. The returned Outcome never carries a WorkingVersion; the
// resolver sets that.
func (p *Prober) Probe(ctx context.Context, dialer ftpclient.Dialer, target, path string) Outcome {
	start := time.Now()
	entries, err := p.list(ctx, dialer, target, path)
	out := Outcome{Path: path, Elapsed: time.Since(start)}
	if err != nil {
		out.Status = Classify(err)
		out.Error = err.Error()
		return out
	}
	out.Status = Success
	out.Listing = entries
	return out
}

func (p *Prober) list(ctx context.Context, dialer ftpclient.Dialer, target, path string) (entries []Entry, err error) {
	c, err := p.open(ctx, dialer, target, path)
	if err != nil {
		return nil, err
	}
	defer func() { p.release(c, err) }()

	lines, err := c.List("")
	if err != nil {
		return nil, &StepError{Step: StepList, Err: err}
	}
	return ParseListing(lines), nil
}

// Retrieve downloads filename from path on target. It returns the complete
// contents or an error, never a partial buffer.
func (p *Prober) Retrieve(ctx context.Context, dialer ftpclient.Dialer, target, path, filename string) (data []byte, err error) {
	c, err := p.open(ctx, dialer, target, path)
	if err != nil {
		return nil, err
	}
	defer func() { p.release(c, err) }()

	if err := c.Binary(); err != nil {
		return nil, &StepError{Step: StepRetr, Err: err}
	}
	r, err := c.Retr(filename)
	if err != nil {
		return nil, &StepError{Step: StepRetr, Err: err}
	}

	var buf bytes.Buffer
	var src io.Reader = r
	if p.MaxRetrieveBytes > 0 {
		src = io.LimitReader(r, p.MaxRetrieveBytes+1)
	}
	n, copyErr := io.Copy(&buf, src)
	if copyErr == nil && p.MaxRetrieveBytes > 0 && n > p.MaxRetrieveBytes {
		copyErr = fmt.Errorf("%w (%d bytes)", ErrTooLarge, p.MaxRetrieveBytes)
	}
	if err := errors.Join(copyErr, r.Close()); err != nil {
		return nil, &StepError{Step: StepRetr, Err: err}
	}
	return buf.Bytes(), nil
}

// open dials, logs in and changes directory. The root path needs no CWD.
func (p *Prober) open(ctx context.Context, dialer ftpclient.Dialer, target, path string) (*ftpclient.ServerConn, error) {
	opts := []ftpclient.DialOption{
		ftpclient.WithDialer(dialer),
		ftpclient.WithTimeout(p.timeout()),
		ftpclient.WithDisabledEPSV(p.DisableEPSV),
	}
	if p.Trace != nil {
		opts = append(opts, ftpclient.WithDebugOutput(p.Trace))
	}

	c, err := ftpclient.Dial(ctx, p.addr(target), opts...)
	if err != nil {
		return nil, &StepError{Step: StepConnect, Err: err}
	}

	user, pass := anonymousUser, anonymousPassword
	if p.Credentials != nil {
		user, pass = p.Credentials.User, p.Credentials.Password
	}
	if err := c.Login(user, pass); err != nil {
		c.Close()
		return nil, &StepError{Step: StepLogin, Err: err}
	}

	if path != "" && path != "/" {
		if err := c.ChangeDir(path); err != nil {
			c.Close()
			return nil, &StepError{Step: StepCwd, Err: err}
		}
	}
	return c, nil
}

// release ends the session. After a failure the connection is dropped
// without QUIT; a failed QUIT is only logged.
func (p *Prober) release(c *ftpclient.ServerConn, primary error) {
	if primary != nil {
		if err := c.Close(); err != nil {
			p.log().WithError(err).Debug("closing ftp connection")
		}
		return
	}
	if err := c.Quit(); err != nil {
		p.log().WithError(err).Debug("ftp quit failed")
	}
}
