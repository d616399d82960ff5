package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// SOCKS4 reply codes.
const (
	socks4Granted     = 0x5a
	socks4Rejected    = 0x5b
	socks4NoIdentd    = 0x5c
	socks4IdentFailed = 0x5d
)

var aLongTimeAgo = time.Unix(1, 0)

func (d *Dialer) dialSOCKS4(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4":
	default:
		return nil, fmt.Errorf("socks4: network %q not supported", network)
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("socks4: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("socks4: invalid port %q", portStr)
	}

	conn, err := d.connectProxy(ctx, "tcp")
	if err != nil {
		return nil, err
	}

	// Abort the handshake as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	err = socks4Connect(conn, host, uint16(port))
	if !stop() {
		conn.Close()
		return nil, &HandshakeError{Proxy: d.addr, Version: SOCKS4, Err: ctx.Err()}
	}
	if err != nil {
		conn.Close()
		return nil, &HandshakeError{Proxy: d.addr, Version: SOCKS4, Err: err}
	}
	return conn, nil
}

// socks4Connect writes a CONNECT request for host:port and reads the reply.
// Host names that are not IPv4 literals are sent with the SOCKS4a extension.
func socks4Connect(rw io.ReadWriter, host string, port uint16) error {
	req := []byte{0x04, 0x01, byte(port >> 8), byte(port)}

	ip := net.ParseIP(host)
	switch {
	case ip.To4() != nil:
		req = append(req, ip.To4()...)
		req = append(req, 0x00) // empty user id
	case ip != nil:
		return errors.New("socks4: IPv6 destinations are not supported")
	default:
		req = append(req, 0, 0, 0, 1, 0x00)
		req = append(req, host...)
		req = append(req, 0x00)
	}

	if _, err := rw.Write(req); err != nil {
		return fmt.Errorf("socks4: writing request: %w", err)
	}

	var reply [8]byte
	if _, err := io.ReadFull(rw, reply[:]); err != nil {
		return fmt.Errorf("socks4: reading reply: %w", err)
	}
	if reply[0] != 0x00 {
		return fmt.Errorf("socks4: unexpected reply version %#x", reply[0])
	}

	switch reply[1] {
	case socks4Granted:
		return nil
	case socks4Rejected, socks4NoIdentd, socks4IdentFailed:
		return fmt.Errorf("%w (code %#x)", ErrRequestRejected, reply[1])
	default:
		return fmt.Errorf("socks4: unknown reply code %#x", reply[1])
	}
}
