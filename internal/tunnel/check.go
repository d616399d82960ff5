package tunnel

import (
	"context"
	"net"
	"strconv"
	"time"
)

// CheckAlive opens and immediately closes a bare TCP connection to the proxy
// endpoint. It is a cheap hint that the proxy is dead; a nil error does not
// mean the proxy relays anything.
func CheckAlive(ctx context.Context, host string, port uint16, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Proxy: addr, Err: err}
	}
	return conn.Close()
}
