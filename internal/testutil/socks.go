// Package testutil provides in-process SOCKS relays and an FTP server for
// tests. Every fake listens on 127.0.0.1:0 and is torn down with t.Cleanup.
package testutil

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// Relay is a fake SOCKS proxy that relays CONNECT requests to the real
// destination.
type Relay struct {
	ln      net.Listener
	version int

	accepted atomic.Int64
	mu       sync.Mutex
	targets  []string
	wg       sync.WaitGroup
}

// NewSOCKS5 starts a no-auth SOCKS5 relay.
func NewSOCKS5(t testing.TB) *Relay {
	return startRelay(t, 5)
}

// NewSOCKS4 starts a SOCKS4/4a relay.
func NewSOCKS4(t testing.TB) *Relay {
	return startRelay(t, 4)
}

func startRelay(t testing.TB, version int) *Relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("relay listen: %v", err)
	}
	r := &Relay{ln: ln, version: version}
	r.wg.Add(1)
	go r.serve()
	t.Cleanup(func() {
		ln.Close()
		r.wg.Wait()
	})
	return r
}

// Host returns the relay's listen IP.
func (r *Relay) Host() string {
	return r.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the relay's listen port.
func (r *Relay) Port() uint16 {
	return uint16(r.ln.Addr().(*net.TCPAddr).Port)
}

// Accepted returns how many client connections the relay has seen.
func (r *Relay) Accepted() int {
	return int(r.accepted.Load())
}

// Targets returns the destinations requested so far, in order.
func (r *Relay) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

func (r *Relay) serve() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.accepted.Add(1)
		go r.handle(conn)
	}
}

func (r *Relay) handle(conn net.Conn) {
	var dest string
	var ok bool
	if r.version == 5 {
		dest, ok = readSOCKS5Request(conn)
	} else {
		dest, ok = readSOCKS4Request(conn)
	}
	if !ok {
		conn.Close()
		return
	}

	r.mu.Lock()
	r.targets = append(r.targets, dest)
	r.mu.Unlock()

	upstream, err := net.Dial("tcp", dest)
	if err != nil {
		if r.version == 5 {
			conn.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		} else {
			conn.Write([]byte{0, 0x5b, 0, 0, 0, 0, 0, 0})
		}
		conn.Close()
		return
	}
	if r.version == 5 {
		conn.Write([]byte{5, 0, 0, 1, 127, 0, 0, 1, 0, 0})
	} else {
		conn.Write([]byte{0, 0x5a, 0, 0, 0, 0, 0, 0})
	}
	pipe(conn, upstream)
}

func readSOCKS5Request(conn net.Conn) (string, bool) {
	var hdr [2]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil || hdr[0] != 5 {
		return "", false
	}
	methods := make([]byte, hdr[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return "", false
	}
	if _, err := conn.Write([]byte{5, 0}); err != nil {
		return "", false
	}

	var req [4]byte
	if _, err := io.ReadFull(conn, req[:]); err != nil || req[1] != 1 {
		return "", false
	}
	var host string
	switch req[3] {
	case 1:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return "", false
		}
		host = net.IP(ip).String()
	case 3:
		var n [1]byte
		if _, err := io.ReadFull(conn, n[:]); err != nil {
			return "", false
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return "", false
		}
		host = string(name)
	case 4:
		ip := make([]byte, 16)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return "", false
		}
		host = net.IP(ip).String()
	default:
		return "", false
	}
	var port [2]byte
	if _, err := io.ReadFull(conn, port[:]); err != nil {
		return "", false
	}
	return net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port[:])))), true
}

func readSOCKS4Request(conn net.Conn) (string, bool) {
	// Check the version byte alone so a SOCKS5 greeting is dropped at once.
	var hdr [8]byte
	if _, err := io.ReadFull(conn, hdr[:1]); err != nil || hdr[0] != 4 {
		return "", false
	}
	if _, err := io.ReadFull(conn, hdr[1:]); err != nil || hdr[1] != 1 {
		return "", false
	}
	port := binary.BigEndian.Uint16(hdr[2:4])
	if _, ok := readCString(conn); !ok {
		return "", false
	}
	host := net.IP(hdr[4:8]).String()
	if hdr[4] == 0 && hdr[5] == 0 && hdr[6] == 0 && hdr[7] != 0 {
		name, ok := readCString(conn)
		if !ok {
			return "", false
		}
		host = name
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port))), true
}

func readCString(r io.Reader) (string, bool) {
	var buf []byte
	var b [1]byte
	for len(buf) < 256 {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", false
		}
		if b[0] == 0 {
			return string(buf), true
		}
		buf = append(buf, b[0])
	}
	return "", false
}

func pipe(a, b net.Conn) {
	done := make(chan struct{}, 2)
	cp := func(dst, src net.Conn) {
		io.Copy(dst, src)
		if tc, ok := dst.(*net.TCPConn); ok {
			tc.CloseWrite()
		}
		done <- struct{}{}
	}
	go cp(a, b)
	go cp(b, a)
	<-done
	<-done
	a.Close()
	b.Close()
}

// RefusingAddr returns a loopback host and port with nothing listening on it.
func RefusingAddr(t testing.TB) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return addr.IP.String(), uint16(addr.Port)
}

// Blackhole accepts TCP connections and never writes to them. It stands in
// for a proxy or server that hangs.
func Blackhole(t testing.TB) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
	})
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), uint16(addr.Port)
}

// Echo starts a TCP server that writes back everything it reads and returns
// its address.
func Echo(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c)
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}
