package testutil

import (
	"bufio"
	"fmt"
	"net"
	"path"
	"strings"
	"sync"
	"testing"
	"time"
)

// FTPConfig scripts the fake FTP server.
type FTPConfig struct {
	// User and Password are the accepted credentials. An empty User
	// accepts any login.
	User     string
	Password string
	// Dirs maps absolute directory paths to the raw LIST lines they return.
	Dirs map[string][]string
	// Files maps absolute file paths to their contents.
	Files map[string][]byte
	// AbortRetr lists file paths whose transfer stops halfway with a 426.
	AbortRetr map[string]bool
	// DisableEPSV answers EPSV with 502 so clients fall back to PASV.
	DisableEPSV bool
}

// FTPServer is a minimal scripted FTP server with passive-mode data
// connections on loopback.
type FTPServer struct {
	cfg FTPConfig
	ln  net.Listener

	mu       sync.Mutex
	commands []string
	wg       sync.WaitGroup
}

// NewFTP starts a fake FTP server.
func NewFTP(t testing.TB, cfg FTPConfig) *FTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ftp listen: %v", err)
	}
	if cfg.Dirs == nil {
		cfg.Dirs = map[string][]string{"/": nil}
	}
	s := &FTPServer{cfg: cfg, ln: ln}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

// Addr returns the control address as host:port.
func (s *FTPServer) Addr() string { return s.ln.Addr().String() }

// Host returns the control listen IP.
func (s *FTPServer) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the control listen port.
func (s *FTPServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Commands returns every command verb received so far, in order.
func (s *FTPServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *FTPServer) record(verb string) {
	s.mu.Lock()
	s.commands = append(s.commands, verb)
	s.mu.Unlock()
}

func (s *FTPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.session(conn)
	}
}

type ftpSession struct {
	srv      *FTPServer
	conn     net.Conn
	w        *bufio.Writer
	user     string
	loggedIn bool
	cwd      string
	data     net.Listener
}

func (s *FTPServer) session(conn net.Conn) {
	defer conn.Close()
	sess := &ftpSession{srv: s, conn: conn, w: bufio.NewWriter(conn), cwd: "/"}
	defer sess.closeData()

	sess.reply(220, "fake ftp ready")
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		s.record(verb)
		if !sess.handle(verb, arg) {
			return
		}
	}
}

func (ss *ftpSession) reply(code int, msg string) {
	fmt.Fprintf(ss.w, "%d %s\r\n", code, msg)
	ss.w.Flush()
}

func (ss *ftpSession) handle(verb, arg string) bool {
	switch verb {
	case "QUIT":
		ss.reply(221, "Goodbye.")
		return false
	case "NOOP":
		ss.reply(200, "NOOP ok.")
		return true
	case "USER":
		ss.user = arg
		ss.loggedIn = false
		ss.reply(331, "Please specify the password.")
		return true
	case "PASS":
		cfg := ss.srv.cfg
		if cfg.User == "" || (ss.user == cfg.User && arg == cfg.Password) {
			ss.loggedIn = true
			ss.reply(230, "Login successful.")
		} else {
			ss.reply(530, "Login incorrect.")
		}
		return true
	}

	if !ss.loggedIn {
		ss.reply(530, "Please login with USER and PASS.")
		return true
	}

	switch verb {
	case "TYPE":
		ss.reply(200, "Switching to "+arg+" mode.")
	case "SYST":
		ss.reply(215, "UNIX Type: L8")
	case "PWD":
		ss.reply(257, fmt.Sprintf("%q is the current directory", ss.cwd))
	case "CWD":
		p := ss.resolve(arg)
		if _, ok := ss.srv.cfg.Dirs[p]; !ok {
			ss.reply(550, "Failed to change directory.")
			return true
		}
		ss.cwd = p
		ss.reply(250, "Directory successfully changed.")
	case "EPSV":
		if ss.srv.cfg.DisableEPSV {
			ss.reply(502, "EPSV not implemented.")
			return true
		}
		port, err := ss.openData()
		if err != nil {
			ss.reply(425, "Cannot open data connection.")
			return true
		}
		ss.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
	case "PASV":
		port, err := ss.openData()
		if err != nil {
			ss.reply(425, "Cannot open data connection.")
			return true
		}
		ss.reply(227, fmt.Sprintf("Entering Passive Mode (127,0,0,1,%d,%d).", port>>8, port&0xff))
	case "LIST":
		ss.list(arg)
	case "RETR":
		ss.retr(arg)
	default:
		ss.reply(502, "Command not implemented.")
	}
	return true
}

func (ss *ftpSession) resolve(p string) string {
	if p == "" {
		return ss.cwd
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(ss.cwd, p)
	}
	return path.Clean(p)
}

func (ss *ftpSession) openData() (int, error) {
	ss.closeData()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	ss.data = ln
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (ss *ftpSession) closeData() {
	if ss.data != nil {
		ss.data.Close()
		ss.data = nil
	}
}

func (ss *ftpSession) acceptData() (net.Conn, bool) {
	if ss.data == nil {
		ss.reply(425, "Use PASV or EPSV first.")
		return nil, false
	}
	ln := ss.data
	ss.data = nil
	defer ln.Close()
	if tl, ok := ln.(*net.TCPListener); ok {
		tl.SetDeadline(time.Now().Add(5 * time.Second))
	}
	conn, err := ln.Accept()
	if err != nil {
		ss.reply(425, "Failed to establish connection.")
		return nil, false
	}
	return conn, true
}

func (ss *ftpSession) list(arg string) {
	// Drop ls-style flags such as "-a".
	var target string
	for _, f := range strings.Fields(arg) {
		if !strings.HasPrefix(f, "-") {
			target = f
		}
	}
	lines, ok := ss.srv.cfg.Dirs[ss.resolve(target)]
	if !ok {
		ss.closeData()
		ss.reply(550, "No such directory.")
		return
	}

	ss.reply(150, "Here comes the directory listing.")
	conn, ok := ss.acceptData()
	if !ok {
		return
	}
	for _, l := range lines {
		fmt.Fprintf(conn, "%s\r\n", l)
	}
	conn.Close()
	ss.reply(226, "Directory send OK.")
}

func (ss *ftpSession) retr(arg string) {
	p := ss.resolve(arg)
	body, ok := ss.srv.cfg.Files[p]
	if !ok {
		ss.closeData()
		ss.reply(550, "Failed to open file.")
		return
	}

	ss.reply(150, fmt.Sprintf("Opening BINARY mode data connection for %s (%d bytes).", arg, len(body)))
	conn, ok := ss.acceptData()
	if !ok {
		return
	}
	if ss.srv.cfg.AbortRetr[p] {
		conn.Write(body[:len(body)/2])
		conn.Close()
		ss.reply(426, "Connection closed; transfer aborted.")
		return
	}
	conn.Write(body)
	conn.Close()
	ss.reply(226, "Transfer complete.")
}
