package ftpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/proxyftp/internal/testutil"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

var pubListing = []string{
	"drwxr-xr-x 2 0 0 4096 Jan 01 2024 incoming",
	"-rw-r--r-- 1 0 0 1234 Jan 01 2024 readme.txt",
	"total 8",
}

func newServer(t *testing.T) *testutil.FTPServer {
	return testutil.NewFTP(t, testutil.FTPConfig{
		Dirs: map[string][]string{
			"/":    {"drwxr-xr-x 2 0 0 4096 Jan 01 2024 pub"},
			"/pub": pubListing,
		},
		Files: map[string][]byte{
			"/pub/readme.txt": []byte("hello over ftp"),
			"/pub/big.bin":    bytes.Repeat([]byte("x"), 4096),
		},
		AbortRetr: map[string]bool{"/pub/big.bin": true},
	})
}

func dial(t *testing.T, addr string, opts ...DialOption) *ServerConn {
	t.Helper()
	opts = append([]DialOption{WithTimeout(3 * time.Second)}, opts...)
	c, err := Dial(context.Background(), addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialReadsGreeting(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv.Addr())
	assert.Equal(t, "fake ftp ready", c.Greeting)
	require.NoError(t, c.Quit())
}

func TestLoginAndList(t *testing.T) {
	for _, epsv := range []bool{true, false} {
		name := "epsv"
		if !epsv {
			name = "pasv"
		}
		t.Run(name, func(t *testing.T) {
			srv := newServer(t)
			c := dial(t, srv.Addr(), WithDisabledEPSV(!epsv))
			require.NoError(t, c.Login("anonymous", "anonymous@"))
			require.NoError(t, c.ChangeDir("/pub"))

			lines, err := c.List("")
			require.NoError(t, err)
			assert.Equal(t, pubListing, lines)
			require.NoError(t, c.Quit())

			if epsv {
				assert.Contains(t, srv.Commands(), "EPSV")
				assert.NotContains(t, srv.Commands(), "PASV")
			} else {
				assert.NotContains(t, srv.Commands(), "EPSV")
			}
		})
	}
}

func TestEPSVFallsBackToPASV(t *testing.T) {
	srv := testutil.NewFTP(t, testutil.FTPConfig{
		DisableEPSV: true,
		Dirs:        map[string][]string{"/": {"a", "b"}},
	})
	c := dial(t, srv.Addr())
	require.NoError(t, c.Login("anonymous", "anonymous@"))

	for i := 0; i < 2; i++ {
		lines, err := c.List("")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, lines)
	}
	cmds := srv.Commands()
	epsv := 0
	for _, cmd := range cmds {
		if cmd == "EPSV" {
			epsv++
		}
	}
	assert.Equal(t, 1, epsv, "EPSV is only tried once per session")
}

func TestLoginRejected(t *testing.T) {
	srv := testutil.NewFTP(t, testutil.FTPConfig{User: "alice", Password: "secret"})
	c := dial(t, srv.Addr())

	err := c.Login("alice", "wrong")
	var te *textproto.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusNotLoggedIn, te.Code)
	assert.True(t, IsAuthCode(te.Code))

	require.NoError(t, c.Login("alice", "secret"))
}

func TestChangeDirMissing(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv.Addr())
	require.NoError(t, c.Login("anonymous", "anonymous@"))

	err := c.ChangeDir("/nope")
	var te *textproto.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusFileUnavailable, te.Code)
}

func TestRetr(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv.Addr())
	require.NoError(t, c.Login("anonymous", "anonymous@"))
	require.NoError(t, c.Binary())
	require.NoError(t, c.ChangeDir("/pub"))

	r, err := c.Retr("readme.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, "hello over ftp", string(body))

	_, err = c.Retr("missing.txt")
	var te *textproto.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusFileUnavailable, te.Code)
}

func TestRetrAbortedTransferFailsOnClose(t *testing.T) {
	srv := newServer(t)
	c := dial(t, srv.Addr())
	require.NoError(t, c.Login("anonymous", "anonymous@"))

	r, err := c.Retr("/pub/big.bin")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, body, 2048)

	err = r.Close()
	var te *textproto.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusTransferAborted, te.Code)
}

func TestThroughSOCKS5Tunnel(t *testing.T) {
	srv := newServer(t)
	relay := testutil.NewSOCKS5(t)
	d, err := tunnel.New(tunnel.SOCKS5, relay.Host(), relay.Port())
	require.NoError(t, err)

	c := dial(t, srv.Addr(), WithDialer(d))
	require.NoError(t, c.Login("anonymous", "anonymous@"))
	lines, err := c.List("/pub")
	require.NoError(t, err)
	assert.Equal(t, pubListing, lines)
	require.NoError(t, c.Quit())

	// control plus one data connection
	assert.Equal(t, 2, relay.Accepted())
}

func TestGreetingTimeout(t *testing.T) {
	host, port := testutil.Blackhole(t)
	start := time.Now()
	_, err := Dial(context.Background(), net.JoinHostPort(host, strconv.Itoa(int(port))), WithTimeout(200*time.Millisecond))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout())
}

func TestCancelledContextAbortsSession(t *testing.T) {
	host, port := testutil.Blackhole(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := Dial(ctx, net.JoinHostPort(host, strconv.Itoa(int(port))))
	require.ErrorIs(t, err, context.Canceled)
}

func TestParsePassiveReplies(t *testing.T) {
	port, err := parseEPSV("Entering Extended Passive Mode (|||50123|)")
	require.NoError(t, err)
	assert.Equal(t, 50123, port)

	port, err = parsePASV("Entering Passive Mode (10,0,0,5,195,203).")
	require.NoError(t, err)
	assert.Equal(t, 195*256+203, port)

	for _, bad := range []string{"", "(|||x|)", "(|||)"} {
		_, err := parseEPSV(bad)
		assert.ErrorIs(t, err, ErrBadPassiveReply, bad)
	}
	for _, bad := range []string{"", "(1,2,3)", "(1,2,3,4,300,1)", "(1,2,3,4,0,0)"} {
		_, err := parsePASV(bad)
		assert.ErrorIs(t, err, ErrBadPassiveReply, bad)
	}
}
