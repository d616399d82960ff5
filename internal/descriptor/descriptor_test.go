package descriptor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/proxyftp/internal/tunnel"
)

func TestParseConcreteLine(t *testing.T) {
	line := "socks5://10.0.0.1:1080 | Opens: http://10.0.0.2/files/"
	d, ok := Parse(line)
	require.True(t, ok)
	assert.Equal(t, tunnel.SOCKS5, d.Version)
	assert.Equal(t, "10.0.0.1", d.ProxyHost)
	assert.Equal(t, uint16(1080), d.ProxyPort)
	assert.Equal(t, "10.0.0.2", d.TargetHost)
	assert.Equal(t, uint16(0), d.TargetPort)
	assert.Equal(t, line, d.SourceLine)
	assert.Equal(t, "10.0.0.2 (via 10.0.0.1)", d.Name())
	assert.Equal(t, "10.0.0.1:1080", d.ProxyAddr())
}

func TestParseValid(t *testing.T) {
	tests := []struct {
		line       string
		version    tunnel.Version
		proxyHost  string
		proxyPort  uint16
		targetHost string
		targetPort uint16
	}{
		{"socks4://1.2.3.4:4145 | ftp://5.6.7.8", tunnel.SOCKS4, "1.2.3.4", 4145, "5.6.7.8", 0},
		{"SOCKS4://1.2.3.4:4145|5.6.7.8", tunnel.SOCKS4, "1.2.3.4", 4145, "5.6.7.8", 0},
		{"socks://1.2.3.4:1080 | 5.6.7.8", tunnel.SOCKS5, "1.2.3.4", 1080, "5.6.7.8", 0},
		{"1.2.3.4:1080 | 5.6.7.8", tunnel.SOCKS5, "1.2.3.4", 1080, "5.6.7.8", 0},
		{"socks5h://proxy.lan:9050 | HTTPS://files.lan/a/b", tunnel.SOCKS5, "proxy.lan", 9050, "files.lan", 0},
		{"socks5://[::1]:1080 | Opens: ftp://[fe80::1]:2121/pub", tunnel.SOCKS5, "::1", 1080, "fe80::1", 2121},
		{"  socks5://1.2.3.4:1080  |  Label: 5.6.7.8:21  ", tunnel.SOCKS5, "1.2.3.4", 1080, "5.6.7.8", 21},
		{"socks5://10.0.0.1:1080 | Opens:http://10.0.0.2/files/", tunnel.SOCKS5, "10.0.0.1", 1080, "10.0.0.2", 0},
		{"socks5://10.0.0.1:1080 | Opens:\thttp://10.0.0.2/", tunnel.SOCKS5, "10.0.0.1", 1080, "10.0.0.2", 0},
		{"socks5://10.0.0.1:1080 | Opens:10.0.0.2:2121", tunnel.SOCKS5, "10.0.0.1", 1080, "10.0.0.2", 2121},
		{"socks5://10.0.0.1:1080 | localhost:2121/pub", tunnel.SOCKS5, "10.0.0.1", 1080, "localhost", 2121},
		{"socks5://10.0.0.1:1080 | ftp.lan", tunnel.SOCKS5, "10.0.0.1", 1080, "ftp.lan", 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d, ok := Parse(tt.line)
			require.True(t, ok)
			assert.NotContains(t, d.TargetHost, "://")
			assert.Equal(t, tt.version, d.Version)
			assert.Equal(t, tt.proxyHost, d.ProxyHost)
			assert.Equal(t, tt.proxyPort, d.ProxyPort)
			assert.Equal(t, tt.targetHost, d.TargetHost)
			assert.Equal(t, tt.targetPort, d.TargetPort)
		})
	}
}

func TestParseRejects(t *testing.T) {
	lines := []string{
		"",
		"socks5://1.2.3.4:1080",
		"socks5://1.2.3.4:1080 | a | b",
		"socks5://1.2.3.4:http | 5.6.7.8",
		"socks5://1.2.3.4:0 | 5.6.7.8",
		"socks5://1.2.3.4:65536 | 5.6.7.8",
		"socks5://1.2.3.4:-1 | 5.6.7.8",
		"socks5://1.2.3.4 | 5.6.7.8",
		"socks5://:1080 | 5.6.7.8",
		"socks5://1.2.3.4: | 5.6.7.8",
		"socks5://1.2.3.4:1080 | ",
		"socks5://1.2.3.4:1080 | Opens:",
		"socks5://1.2.3.4:1080 | http:///path",
		"socks5://1.2.3.4:1080 | gopher://5.6.7.8/",
		"socks5://1.2.3.4:1080 | Opens: gopher://5.6.7.8/pub",
		"socks5://1.2.3.4:1080 | Opens:\t",
		"socks5://1.2.3.4:1080 | 5.6.7.8:0",
		"socks4 proxy 1.2.3.4:1080 | 5.6.7.8",
		"|",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, ok := Parse(line)
			assert.False(t, ok)
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	lines := []string{
		"socks5://10.0.0.1:1080 | Opens: http://10.0.0.2/files/",
		"socks4://1.2.3.4:4145 | ftp://ftp.example.org/pub",
		"proxy.lan:1080 | 5.6.7.8:2121",
		"socks5://[2001:db8::1]:1080 | [2001:db8::2]",
		"SOCKS4://1.2.3.4:1080|host",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			first, ok := Parse(line)
			require.True(t, ok)
			second, ok := Parse(Render(first))
			require.True(t, ok, Render(first))

			first.SourceLine, second.SourceLine = "", ""
			assert.Equal(t, first, second)
			assert.Equal(t, Render(first), Render(second))
		})
	}
}

func TestRenderFormat(t *testing.T) {
	d, ok := Parse("socks4://1.2.3.4:4145 | Opens: http://5.6.7.8/")
	require.True(t, ok)
	assert.Equal(t, "socks4://1.2.3.4:4145 | 5.6.7.8", Render(d))
}

func TestLoadReader(t *testing.T) {
	input := strings.Join([]string{
		"# proxies",
		"",
		"socks5://10.0.0.1:1080 | Opens: http://10.0.0.2/",
		"garbage line",
		"socks5://10.0.0.1:1080 | ftp://10.0.0.2",
		"socks4://10.0.0.1:1080 | 10.0.0.2",
		"socks5://10.0.0.3:1080 | 10.0.0.4",
	}, "\n")

	ds, stats, err := LoadReader(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Skipped: 1, Duplicates: 1}, stats)
	require.Len(t, ds, 3)
	assert.Equal(t, tunnel.SOCKS5, ds[0].Version)
	assert.Equal(t, tunnel.SOCKS4, ds[1].Version)
	assert.Equal(t, "10.0.0.4", ds[2].TargetHost)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.2.3.4:1080 | 5.6.7.8\n"), 0644))

	ds, stats, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, stats)
	require.Len(t, ds, 1)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestParseLines(t *testing.T) {
	ds, stats := ParseLines([]string{"1.2.3.4:1080 | 5.6.7.8", "nope", "socks5://1.2.3.4:1080 | 5.6.7.8"})
	assert.Len(t, ds, 1)
	assert.Equal(t, LoadStats{Skipped: 1, Duplicates: 1}, stats)
}
