package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/proxyftp/internal/descriptor"
	"github.com/maxvaer/proxyftp/internal/scanner"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

func sample() *scanner.Result {
	return &scanner.Result{
		Descriptor: descriptor.Descriptor{Version: tunnel.SOCKS5, ProxyHost: "10.0.0.1", ProxyPort: 1080, TargetHost: "10.0.0.2"},
		Outcome: scanner.Outcome{
			Status:         scanner.Success,
			WorkingVersion: tunnel.SOCKS4,
			Elapsed:        time.Second,
			Path:           "/pub",
			Listing:        []scanner.Entry{{Name: "a.txt"}, {Name: "b.txt"}},
		},
	}
}

func TestExpand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewRunner("notify {target} via {proxy}", false, nil)
	assert.Equal(t, `notify "$PROXYFTP_TARGET" via "$PROXYFTP_PROXY"`, r.Expand())
}

func TestEnv(t *testing.T) {
	assert.Equal(t, []string{
		"PROXYFTP_PROXY=10.0.0.1:1080",
		"PROXYFTP_TARGET=10.0.0.2",
		"PROXYFTP_STATUS=success",
		"PROXYFTP_VERSION=socks4",
		"PROXYFTP_PATH=/pub",
		"PROXYFTP_FILES=2",
	}, Env(sample()))
}

func TestRunSubstitutesPlaceholders(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var out bytes.Buffer
	r := NewRunner("echo {target} via {proxy} {status}/{version} {path} {files}", false, nil)
	r.out = &out

	r.Run(context.Background(), sample())
	assert.Equal(t, "[hook] 10.0.0.2 via 10.0.0.1:1080 success/socks4 /pub 2\n", out.String())
}

func TestRunNeverExecutesTargetText(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	const marker = "hook_marker"
	line := "socks5://10.0.0.1:1080 | $(touch${IFS}" + marker + ")"
	d, ok := descriptor.Parse(line)
	require.True(t, ok)

	res := sample()
	res.Descriptor = d
	for _, tc := range []struct {
		cmd    string
		echoed bool
	}{
		{"echo {target}", true},
		{`echo "{target}"`, true},
		{"echo '{target}'", false},
	} {
		var out bytes.Buffer
		r := NewRunner(tc.cmd, false, nil)
		r.out = &out
		r.Run(context.Background(), res)
		if tc.echoed {
			assert.Contains(t, out.String(), "$(touch${IFS}"+marker+")", "command %q", tc.cmd)
		}

		_, err := os.Stat(marker)
		assert.True(t, os.IsNotExist(err), "command %q ran target text", tc.cmd)
	}
}

func TestRunPipesJSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var out bytes.Buffer
	r := NewRunner("cat", false, nil)
	r.out = &out

	r.Run(context.Background(), sample())

	line := strings.TrimPrefix(out.String(), "[hook] ")
	var got resultJSON
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "10.0.0.2", got.Target)
	assert.Equal(t, "socks4", got.WorkingVersion)
	assert.Equal(t, []string{"a.txt", "b.txt"}, got.Files)
}

func TestRunFailureIsReported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var out bytes.Buffer
	r := NewRunner("exit 3", false, nil)
	r.out = &out
	r.Run(context.Background(), sample())
	assert.Contains(t, out.String(), "[hook] error")

	out.Reset()
	r.quiet = true
	r.Run(context.Background(), sample())
	assert.Empty(t, out.String())
}
