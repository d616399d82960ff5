package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// DefaultTimeout bounds one hook invocation.
const DefaultTimeout = 30 * time.Second

// resultJSON is the JSON payload sent to the hook command via stdin.
type resultJSON struct {
	ProxyHost      string   `json:"proxy_host"`
	ProxyPort      uint16   `json:"proxy_port"`
	Target         string   `json:"target"`
	Status         string   `json:"status"`
	WorkingVersion string   `json:"working_version,omitempty"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	Path           string   `json:"path"`
	Files          []string `json:"files"`
	Error          string   `json:"error,omitempty"`
}

// Runner executes a shell command for each displayed scan result.
type Runner struct {
	cmd     string
	quiet   bool
	timeout time.Duration
	out     io.Writer
	log     logrus.FieldLogger
}

// NewRunner creates a hook runner. cmd is the shell command to execute.
func NewRunner(cmd string, quiet bool, log logrus.FieldLogger) *Runner {
	return &Runner{cmd: cmd, quiet: quiet, timeout: DefaultTimeout, out: os.Stderr, log: log}
}

// envPrefix names the variables that carry result values to the command.
const envPrefix = "PROXYFTP_"

var placeholders = []string{"proxy", "target", "status", "version", "path", "files"}

// values maps each placeholder name to its value for result.
func values(result *scanner.Result) map[string]string {
	return map[string]string{
		"proxy":   result.Descriptor.ProxyAddr(),
		"target":  result.Descriptor.Target(),
		"status":  result.Outcome.Status.String(),
		"version": result.Outcome.WorkingVersion.String(),
		"path":    result.Outcome.Path,
		"files":   strconv.Itoa(len(result.Outcome.Listing)),
	}
}

func envName(placeholder string) string {
	return envPrefix + strings.ToUpper(placeholder)
}

// Expand rewrites {proxy}, {target}, {status}, {version}, {path} and
// {files} into references to PROXYFTP_* variables. Values come from the
// input list, so they reach the shell only as variable expansions, which
// are never parsed as commands.
func (r *Runner) Expand() string {
	pairs := make([]string, 0, 2*len(placeholders))
	for _, name := range placeholders {
		ref := `"$` + envName(name) + `"`
		if runtime.GOOS == "windows" {
			ref = "!" + envName(name) + "!"
		}
		pairs = append(pairs, "{"+name+"}", ref)
	}
	return strings.NewReplacer(pairs...).Replace(r.cmd)
}

// Env returns the PROXYFTP_* variables for result.
func Env(result *scanner.Result) []string {
	vals := values(result)
	env := make([]string, 0, len(placeholders))
	for _, name := range placeholders {
		env = append(env, envName(name)+"="+vals[name])
	}
	return env
}

// Run executes the hook command with the result as JSON on stdin.
// Errors are reported but do not halt the scan.
func (r *Runner) Run(ctx context.Context, result *scanner.Result) {
	files := make([]string, len(result.Outcome.Listing))
	for i, e := range result.Outcome.Listing {
		files[i] = e.Name
	}
	payload := resultJSON{
		ProxyHost:      result.Descriptor.ProxyHost,
		ProxyPort:      result.Descriptor.ProxyPort,
		Target:         result.Descriptor.Target(),
		Status:         result.Outcome.Status.String(),
		WorkingVersion: result.Outcome.WorkingVersion.String(),
		ElapsedSeconds: result.Outcome.Elapsed.Seconds(),
		Path:           result.Outcome.Path,
		Files:          files,
		Error:          result.Outcome.Error,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.report("marshal error: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, r.Expand())...)
	cmd.Env = append(os.Environ(), Env(result)...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = r.out

	output, err := cmd.Output()
	if err != nil {
		if r.log != nil {
			r.log.WithError(err).WithField("target", payload.Target).Debug("result hook failed")
		}
		r.report("error: %v\n", err)
		return
	}

	if len(output) > 0 {
		r.report("%s", output)
	}
}

func (r *Runner) report(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(r.out, "[hook] "+format, args...)
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		// Delayed expansion (!VAR!) runs after the line is parsed.
		return "cmd", []string{"/V:ON", "/C"}
	}
	return "sh", []string{"-c"}
}
