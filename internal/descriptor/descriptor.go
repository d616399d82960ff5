// Package descriptor parses "proxy | target" lines into connection records.
package descriptor

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/maxvaer/proxyftp/internal/tunnel"
)

// Separator splits the proxy segment from the target segment.
const Separator = "|"

// Descriptor is one parsed "proxy | target" line. Values are immutable once
// parsed.
type Descriptor struct {
	Version    tunnel.Version
	ProxyHost  string
	ProxyPort  uint16
	TargetHost string
	// TargetPort is the FTP port given in the target segment, or 0 when the
	// line names none.
	TargetPort uint16
	SourceLine string
}

// ProxyAddr returns the proxy endpoint as host:port.
func (d Descriptor) ProxyAddr() string {
	return net.JoinHostPort(d.ProxyHost, strconv.Itoa(int(d.ProxyPort)))
}

// Target returns the target as written in canonical form, with the port
// only when one was given.
func (d Descriptor) Target() string {
	if d.TargetPort == 0 {
		if strings.Contains(d.TargetHost, ":") {
			return "[" + d.TargetHost + "]"
		}
		return d.TargetHost
	}
	return net.JoinHostPort(d.TargetHost, strconv.Itoa(int(d.TargetPort)))
}

// Name is the short label shown to users.
func (d Descriptor) Name() string {
	return fmt.Sprintf("%s (via %s)", d.TargetHost, d.ProxyHost)
}

// Key identifies a descriptor for de-duplication. The declared version is
// part of the key.
func (d Descriptor) Key() string {
	return fmt.Sprintf("%d|%s|%s", d.Version, d.ProxyAddr(), strings.ToLower(d.Target()))
}

var proxySchemes = []string{"socks5://", "socks4://", "socks://"}

var targetSchemes = []string{"http://", "https://", "ftp://"}

// Parse turns one input line into a Descriptor. It reports false for any
// line it cannot fully parse; it never panics.
func Parse(line string) (Descriptor, bool) {
	if strings.Count(line, Separator) != 1 {
		return Descriptor{}, false
	}
	proxyPart, targetPart, _ := strings.Cut(line, Separator)

	version, host, port, ok := parseProxy(strings.TrimSpace(proxyPart))
	if !ok {
		return Descriptor{}, false
	}
	target, targetPort, ok := parseTarget(strings.TrimSpace(targetPart))
	if !ok {
		return Descriptor{}, false
	}

	return Descriptor{
		Version:    version,
		ProxyHost:  host,
		ProxyPort:  port,
		TargetHost: target,
		TargetPort: targetPort,
		SourceLine: line,
	}, true
}

func parseProxy(s string) (tunnel.Version, string, uint16, bool) {
	version := tunnel.SOCKS5
	if strings.Contains(strings.ToLower(s), "socks4") {
		version = tunnel.SOCKS4
	}

	s = trimSchemes(s, proxySchemes)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, "/")

	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return 0, "", 0, false
	}
	host, portStr := s[:i], s[i+1:]
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	host = strings.TrimSpace(host)
	if host == "" || strings.ContainsAny(host, " \t/[]") {
		return 0, "", 0, false
	}

	port, err := strconv.ParseUint(strings.TrimSpace(portStr), 10, 16)
	if err != nil || port == 0 {
		return 0, "", 0, false
	}
	return version, host, uint16(port), true
}

// labelRE matches a leading label such as "Opens:" and what follows it.
var labelRE = regexp.MustCompile(`^[A-Za-z][\w-]*:(\s*)(.*)$`)

// stripLabel removes a leading label. "host:21" and "ftp://" are not
// labels; anything else after "word:" is, with or without whitespace.
func stripLabel(s string) string {
	m := labelRE.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	space, rest := m[1], m[2]
	if space != "" {
		return rest
	}
	if strings.HasPrefix(rest, "//") || strings.HasPrefix(rest, ":") || rest == "" || isPort(rest) {
		return s
	}
	return rest
}

// isPort reports whether s starts with a run of digits ending the host
// part, as in "21" or "2121/pub".
func isPort(s string) bool {
	head, _, _ := strings.Cut(s, "/")
	if head == "" {
		return false
	}
	for _, r := range head {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseTarget(s string) (string, uint16, bool) {
	s = stripLabel(s)
	s = trimSchemes(s, targetSchemes)
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t") || strings.HasSuffix(s, ":") {
		return "", 0, false
	}

	if host, portStr, err := net.SplitHostPort(s); err == nil {
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || port == 0 || host == "" {
			return "", 0, false
		}
		return host, uint16(port), true
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	if s == "" || strings.ContainsAny(s, "[]") {
		return "", 0, false
	}
	return s, 0, true
}

// trimSchemes removes the first matching scheme prefix, ignoring case.
func trimSchemes(s string, schemes []string) string {
	lower := strings.ToLower(s)
	for _, scheme := range schemes {
		if strings.HasPrefix(lower, scheme) {
			return s[len(scheme):]
		}
	}
	return s
}

// Render formats d back into the canonical input form.
func Render(d Descriptor) string {
	return fmt.Sprintf("socks%d://%s | %s", int(d.Version), d.ProxyAddr(), d.Target())
}
