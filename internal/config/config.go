package config

import "time"

// Options holds all configuration for a proxyftp run.
type Options struct {
	// Input
	ListFile   string // descriptor list for scan; "-" = stdin
	Descriptor string // single descriptor line for ls/get
	Path       string // directory to list (and to fetch from)
	Filename   string // remote file for get
	SaveAs     string // local destination for get; "-" = stdout

	// FTP
	Port             int
	User             string
	Password         string
	DisableEPSV      bool
	MaxRetrieveBytes int64
	Trace            bool // copy FTP control traffic to stderr

	// Performance
	Threads        int
	Timeout        time.Duration // per FTP operation
	ConnectTimeout time.Duration // TCP connect to the proxy
	TargetTimeout  time.Duration // whole resolution of one descriptor
	HealthTimeout  time.Duration
	NoPreCheck     bool
	Delay          time.Duration // spacing between attempts on one proxy
	Burst          int

	// Status filtering
	IncludeStatus []string
	ExcludeStatus []string
	MinFiles      int    // hide listings shorter than this
	MatchName     string // only show listings with a matching entry name
	ExcludeName   string
	Unique        int // results shown per (target, status); 0 = all

	// Output
	OutputFile   string
	OutputFormat string // "text", "json", "csv"
	Quiet        bool
	NoColor      bool
	SortBy       string // "", "status", "target", "elapsed"
	OnResultCmd  string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	ConfigFile string
}

// Defaults returns the values used when neither a flag, the config file nor
// the environment sets an option.
func Defaults() Options {
	return Options{
		Path:           "/",
		Port:           21,
		Threads:        1,
		Timeout:        15 * time.Second,
		ConnectTimeout: 10 * time.Second,
		HealthTimeout:  3 * time.Second,
		Burst:          1,
		OutputFormat:   "text",
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}
