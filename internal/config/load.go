package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PROXYFTP_THREADS.
const EnvPrefix = "PROXYFTP"

// binding copies one config key into Options.
type binding func(v *viper.Viper, key string, o *Options)

func str(field func(*Options) *string) binding {
	return func(v *viper.Viper, key string, o *Options) { *field(o) = v.GetString(key) }
}

func integer(field func(*Options) *int) binding {
	return func(v *viper.Viper, key string, o *Options) { *field(o) = v.GetInt(key) }
}

func boolean(field func(*Options) *bool) binding {
	return func(v *viper.Viper, key string, o *Options) { *field(o) = v.GetBool(key) }
}

func duration(field func(*Options) *time.Duration) binding {
	return func(v *viper.Viper, key string, o *Options) { *field(o) = v.GetDuration(key) }
}

// stringSlice also accepts comma-separated values, as env vars carry them.
func stringSlice(field func(*Options) *[]string) binding {
	return func(v *viper.Viper, key string, o *Options) {
		var out []string
		for _, item := range v.GetStringSlice(key) {
			for _, part := range strings.Split(item, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
		*field(o) = out
	}
}

// bindings is keyed by flag name so file keys, env names and flags agree.
var bindings = map[string]binding{
	"path":            str(func(o *Options) *string { return &o.Path }),
	"port":            integer(func(o *Options) *int { return &o.Port }),
	"user":            str(func(o *Options) *string { return &o.User }),
	"password":        str(func(o *Options) *string { return &o.Password }),
	"disable-epsv":    boolean(func(o *Options) *bool { return &o.DisableEPSV }),
	"max-size":        func(v *viper.Viper, key string, o *Options) { o.MaxRetrieveBytes = v.GetInt64(key) },
	"trace":           boolean(func(o *Options) *bool { return &o.Trace }),
	"threads":         integer(func(o *Options) *int { return &o.Threads }),
	"timeout":         duration(func(o *Options) *time.Duration { return &o.Timeout }),
	"connect-timeout": duration(func(o *Options) *time.Duration { return &o.ConnectTimeout }),
	"target-timeout":  duration(func(o *Options) *time.Duration { return &o.TargetTimeout }),
	"health-timeout":  duration(func(o *Options) *time.Duration { return &o.HealthTimeout }),
	"no-precheck":     boolean(func(o *Options) *bool { return &o.NoPreCheck }),
	"delay":           duration(func(o *Options) *time.Duration { return &o.Delay }),
	"burst":           integer(func(o *Options) *int { return &o.Burst }),
	"include-status":  stringSlice(func(o *Options) *[]string { return &o.IncludeStatus }),
	"exclude-status":  stringSlice(func(o *Options) *[]string { return &o.ExcludeStatus }),
	"min-files":       integer(func(o *Options) *int { return &o.MinFiles }),
	"match-name":      str(func(o *Options) *string { return &o.MatchName }),
	"exclude-name":    str(func(o *Options) *string { return &o.ExcludeName }),
	"unique":          integer(func(o *Options) *int { return &o.Unique }),
	"output":          str(func(o *Options) *string { return &o.OutputFile }),
	"format":          str(func(o *Options) *string { return &o.OutputFormat }),
	"quiet":           boolean(func(o *Options) *bool { return &o.Quiet }),
	"no-color":        boolean(func(o *Options) *bool { return &o.NoColor }),
	"sort":            str(func(o *Options) *string { return &o.SortBy }),
	"on-result":       str(func(o *Options) *string { return &o.OnResultCmd }),
	"log-level":       str(func(o *Options) *string { return &o.LogLevel }),
	"log-format":      str(func(o *Options) *string { return &o.LogFormat }),
	"log-file":        str(func(o *Options) *string { return &o.LogFile }),
}

// Keys lists every key accepted in a config file, sorted.
func Keys() []string {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Load fills opts from the YAML file at path (optional) and PROXYFTP_*
// environment variables. Options for which changed reports true were set on
// the command line and are left alone. Environment wins over the file.
func Load(path string, opts *Options, changed func(name string) bool) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, bind := range bindings {
		if changed != nil && changed(key) {
			continue
		}
		if v.IsSet(key) {
			bind(v, key, opts)
		}
	}
	return opts.Validate()
}

// Validate rejects option combinations no command can run with.
func (o *Options) Validate() error {
	if o.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", o.Threads)
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", o.Port)
	}
	if len(o.IncludeStatus) > 0 && len(o.ExcludeStatus) > 0 {
		return fmt.Errorf("--include-status and --exclude-status are mutually exclusive")
	}
	switch o.OutputFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("--format must be one of: text, json, csv")
	}
	switch o.SortBy {
	case "", "status", "target", "elapsed":
	default:
		return fmt.Errorf("--sort must be one of: status, target, elapsed")
	}
	return nil
}

// fileView is the YAML shape of Options.
type fileView struct {
	Path           string   `yaml:"path"`
	Port           int      `yaml:"port"`
	User           string   `yaml:"user,omitempty"`
	DisableEPSV    bool     `yaml:"disable-epsv"`
	MaxSize        int64    `yaml:"max-size"`
	Trace          bool     `yaml:"trace"`
	Threads        int      `yaml:"threads"`
	Timeout        string   `yaml:"timeout"`
	ConnectTimeout string   `yaml:"connect-timeout"`
	TargetTimeout  string   `yaml:"target-timeout"`
	HealthTimeout  string   `yaml:"health-timeout"`
	NoPreCheck     bool     `yaml:"no-precheck"`
	Delay          string   `yaml:"delay"`
	Burst          int      `yaml:"burst"`
	IncludeStatus  []string `yaml:"include-status,omitempty"`
	ExcludeStatus  []string `yaml:"exclude-status,omitempty"`
	MinFiles       int      `yaml:"min-files"`
	MatchName      string   `yaml:"match-name,omitempty"`
	ExcludeName    string   `yaml:"exclude-name,omitempty"`
	Unique         int      `yaml:"unique"`
	Output         string   `yaml:"output,omitempty"`
	Format         string   `yaml:"format"`
	Quiet          bool     `yaml:"quiet"`
	NoColor        bool     `yaml:"no-color"`
	Sort           string   `yaml:"sort,omitempty"`
	OnResult       string   `yaml:"on-result,omitempty"`
	LogLevel       string   `yaml:"log-level"`
	LogFormat      string   `yaml:"log-format"`
	LogFile        string   `yaml:"log-file,omitempty"`
}

// YAML renders the effective options as a config file. The password is
// never written.
func (o *Options) YAML() ([]byte, error) {
	return yaml.Marshal(fileView{
		Path:           o.Path,
		Port:           o.Port,
		User:           o.User,
		DisableEPSV:    o.DisableEPSV,
		MaxSize:        o.MaxRetrieveBytes,
		Trace:          o.Trace,
		Threads:        o.Threads,
		Timeout:        o.Timeout.String(),
		ConnectTimeout: o.ConnectTimeout.String(),
		TargetTimeout:  o.TargetTimeout.String(),
		HealthTimeout:  o.HealthTimeout.String(),
		NoPreCheck:     o.NoPreCheck,
		Delay:          o.Delay.String(),
		Burst:          o.Burst,
		IncludeStatus:  o.IncludeStatus,
		ExcludeStatus:  o.ExcludeStatus,
		MinFiles:       o.MinFiles,
		MatchName:      o.MatchName,
		ExcludeName:    o.ExcludeName,
		Unique:         o.Unique,
		Output:         o.OutputFile,
		Format:         o.OutputFormat,
		Quiet:          o.Quiet,
		NoColor:        o.NoColor,
		Sort:           o.SortBy,
		OnResult:       o.OnResultCmd,
		LogLevel:       o.LogLevel,
		LogFormat:      o.LogFormat,
		LogFile:        o.LogFile,
	})
}
