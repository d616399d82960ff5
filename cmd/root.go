package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/proxyftp/internal/config"
	"github.com/maxvaer/proxyftp/pkg/version"
)

var (
	opts        = config.Defaults()
	printConfig bool
)

type flagGroup struct {
	title string
	flags []string
}

var rootCmd = &cobra.Command{
	Use:     "proxyftp <command> [flags]",
	Short:   "Probe FTP servers through SOCKS4/SOCKS5 proxies",
	Version: version.Version,
	Long: `proxyftp reaches FTP servers that are only reachable through SOCKS
proxies. For every "proxy | target" line it finds the SOCKS version that
works, logs in and lists a directory, falling back from the declared
version to the other one.`,
	Example: `  proxyftp scan proxies.txt
  proxyftp scan -l proxies.txt -t 20 -x dead-proxy,timeout -o report.csv --format csv
  cat proxies.txt | proxyftp scan -l - --path /pub
  proxyftp ls "socks5://10.0.0.1:1080 | Opens: http://10.0.0.2/" --path /pub
  proxyftp get "socks4://10.0.0.1:4145 | 10.0.0.2" readme.txt --path /pub -O readme.txt`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		changed := func(name string) bool { return cmd.Flags().Changed(name) }
		if err := config.Load(opts.ConfigFile, &opts, changed); err != nil {
			return err
		}
		if printConfig {
			raw, err := opts.YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(raw))
			os.Exit(0)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()

	// FTP
	f.StringVarP(&opts.Path, "path", "p", opts.Path, "Remote directory to list or fetch from")
	f.IntVar(&opts.Port, "port", opts.Port, "FTP port when the target names none")
	f.StringVarP(&opts.User, "user", "U", "", "FTP user (default: anonymous)")
	f.StringVarP(&opts.Password, "password", "P", "", "FTP password")
	f.BoolVar(&opts.DisableEPSV, "disable-epsv", false, "Use PASV only")
	f.Int64Var(&opts.MaxRetrieveBytes, "max-size", 0, "Largest file get will download in bytes (0 = no limit)")
	f.BoolVar(&opts.Trace, "trace", false, "Print the FTP control conversation to stderr")

	// Timing
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "FTP connect and per-operation timeout")
	f.DurationVar(&opts.ConnectTimeout, "connect-timeout", opts.ConnectTimeout, "TCP connect timeout to the proxy")
	f.DurationVar(&opts.HealthTimeout, "health-timeout", opts.HealthTimeout, "Proxy pre-check timeout")
	f.BoolVar(&opts.NoPreCheck, "no-precheck", false, "Skip the bare TCP proxy pre-check")

	// Output
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	// Logging and configuration
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: trace, debug, info, warn, error")
	f.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "Log format: text, json")
	f.StringVar(&opts.LogFile, "log-file", "", "Write logs to a rotated file instead of stderr")
	f.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (PROXYFTP_* env vars also apply)")
	f.BoolVar(&printConfig, "print-config", false, "Print the effective configuration as YAML and exit")

	rootCmd.AddCommand(scanCmd, lsCmd, getCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// groupedHelp prints flags in titled groups like httpx.
func groupedHelp(groups []flagGroup) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Root().Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", strings.TrimSpace(cmd.Long), cmd.UseLine())
		if cmd.Example != "" {
			fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		}
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range groups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf("\n  proxyftp %s  FTP through SOCKS4/5\n\n", ver)
}
