package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxvaer/proxyftp/internal/runner"
)

var commonGroups = []flagGroup{
	{"FTP", []string{"path", "port", "user", "password", "disable-epsv", "max-size", "trace"}},
	{"TIMING", []string{"timeout", "connect-timeout", "health-timeout", "no-precheck"}},
	{"CONFIGURATION", []string{"config", "print-config", "log-level", "log-format", "log-file", "quiet", "no-color"}},
}

var scanCmd = &cobra.Command{
	Use:   "scan [list-file] [flags]",
	Short: "Probe every descriptor in a list and write a report",
	Long: `scan reads "proxy | target" lines (a file, -l, or stdin with -l -),
resolves each one and reports which SOCKS version reached the FTP server,
how long it took and what the listing contained.`,
	Example: `  proxyftp scan proxies.txt
  proxyftp scan -l proxies.txt -t 20 --delay 500ms
  proxyftp scan -l proxies.txt -i success --min-files 1 --format json -o ok.json
  proxyftp scan -l proxies.txt --on-result "echo {target} via {proxy} ({version})"`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if opts.ListFile != "" {
				return fmt.Errorf("give the list either as an argument or with -l, not both")
			}
			opts.ListFile = args[0]
		}
		if opts.ListFile == "" && opts.Descriptor == "" {
			_ = cmd.Help()
			return fmt.Errorf("descriptors required: pass a list file, -l, or -d")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runner.Run(ctx, &opts)
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <descriptor> [flags]",
	Short: "List a directory on one target",
	Long:  `ls resolves a single "proxy | target" descriptor and prints the listing of --path.`,
	Example: `  proxyftp ls "socks5://10.0.0.1:1080 | 10.0.0.2"
  proxyftp ls "10.0.0.1:1080 | ftp://10.0.0.2:2121/" --path /pub -U alice -P secret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts.Descriptor = args[0]
		ctx, cancel := signalContext()
		defer cancel()
		return runner.List(ctx, &opts)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <descriptor> <file> [flags]",
	Short: "Download one file from a target",
	Long: `get resolves a single descriptor and downloads <file> from --path. The
file is written only after the whole transfer succeeded.`,
	Example: `  proxyftp get "socks5://10.0.0.1:1080 | 10.0.0.2" readme.txt --path /pub
  proxyftp get "socks4://10.0.0.1:4145 | 10.0.0.2" dump.sql -O - > dump.sql`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts.Descriptor, opts.Filename = args[0], args[1]
		ctx, cancel := signalContext()
		defer cancel()
		return runner.Get(ctx, &opts)
	},
}

func init() {
	f := scanCmd.Flags()

	// Input
	f.StringVarP(&opts.ListFile, "list", "l", "", "File with one descriptor per line (- = stdin)")
	f.StringVarP(&opts.Descriptor, "descriptor", "d", "", "Scan a single descriptor line")

	// Performance
	f.IntVarP(&opts.Threads, "threads", "t", opts.Threads, "Descriptors resolved concurrently")
	f.DurationVar(&opts.TargetTimeout, "target-timeout", 0, "Bound on one descriptor including fallback (0 = none)")
	f.DurationVar(&opts.Delay, "delay", 0, "Minimum spacing between attempts on the same proxy")
	f.IntVar(&opts.Burst, "burst", opts.Burst, "Attempts allowed on one proxy before --delay applies")

	// Filtering
	f.StringSliceVarP(&opts.IncludeStatus, "include-status", "i", nil, "Only show these statuses (success, dead-proxy, auth-failure, timeout, failure)")
	f.StringSliceVarP(&opts.ExcludeStatus, "exclude-status", "x", nil, "Hide these statuses")
	f.IntVar(&opts.MinFiles, "min-files", 0, "Hide successful listings with fewer entries")
	f.StringVar(&opts.MatchName, "match-name", "", "Only show listings with an entry name containing this string")
	f.StringVar(&opts.ExcludeName, "exclude-name", "", "Hide listings with an entry name containing this string")
	f.IntVar(&opts.Unique, "unique", 0, "Show at most N results per target and status (0 = all)")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", opts.OutputFormat, "Output format: text, json, csv")
	f.StringVar(&opts.SortBy, "sort", "", "Sort results: status, target, elapsed (buffers until scan completes)")
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command per result; {target} etc. expand to PROXYFTP_* variables, JSON on stdin")

	scanCmd.SetHelpFunc(groupedHelp(append([]flagGroup{
		{"INPUT", []string{"list", "descriptor"}},
		{"RATE-LIMIT", []string{"threads", "target-timeout", "delay", "burst"}},
		{"FILTERS", []string{"include-status", "exclude-status", "min-files", "match-name", "exclude-name", "unique"}},
		{"OUTPUT", []string{"output", "format", "sort", "on-result"}},
	}, commonGroups...)))

	getCmd.Flags().StringVarP(&opts.SaveAs, "save-as", "O", "", "Local file to write (- = stdout, default: remote base name)")
	getCmd.SetHelpFunc(groupedHelp(append([]flagGroup{{"OUTPUT", []string{"save-as"}}}, commonGroups...)))
	lsCmd.SetHelpFunc(groupedHelp(commonGroups))
}
