package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxvaer/proxyftp/internal/config"
	"github.com/maxvaer/proxyftp/internal/descriptor"
	"github.com/maxvaer/proxyftp/internal/filter"
	"github.com/maxvaer/proxyftp/internal/hook"
	"github.com/maxvaer/proxyftp/internal/logger"
	"github.com/maxvaer/proxyftp/internal/output"
	"github.com/maxvaer/proxyftp/internal/scanner"
	"github.com/maxvaer/proxyftp/pkg/version"
)

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// env is what every command needs: a logger and a resolver built from opts.
type env struct {
	log      *logrus.Logger
	closeLog io.Closer
	resolver *scanner.Resolver
}

func newEnv(opts *config.Options) (*env, error) {
	log, closer, err := logger.New(logger.Config{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
		File:   opts.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	prober := &scanner.Prober{
		Port:             opts.Port,
		Timeout:          opts.Timeout,
		DisableEPSV:      opts.DisableEPSV,
		MaxRetrieveBytes: opts.MaxRetrieveBytes,
		Logger:           log,
	}
	if opts.User != "" {
		prober.Credentials = &scanner.Credentials{User: opts.User, Password: opts.Password}
	}
	if opts.Trace {
		prober.Trace = stderr
	}

	resolver := scanner.NewResolver(prober, scanner.TunnelFactory(opts.ConnectTimeout), log)
	resolver.PreCheck = !opts.NoPreCheck
	if opts.HealthTimeout > 0 {
		resolver.HealthTimeout = opts.HealthTimeout
	}
	return &env{log: log, closeLog: closer, resolver: resolver}, nil
}

func (e *env) Close() { _ = e.closeLog.Close() }

// Run executes a batch scan over the descriptor list and writes the report.
func Run(ctx context.Context, opts *config.Options) error {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	// 1. Load descriptors.
	descriptors, loaded, err := loadDescriptors(opts)
	if err != nil {
		return err
	}
	if loaded.Skipped > 0 || loaded.Duplicates > 0 {
		e.log.WithFields(logrus.Fields{"skipped": loaded.Skipped, "duplicates": loaded.Duplicates}).
			Debug("ignored descriptor lines")
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("no valid descriptors (skipped %d lines)", loaded.Skipped)
	}

	// 2. Build filter chain.
	chain, err := buildChain(opts)
	if err != nil {
		return err
	}

	// 3. Create output writer.
	out, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer out.Close()

	if err := out.WriteHeader(); err != nil {
		return err
	}

	if !opts.Quiet {
		printBanner(opts, len(descriptors), loaded)
	}

	// 4. Pause toggle, unless stdin carries the descriptor list.
	var pauser *scanner.Pauser
	if opts.ListFile != "-" {
		var cleanup func()
		pauser, cleanup = startStdinToggle(opts.Quiet)
		defer cleanup()
	}

	var hookRunner *hook.Runner
	if opts.OnResultCmd != "" {
		hookRunner = hook.NewRunner(opts.OnResultCmd, opts.Quiet, e.log)
	}

	progress := output.NewProgress(len(descriptors), opts.Quiet, pauser)
	progress.Start()
	defer progress.Stop()
	startTime := time.Now()

	stats := output.Stats{Total: len(descriptors), Dropped: loaded.Skipped, Duplicates: loaded.Duplicates}
	var writeErr error

	// 5. Scan. onProgress runs on the collecting goroutine, in completion
	// order.
	results := scanner.Scan(ctx, descriptors, scanner.ScanConfig{
		Resolver:      e.resolver,
		Path:          opts.Path,
		Threads:       opts.Threads,
		TargetTimeout: opts.TargetTimeout,
		Throttler:     scanner.NewThrottler(opts.Delay, opts.Burst),
		Pauser:        pauser,
		Logger:        e.log,
	}, func(_, _ int, r scanner.Result) {
		progress.Increment(r.Outcome.Status)
		stats.Count(&r)

		if filtered, reason := chain.Apply(&r); filtered {
			stats.FilteredCount++
			progress.IncrementFiltered()
			e.log.WithFields(logrus.Fields{"target": r.Descriptor.Target(), "filter": reason}).Debug("result filtered")
			return
		}

		progress.ClearLine()
		if err := out.WriteResult(&r); err != nil && writeErr == nil {
			writeErr = err
		}
		progress.Redraw()
		stats.Reported++

		if hookRunner != nil {
			hookRunner.Run(ctx, &r)
		}
	})
	progress.Stop()

	if writeErr != nil {
		return fmt.Errorf("writing results: %w", writeErr)
	}

	// 6. Write footer.
	stats.Duration = time.Since(startTime)
	if stats.Duration.Seconds() > 0 {
		stats.TargetsPerSec = float64(len(results)) / stats.Duration.Seconds()
	}
	if ctx.Err() != nil && !opts.Quiet {
		fmt.Fprintf(stderr, "[!] Scan interrupted after %d/%d targets\n", len(results), len(descriptors))
	}
	return out.WriteFooter(stats)
}

// List resolves the single descriptor and prints the listing of opts.Path.
func List(ctx context.Context, opts *config.Options) error {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := singleDescriptor(opts)
	if err != nil {
		return err
	}

	out := e.resolver.Resolve(ctx, d, opts.Path)
	if !out.OK() {
		return fmt.Errorf("%s: %s", out.Status, out.Error)
	}
	if !opts.Quiet {
		fmt.Fprintf(stderr, "[+] %s reachable via %s in %s\n",
			d.Name(), out.WorkingVersion, out.Elapsed.Round(time.Millisecond))
	}
	return output.PrintListing(stdout, displayPath(opts.Path), out.Listing, opts.NoColor)
}

// Get resolves the single descriptor and downloads opts.Filename from
// opts.Path. The file is written only when the whole transfer succeeded.
func Get(ctx context.Context, opts *config.Options) error {
	if opts.Filename == "" {
		return fmt.Errorf("remote file name required")
	}
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	d, err := singleDescriptor(opts)
	if err != nil {
		return err
	}

	start := time.Now()
	data, v, err := e.resolver.Fetch(ctx, d, opts.Path, opts.Filename)
	if err != nil {
		return fmt.Errorf("%s: %w", scanner.Classify(err), err)
	}

	dest := saveTarget(opts)
	if dest == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("saving %s: %w", dest, err)
	}
	if !opts.Quiet {
		fmt.Fprintf(stderr, "[+] %s: %d bytes via %s in %s -> %s\n",
			opts.Filename, len(data), v, time.Since(start).Round(time.Millisecond), dest)
	}
	return nil
}

func loadDescriptors(opts *config.Options) ([]descriptor.Descriptor, descriptor.LoadStats, error) {
	if opts.ListFile != "" {
		ds, stats, err := descriptor.Load(opts.ListFile)
		if err != nil {
			return nil, stats, fmt.Errorf("loading descriptors: %w", err)
		}
		return ds, stats, nil
	}
	if opts.Descriptor != "" {
		ds, stats := descriptor.ParseLines([]string{opts.Descriptor})
		return ds, stats, nil
	}
	return nil, descriptor.LoadStats{}, fmt.Errorf("no descriptors specified (list file, -l or -d)")
}

func singleDescriptor(opts *config.Options) (descriptor.Descriptor, error) {
	d, ok := descriptor.Parse(opts.Descriptor)
	if !ok {
		return descriptor.Descriptor{}, fmt.Errorf("invalid descriptor %q, expected 'socks5://proxy:port | target'", opts.Descriptor)
	}
	return d, nil
}

func buildChain(opts *config.Options) (*filter.Chain, error) {
	chain := filter.NewChain()
	if len(opts.IncludeStatus) > 0 || len(opts.ExcludeStatus) > 0 {
		sf, err := filter.ParseStatusFilter(opts.IncludeStatus, opts.ExcludeStatus)
		if err != nil {
			return nil, err
		}
		chain.Add(sf)
	}
	if opts.MinFiles > 0 {
		chain.Add(filter.NewMinFilesFilter(opts.MinFiles))
	}
	if opts.MatchName != "" {
		chain.Add(filter.NewNameMatchFilter(opts.MatchName))
	}
	if opts.ExcludeName != "" {
		chain.Add(filter.NewNameExcludeFilter(opts.ExcludeName))
	}
	if opts.Unique > 0 {
		chain.Add(filter.NewDuplicateFilter(opts.Unique))
	}
	return chain, nil
}

// createWriter picks the report format. Machine-readable reports of a
// parallel scan are replayed in input order unless --sort asks otherwise.
func createWriter(opts *config.Options) (output.Writer, error) {
	var w output.Writer
	var err error
	switch opts.OutputFormat {
	case "json":
		w, err = output.NewJSONWriter(opts.OutputFile)
	case "csv":
		w, err = output.NewCSVWriter(opts.OutputFile)
	default:
		w, err = output.NewTextWriter(opts.OutputFile, opts.NoColor, opts.Quiet)
	}
	if err != nil {
		return nil, err
	}
	if opts.SortBy != "" || (opts.Threads > 1 && opts.OutputFormat != "text") {
		w = output.NewSortedWriter(w, opts.SortBy)
	}
	return w, nil
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func saveTarget(opts *config.Options) string {
	if opts.SaveAs != "" {
		return opts.SaveAs
	}
	return path.Base(opts.Filename)
}

func versionLabel() string {
	v := version.Version
	if v != "dev" && v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func printBanner(opts *config.Options, targets int, loaded descriptor.LoadStats) {
	const (
		cyan   = "\033[36m"
		white  = "\033[97m"
		dim    = "\033[2m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	c, w, d, y, rs := cyan, white, dim, yellow, reset
	if opts.NoColor {
		c, w, d, y, rs = "", "", "", "", ""
	}

	fmt.Fprintf(stderr, "\n%s  proxyftp%s %s%s%s\n", c, rs, d, versionLabel(), rs)
	fmt.Fprintf(stderr, "%s  FTP probing through SOCKS4/5 proxies%s\n", w, rs)
	fmt.Fprintf(stderr, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(stderr, "  %sTargets:%s      %s%d%s", d, rs, w, targets, rs)
	var ignored []string
	if loaded.Skipped > 0 {
		ignored = append(ignored, fmt.Sprintf("%d lines skipped", loaded.Skipped))
	}
	if loaded.Duplicates > 0 {
		ignored = append(ignored, fmt.Sprintf("%d duplicates", loaded.Duplicates))
	}
	if len(ignored) > 0 {
		fmt.Fprintf(stderr, " %s(%s)%s", d, strings.Join(ignored, ", "), rs)
	}
	fmt.Fprintln(stderr)
	fmt.Fprintf(stderr, "  %sThreads:%s      %s%d%s\n", d, rs, y, opts.Threads, rs)
	fmt.Fprintf(stderr, "  %sPath:%s         %s%s%s\n", d, rs, w, displayPath(opts.Path), rs)
	fmt.Fprintf(stderr, "  %sTimeout:%s      %s%s%s\n", d, rs, w, opts.Timeout, rs)
	if opts.User != "" {
		fmt.Fprintf(stderr, "  %sLogin:%s        %s%s%s\n", d, rs, w, opts.User, rs)
	}
	if opts.Delay > 0 {
		fmt.Fprintf(stderr, "  %sProxy delay:%s  %s%s%s\n", d, rs, w, opts.Delay, rs)
	}
	fmt.Fprintf(stderr, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
