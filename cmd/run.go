// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	expurgate "github.com/expurgator/go-expurgate"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for expurgator binary
type CLI struct {
	Input         string           `short:"i" required:"" type:"path" help:"Path to the archive."`
	CSV           string           `name:"csv" required:"" type:"path" help:"CSV file that lists the entries to remove."`
	Index         int              `required:"" help:"Zero-based CSV column that holds the entry paths."`
	WithHeaders   bool             `help:"Skip the first CSV record."`
	Output        string           `short:"o" type:"path" help:"Output path. (default: replace the input)"`
	Compression   int              `short:"c" default:"6" help:"Compression level of the output, 0 (store) to 9 (best)."`
	CacheInMemory bool             `help:"Spool a zip archive from a pipe into memory instead of a temporary file."`
	MaxInputSize  int64            `optional:"" default:"-1" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	Yes           bool             `short:"y" help:"Do not ask for confirmation."`
	Metrics       bool             `short:"M" optional:"" default:"false" help:"Print metrics to log after the run."`
	Verbose       bool             `short:"v" optional:"" help:"Verbose logging."`
	Config        kong.ConfigFlag  `help:"YAML file with flag defaults."`
	Version       kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Run the entrypoint into expurgator as a cli tool
func Run(version, commit, date string) {
	vars := kong.Vars{
		"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
	}
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, vars, os.Exit))
}

// notifyContext cancels the run on SIGINT and SIGTERM. It is registered after
// the confirmation prompt, so that a signal during the prompt ends the process.
var notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// run parses args, asks for confirmation on in and filters the archive. It
// returns the exit code.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer, vars kong.Vars, exit func(int)) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("expurgator"),
		kong.Description("Remove the entries listed in a CSV file from an archive"),
		kong.UsageOnError(),
		kong.Configuration(yamlLoader, defaultConfigPath),
		kong.Writers(out, errOut),
		kong.Exit(exit),
		vars,
	)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	red := color.New(color.FgRed).SprintFunc()
	fail := func(err error) int {
		fmt.Fprintf(errOut, "%s %s\n", red("error:"), err)
		return 1
	}

	// validate before any file is read
	if err := expurgate.CompressionLevel(cli.Compression).Validate(); err != nil {
		return fail(err)
	}

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// load filter
	values, err := expurgate.ReadFilterColumnFile(cli.CSV, cli.Index, cli.WithHeaders)
	if err != nil {
		return fail(err)
	}
	set := expurgate.NewFilterSet(values...)

	// ask for confirmation
	if !cli.Yes {
		ok, err := confirm(in, out, values, cyan)
		if err != nil {
			return fail(err)
		}
		if !ok {
			return fail(errors.New("stopped by user"))
		}
	}

	ctx, stop := notifyContext(ctx)
	defer stop()

	// setup hooks
	seen := make(map[string]bool, set.Len())
	entryHook := func(ctx context.Context, ev expurgate.EntryEvent) {
		if !ev.Kept {
			seen[ev.Path] = true
		}
	}
	var td *expurgate.TelemetryData
	telemetryHook := func(ctx context.Context, d *expurgate.TelemetryData) {
		td = d
		if cli.Metrics {
			logger.Info("run finished", "metrics", d)
		}
	}

	// process cli params
	config := expurgate.NewConfig(
		expurgate.WithCacheInMemory(cli.CacheInMemory),
		expurgate.WithCompressionLevel(cli.Compression),
		expurgate.WithEntryHook(entryHook),
		expurgate.WithLogger(logger),
		expurgate.WithMaxInputSize(cli.MaxInputSize),
		expurgate.WithTelemetryHook(telemetryHook),
	)

	// filter archive
	if err := expurgate.File(ctx, cli.Input, cli.Output, set, config); err != nil {
		return fail(errors.Wrap(err, "cannot filter archive"))
	}

	// summary
	target := cli.Output
	if target == "" {
		target = cli.Input
	}
	if td != nil {
		fmt.Fprintf(out, "%s %s written to %s: %d entries kept, %d removed\n",
			green("done:"), td.Format, target, td.EntriesKept, td.EntriesDropped)
	}
	if unmatched := set.Unmatched(seen); len(unmatched) > 0 {
		fmt.Fprintf(out, "%s %d filter paths not found in archive:\n", yellow("warning:"), len(unmatched))
		for _, p := range unmatched {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return 0
}

// confirm shows the number of records and the first value and waits for a
// yes/no answer on in. Anything but yes is a no.
func confirm(in io.Reader, out io.Writer, values []string, highlight func(a ...interface{}) string) (bool, error) {
	first := "<none>"
	if len(values) > 0 {
		first = values[0]
	}
	fmt.Fprintf(out, "File contains %s records, first value:\n%s\n", highlight(len(values)), highlight(first))
	fmt.Fprint(out, "Is this correct? [y/N] ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "cannot read answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
