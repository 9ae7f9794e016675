// Command segment scores a transaction file or table against a fitted model
// bundle and writes the labelled customer table as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/zatekoja/retailsegmentation/internal/adapters/database"
	"github.com/zatekoja/retailsegmentation/internal/adapters/tabular"
	"github.com/zatekoja/retailsegmentation/internal/application/services"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/internal/model"
	"github.com/zatekoja/retailsegmentation/internal/segmentation"
	"github.com/zatekoja/retailsegmentation/pkg/config"
)

type options struct {
	input     string
	source    string
	since     string
	until     string
	limit     int
	artifacts string
	output    string
	summary   bool
	quiet     bool
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "segment:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "input", "", "transaction CSV file")
	fs.StringVar(&opts.source, "source", "", `read transactions from "db" instead of a file`)
	fs.StringVar(&opts.since, "since", "", "first invoice date to read from the database (YYYY-MM-DD)")
	fs.StringVar(&opts.until, "until", "", "read database invoices before this date (YYYY-MM-DD)")
	fs.IntVar(&opts.limit, "limit", 0, "maximum database rows to read (0 = all)")
	fs.StringVar(&opts.artifacts, "artifacts", "", "model artifact directory (default ARTIFACTS_DIR)")
	fs.StringVar(&opts.output, "output", "", "output CSV file (stdout when empty)")
	fs.BoolVar(&opts.summary, "summary", false, "print the per-segment summary to stderr")
	fs.BoolVar(&opts.quiet, "quiet", false, "disable the progress bar")
	fs.BoolVar(&opts.verbose, "verbose", false, "log pipeline stages at debug level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case opts.input == "" && opts.source == "":
		return nil, errors.New("one of -input or -source db is required")
	case opts.input != "" && opts.source != "":
		return nil, errors.New("-input and -source are mutually exclusive")
	case opts.source != "" && opts.source != "db":
		return nil, fmt.Errorf("unknown -source %q (only \"db\" is supported)", opts.source)
	case opts.input != "" && (opts.since != "" || opts.until != "" || opts.limit != 0):
		return nil, errors.New("-since, -until and -limit apply to -source db only")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.artifacts == "" {
		opts.artifacts = cfg.Artifacts.Dir
	}

	observability.InitLogger("segment", cfg.Env)
	if !opts.verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	bar := newBar(opts.quiet, stderr)
	defer bar.Finish()

	bar.Describe("loading model")
	artifacts, err := model.LoadDir(opts.artifacts)
	if err != nil {
		return err
	}
	predictor, err := segmentation.NewBatchPredictor(artifacts)
	if err != nil {
		return err
	}
	_ = bar.Add(1)

	var result *entities.SegmentationRun
	if opts.source == "db" {
		bar.Describe("reading transactions")
		filter, err := buildFilter(opts)
		if err != nil {
			return err
		}
		repo, closer, err := database.OpenTransactionSource(cfg, nil)
		if err != nil {
			return err
		}
		defer closer.Close()
		_ = bar.Add(1)

		bar.Describe("segmenting")
		svc := services.NewSegmentationService(predictor, nil, repo, nil)
		if result, err = svc.SegmentFromStore(ctx, filter); err != nil {
			return err
		}
	} else {
		bar.Describe("reading transactions")
		rows, err := tabular.LoadTransactionsFile(opts.input)
		if err != nil {
			return err
		}
		_ = bar.Add(1)

		bar.Describe("segmenting")
		svc := services.NewSegmentationService(predictor, nil, nil, nil)
		if result, err = svc.Segment(ctx, rows, "file:"+filepath.Base(opts.input)); err != nil {
			return err
		}
	}
	_ = bar.Add(1)

	bar.Describe("writing results")
	if err := writeOutput(opts.output, stdout, result.Customers); err != nil {
		return err
	}
	_ = bar.Add(1)
	_ = bar.Finish()

	log.Info().
		Str("run_id", result.ID).
		Str("model_version", result.ModelVersion).
		Int("rows_read", result.RowsRead).
		Int("rows_cleaned", result.RowsCleaned).
		Int("customers", len(result.Customers)).
		Msg("segmentation finished")

	if opts.summary {
		return printSummary(stderr, result.Summary)
	}
	return nil
}

func newBar(quiet bool, w io.Writer) *progressbar.ProgressBar {
	const stages = 4
	if quiet {
		return progressbar.DefaultSilent(stages)
	}
	return progressbar.NewOptions(stages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func buildFilter(opts *options) (entities.TransactionFilter, error) {
	filter := entities.TransactionFilter{Limit: opts.limit}
	if opts.since != "" {
		t, err := time.ParseInLocation(time.DateOnly, opts.since, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("-since: %w", err)
		}
		filter.Since = &t
	}
	if opts.until != "" {
		t, err := time.ParseInLocation(time.DateOnly, opts.until, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("-until: %w", err)
		}
		filter.Until = &t
	}
	return filter, nil
}

func writeOutput(path string, stdout io.Writer, customers []entities.ScoredCustomer) error {
	if path == "" {
		return tabular.WriteCustomers(stdout, customers)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tabular.WriteCustomers(f, customers); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, summary []entities.SegmentSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tCLUSTERS\tCUSTOMERS\tMEAN MONETARY\tMEAN RECENCY\tMEAN FREQUENCY")
	for _, s := range summary {
		name := string(s.Segment)
		if name == "" {
			name = "(unlabelled)"
		}
		fmt.Fprintf(tw, "%s\t%v\t%d\t%.2f\t%.1f\t%.1f\n",
			name, s.Clusters, s.Count, s.MeanMonetary, s.MeanRecency, s.MeanFrequency)
	}
	return tw.Flush()
}
