package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/searchcv/internal/config"
	"github.com/YuminosukeSato/searchcv/internal/dataset"
	"github.com/YuminosukeSato/searchcv/internal/telemetry"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
	"github.com/YuminosukeSato/searchcv/report"
	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

type runFlags struct {
	save        bool
	outDir      string
	filename    string
	metricsAddr string
	plot        string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured searches",
		Long: `Run loads the dataset named in the configuration, searches every
estimator in order and prints a summary. With --save the aggregate record
is written to <output dir>/<filename>.`,
		Example: `  searchcv run -c searchcv.yaml
  searchcv run -c searchcv.yaml --save --plot scores.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.save, "save", false, "Save the aggregate record (overrides output.save)")
	cmd.Flags().StringVarP(&flags.outDir, "output", "o", "", "Directory for the results file (overrides output.dir)")
	cmd.Flags().StringVar(&flags.filename, "filename", "", "Results file name (overrides output.filename)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().StringVar(&flags.plot, "plot", "", "Write a cv-score box plot to this image file")

	return cmd
}

func runSearch(cmd *cobra.Command, opts *rootOptions, flags *runFlags) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg, opts, flags)

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(cfg.Data.Path, dataset.Options{
		Target: cfg.Data.Target,
		Header: cfg.Data.Header,
		Comma:  cfg.CommaRune(),
	})
	if err != nil {
		return err
	}
	logger.Info("Dataset loaded",
		log.SamplesKey, ds.Rows(),
		log.FeaturesKey, len(ds.Features),
		"data.target", ds.Target,
	)

	store := ms.NewFileStore(cfg.Output.Dir)
	store.Logger = logger
	searchOpts, err := cfg.SearchOptions()
	if err != nil {
		return err
	}
	searchOpts = append(searchOpts, ms.WithLogger(logger), ms.WithStore(store))

	if cfg.Metrics.Addr != "" {
		metrics, err := telemetry.New(nil)
		if err != nil {
			return err
		}
		shutdown := serveMetrics(cfg.Metrics.Addr, metrics.Handler(), logger)
		defer shutdown()
		searchOpts = append(searchOpts, ms.WithObserver(metrics))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msc := cfg.MultiSearchConfig()
	record, runErr := ms.NewMultiSearch(msc, searchOpts...).RunContext(ctx, ds.X, ds.Y)
	if record == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Summary(record, opts.styles(out)))
	if runErr != nil {
		return runErr
	}
	if msc.SaveJob {
		fmt.Fprintf(out, "saved %s\n", resultsPath(cfg.Output.Dir, msc.Filename, record))
	}

	if flags.plot != "" {
		if err := report.PlotCVScores(record, flags.plot); err != nil {
			return err
		}
		fmt.Fprintf(out, "plot %s\n", flags.plot)
	}
	return nil
}

// applyRunFlags layers explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts *rootOptions, flags *runFlags) {
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if cmd.Flags().Changed("save") {
		cfg.Output.Save = flags.save
	}
	if flags.outDir != "" {
		cfg.Output.Dir = flags.outDir
	}
	if flags.filename != "" {
		cfg.Output.Filename = flags.filename
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Addr = flags.metricsAddr
	}
}

func resultsPath(dir, filename string, record *ms.AggregateRecord) string {
	if filename == "" {
		filename = ms.DefaultFilename(record)
	}
	if filepath.IsAbs(filename) || dir == "" {
		return filename
	}
	return filepath.Join(dir, filename)
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, handler http.Handler, logger log.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "http.addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
