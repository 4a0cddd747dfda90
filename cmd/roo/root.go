package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pupper42/roo-analysis/internal/compare"
	"github.com/pupper42/roo-analysis/internal/config"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/metrics"
	"github.com/pupper42/roo-analysis/internal/summary"
)

// app carries the resolved configuration and shared components of one
// command invocation.
type app struct {
	configPath string
	overrides  config.Config
	dut1Ms     float64

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "roo",
		Short:         "Compare telescope RA/Dec measurements with precise satellite ephemerides",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML configuration file")
	f.StringVar(&a.overrides.EphemerisDir, "ephemeris-dir", "", "Ephemeris cache directory")
	f.StringVar(&a.overrides.TelescopeDir, "telescope-dir", "", "Directory of telescope observation files (*.csv)")
	f.StringVar(&a.overrides.OutputDir, "output-dir", "", "Directory for comparison artifacts")
	f.StringVar(&a.overrides.Kind, "kind", "", "Ephemeris product kind (final, rapid)")
	f.StringVar(&a.overrides.Frame, "frame", "", "Frame model (celestial, identity)")
	f.Float64Var(&a.dut1Ms, "dut1-ms", 0, "UT1-UTC in milliseconds (IERS Bulletin A)")
	f.IntVar(&a.overrides.Order, "order", 0, "Lagrange interpolation order")
	f.IntVar(&a.overrides.Workers, "workers", 0, "Files compared in parallel")
	f.StringVar(&a.overrides.SummaryDB, "summary-db", "", "SQLite summary index")
	f.StringVar(&a.overrides.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	f.StringVar(&a.overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newCompareCmd(a),
		newSweepCmd(a),
		newLocateCmd(a),
		newTrackCmd(a),
		newReportCmd(a),
	)
	return root
}

// init resolves the configuration: defaults, then the YAML file, then ROO_*
// variables, then flags set on the command line.
func (a *app) init(cmd *cobra.Command) error {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(a.configPath)
	if err != nil {
		bootstrap.Error("invalid configuration file", "error", err)
		return err
	}
	cfg = config.ApplyEnv(cfg, bootstrap)

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("ephemeris-dir", func() { cfg.EphemerisDir = a.overrides.EphemerisDir })
	set("telescope-dir", func() { cfg.TelescopeDir = a.overrides.TelescopeDir })
	set("output-dir", func() { cfg.OutputDir = a.overrides.OutputDir })
	set("kind", func() { cfg.Kind = a.overrides.Kind })
	set("frame", func() { cfg.Frame = a.overrides.Frame })
	set("dut1-ms", func() { cfg.UT1MinusUTC = time.Duration(a.dut1Ms * float64(time.Millisecond)) })
	set("order", func() { cfg.Order = a.overrides.Order })
	set("workers", func() { cfg.Workers = a.overrides.Workers })
	set("summary-db", func() { cfg.SummaryDB = a.overrides.SummaryDB })
	set("metrics-file", func() { cfg.MetricsFile = a.overrides.MetricsFile })
	set("log-level", func() { cfg.LogLevel = a.overrides.LogLevel })

	if err := cfg.Validate(); err != nil {
		bootstrap.Error("invalid configuration", "error", err)
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	a.logger.Debug("configuration resolved",
		"ephemeris_dir", cfg.EphemerisDir,
		"telescope_dir", cfg.TelescopeDir,
		"output_dir", cfg.OutputDir,
		"kind", cfg.Kind,
		"dut1", cfg.UT1MinusUTC.String(),
		"order", cfg.Order,
		"workers", cfg.Workers,
	)
	return nil
}

// locator builds the cache-first ephemeris resolver.
func (a *app) locator() *ephemeris.Locator {
	fetcher := ephemeris.NewHTTPFetcher(a.cfg.FetcherConfig(), a.logger)
	return ephemeris.NewLocator(a.cfg.EphemerisDir, a.cfg.EphemerisKind(), fetcher, a.logger)
}

func (a *app) comparator() (*compare.Comparator, error) {
	cat, err := a.cfg.Catalog()
	if err != nil {
		return nil, err
	}
	obs, err := a.cfg.ObserverLocation()
	if err != nil {
		return nil, err
	}
	frame, err := a.cfg.FrameModel()
	if err != nil {
		return nil, err
	}

	store := ephemeris.NewStore(a.locator(), a.logger)
	return compare.New(compare.Config{
		Kind:     a.cfg.EphemerisKind(),
		Frame:    frame,
		Observer: obs,
		Order:    a.cfg.Order,
		Columns:  a.cfg.Columns,
		Workers:  a.cfg.Workers,
	}, cat, store, a.logger), nil
}

// record stores the reports in the summary index when one is configured.
func (a *app) record(cmd *cobra.Command, run summary.Run, reports []compare.Report) error {
	if a.cfg.SummaryDB == "" {
		return nil
	}
	var rows []summary.Summary
	for _, r := range reports {
		rows = append(rows, summary.FromReport(r)...)
	}

	store := summary.NewStore(a.cfg.SummaryDB)
	defer store.Close()
	if err := store.Record(cmd.Context(), run, rows); err != nil {
		a.logger.Error("recording summary failed", "db", a.cfg.SummaryDB, "error", err)
		return err
	}
	a.logger.Info("summary recorded", "db", a.cfg.SummaryDB, "run_id", run.ID, "rows", len(rows))
	return nil
}

func (a *app) writeMetrics() error {
	if a.cfg.MetricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.Error("writing metrics failed", "path", a.cfg.MetricsFile, "error", err)
		return err
	}
	return nil
}

// failures turns failed files into a command error so scripts see a non-zero
// exit status; artifacts of the other files are already written.
func failures(reports []compare.Report) error {
	n := 0
	for _, r := range reports {
		n += r.Count(compare.StatusFailed)
	}
	if n > 0 {
		return fmt.Errorf("%d file comparisons failed", n)
	}
	return nil
}
