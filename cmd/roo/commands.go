package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pupper42/roo-analysis/internal/compare"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/sp3"
	"github.com/pupper42/roo-analysis/internal/summary"
	"github.com/pupper42/roo-analysis/internal/sweep"
	"github.com/pupper42/roo-analysis/internal/telescope"
)

func newCompareCmd(a *app) *cobra.Command {
	var offsetMs int
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare every telescope file at one clock offset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := a.comparator()
			if err != nil {
				return err
			}
			run := summary.NewRun("compare", a.cfg.Kind)
			offset := time.Duration(offsetMs) * time.Millisecond

			report, err := cmp.Run(cmd.Context(), a.cfg.TelescopeDir, a.cfg.OutputDir, offset)
			if err != nil {
				return err
			}
			reports := []compare.Report{report}
			if err := a.record(cmd, run, reports); err != nil {
				return err
			}
			printReports(cmd, reports)
			return failures(reports)
		},
	}
	cmd.Flags().IntVar(&offsetMs, "offset-ms", 0, "Clock offset added to every telescope timestamp (ms)")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	var startMs, stopMs, stepMs int
	var list []int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compare every telescope file over a range of clock offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.cfg.Sweep
			if cmd.Flags().Changed("start-ms") {
				s.StartMs = startMs
			}
			if cmd.Flags().Changed("stop-ms") {
				s.StopMs = stopMs
			}
			if cmd.Flags().Changed("step-ms") {
				s.StepMs = stepMs
			}
			if cmd.Flags().Changed("offsets") {
				s.Offsets = list
			}

			var offsets []time.Duration
			var err error
			if len(s.Offsets) > 0 {
				offsets, err = sweep.List(s.Offsets)
			} else {
				offsets, err = sweep.Offsets(s.StartMs, s.StopMs, s.StepMs)
			}
			if err != nil {
				return err
			}

			cmp, err := a.comparator()
			if err != nil {
				return err
			}
			run := summary.NewRun("sweep", a.cfg.Kind)

			// Offsets share the comparator's file pool; a couple of offsets in
			// flight keeps it busy without multiplying memory.
			driver := sweep.NewDriver(cmp, a.cfg.TelescopeDir, a.cfg.OutputDir, 2, a.logger)
			reports, err := driver.Sweep(cmd.Context(), offsets)
			if err != nil {
				return err
			}
			if err := a.record(cmd, run, reports); err != nil {
				return err
			}
			printReports(cmd, reports)
			return failures(reports)
		},
	}
	f := cmd.Flags()
	f.IntVar(&startMs, "start-ms", 0, "First offset (ms)")
	f.IntVar(&stopMs, "stop-ms", 0, "Last offset (ms), inclusive")
	f.IntVar(&stepMs, "step-ms", 0, "Offset step (ms)")
	f.IntSliceVar(&list, "offsets", nil, "Explicit offsets (ms), overrides the range")
	return cmd
}

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate TIMESTAMP...",
		Short: "Print the cached ephemeris path for each timestamp, downloading as needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := a.locator()
			for _, arg := range args {
				t, err := telescope.ParseTime(arg)
				if err != nil {
					return err
				}
				path, err := loc.Locate(cmd.Context(), t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

func newTrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "track SATELLITE TIMESTAMP",
		Short: "Export geocentric and topocentric RA/Dec for every ephemeris epoch of a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sat := args[0]
			t, err := telescope.ParseTime(args[1])
			if err != nil {
				return err
			}
			obs, err := a.cfg.ObserverLocation()
			if err != nil {
				return err
			}
			frame, err := a.cfg.FrameModel()
			if err != nil {
				return err
			}

			product := ephemeris.ProductFor(a.cfg.EphemerisKind(), t)
			path, err := a.locator().Locate(cmd.Context(), t)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			prod, err := sp3.Parse(f, a.logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			series, err := prod.Extract(sat)
			if err != nil {
				return err
			}

			points := compare.Track(series, frame, obs)
			geo, topo, err := compare.WriteTrack(a.cfg.OutputDir, sat, product.Name(), points)
			if err != nil {
				return err
			}
			a.logger.Info("track exported", "satellite", sat, "key", product.Name(), "points", len(points))
			fmt.Fprintln(cmd.OutOrStdout(), geo)
			fmt.Fprintln(cmd.OutOrStdout(), topo)
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	var satellite, runID string
	var latest bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print RA/Dec difference statistics from the summary index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.SummaryDB == "" {
				return fmt.Errorf("no summary database configured (--summary-db)")
			}
			store := summary.NewStore(a.cfg.SummaryDB)
			defer store.Close()

			if latest {
				id, err := store.Latest(cmd.Context())
				if err != nil {
					return err
				}
				runID = id
			}
			rows, err := store.List(cmd.Context(), satellite, runID)
			if err != nil {
				return err
			}
			return summary.WriteTable(cmd.OutOrStdout(), rows)
		},
	}
	f := cmd.Flags()
	f.StringVar(&satellite, "satellite", "", "Only this satellite id (e.g. J01)")
	f.StringVar(&runID, "run", "", "Only this run id")
	f.BoolVar(&latest, "latest", false, "Only the most recent run")
	return cmd
}

func printReports(cmd *cobra.Command, reports []compare.Report) {
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "%s\t%s\twritten=%d skipped=%d failed=%d\n",
			compare.OffsetLabel(r.Offset), filepath.Clean(r.OutputDir),
			r.Count(compare.StatusWritten), r.Count(compare.StatusSkipped), r.Count(compare.StatusFailed))
	}
}
