// Package sweep runs the comparison over a range of telescope clock offsets.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pupper42/roo-analysis/internal/compare"
	"github.com/pupper42/roo-analysis/internal/metrics"
)

// Offsets returns start, start+step, ... up to and including stop when stop
// is reached exactly. All values are in milliseconds.
func Offsets(startMs, stopMs, stepMs int) ([]time.Duration, error) {
	if stepMs <= 0 {
		return nil, fmt.Errorf("sweep step must be positive, got %d", stepMs)
	}
	if stopMs < startMs {
		return nil, fmt.Errorf("sweep stop %d is before start %d", stopMs, startMs)
	}
	out := make([]time.Duration, 0, (stopMs-startMs)/stepMs+1)
	for ms := startMs; ms <= stopMs; ms += stepMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out, nil
}

// List converts explicit millisecond offsets, rejecting duplicates since two
// iterations would write the same partition.
func List(ms []int) ([]time.Duration, error) {
	seen := make(map[int]bool, len(ms))
	out := make([]time.Duration, 0, len(ms))
	for _, m := range ms {
		if seen[m] {
			return nil, fmt.Errorf("duplicate sweep offset %dms", m)
		}
		seen[m] = true
		out = append(out, time.Duration(m)*time.Millisecond)
	}
	return out, nil
}

// Runner compares every input file at one offset. *compare.Comparator
// satisfies it.
type Runner interface {
	RunFiles(ctx context.Context, files []string, outputDir string, offset time.Duration) (compare.Report, error)
}

// Driver runs sweep iterations. Iterations share only read-only inputs and
// write to disjoint partitions, so they run in parallel.
type Driver struct {
	runner      Runner
	inputDir    string
	outputDir   string
	parallelism int
	logger      *slog.Logger
}

// NewDriver creates a Driver writing partitions under outputDir.
// parallelism bounds how many offsets run at once.
func NewDriver(runner Runner, inputDir, outputDir string, parallelism int, logger *slog.Logger) *Driver {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Driver{
		runner:      runner,
		inputDir:    inputDir,
		outputDir:   outputDir,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Partition returns the output directory of one offset, e.g. <output>/-200ms.
func (d *Driver) Partition(offset time.Duration) string {
	return filepath.Join(d.outputDir, compare.OffsetLabel(offset))
}

// Sweep runs every offset and returns the reports in the order the offsets
// were given. Per-file failures are carried in the reports; an error is
// returned only when an iteration could not run at all.
func (d *Driver) Sweep(ctx context.Context, offsets []time.Duration) ([]compare.Report, error) {
	labels := make(map[string]bool, len(offsets))
	for _, off := range offsets {
		l := compare.OffsetLabel(off)
		if labels[l] {
			return nil, fmt.Errorf("offsets collide on partition %s", l)
		}
		labels[l] = true
	}

	files, err := compare.InputFiles(d.inputDir)
	if err != nil {
		return nil, err
	}
	d.logger.Info("sweep starting",
		"offsets", len(offsets),
		"files", len(files),
		"parallelism", d.parallelism,
		"output", d.outputDir,
	)

	reports := make([]compare.Report, len(offsets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for i, off := range offsets {
		g.Go(func() error {
			start := time.Now()
			report, err := d.runner.RunFiles(gctx, files, d.Partition(off), off)
			if err != nil {
				return fmt.Errorf("offset %s: %w", compare.OffsetLabel(off), err)
			}
			metrics.ObserveOffset(time.Since(start))
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Info("sweep complete", "offsets", len(offsets))
	return reports, nil
}
