package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/metrics"
)

// Status is the outcome of one telescope file.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FileReport describes what happened to one telescope file.
type FileReport struct {
	Source   string
	Artifact string // empty unless Status is written
	Status   Status
	Err      error
	Result   *Result
}

// Report collects the per-file outcomes of one Run, in input file order.
type Report struct {
	Offset    time.Duration
	OutputDir string
	Files     []FileReport
}

// Count returns the number of files with the given status.
func (r Report) Count(s Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// InputFiles lists the telescope files (*.csv) in dir, sorted.
func InputFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Run compares every telescope file in inputDir at one offset and writes one
// artifact per file into outputDir. Files are processed by a fixed pool of
// workers. A failing file is recorded in the report and does not stop the
// others; the returned error is reserved for problems affecting the whole
// run.
func (c *Comparator) Run(ctx context.Context, inputDir, outputDir string, offset time.Duration) (Report, error) {
	files, err := InputFiles(inputDir)
	if err != nil {
		return Report{}, err
	}
	return c.RunFiles(ctx, files, outputDir, offset)
}

type fileJob struct {
	index int
	path  string
}

// RunFiles is Run over an explicit file list.
func (c *Comparator) RunFiles(ctx context.Context, files []string, outputDir string, offset time.Duration) (Report, error) {
	report := Report{
		Offset:    offset,
		OutputDir: outputDir,
		Files:     make([]FileReport, len(files)),
	}
	if len(files) == 0 {
		c.logger.Warn("no telescope files to compare", "output", outputDir)
		return report, nil
	}

	jobs := make(chan fileJob, c.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Each worker writes only its own slot.
				report.Files[job.index] = c.processFile(ctx, job.path, outputDir, offset)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range files {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	c.logger.Info("comparison run complete",
		"offset_ms", OffsetMillis(offset),
		"output", outputDir,
		"written", report.Count(StatusWritten),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
	)
	return report, nil
}

func (c *Comparator) processFile(ctx context.Context, path, outputDir string, offset time.Duration) FileReport {
	fr := FileReport{Source: path}

	res, err := c.Compare(ctx, path, offset)
	switch {
	case errors.Is(err, catalog.ErrUnrecognizedSatellite), errors.Is(err, catalog.ErrAmbiguousSatellite):
		c.logger.Warn("skipping telescope file", "file", path, "error", err)
		fr.Status, fr.Err = StatusSkipped, err
		metrics.RecordFile(string(StatusSkipped))
		return fr
	case err != nil:
		c.logger.Error("comparison failed", "file", path, "offset_ms", OffsetMillis(offset), "error", err)
		fr.Status, fr.Err = StatusFailed, err
		metrics.RecordFile(string(StatusFailed))
		return fr
	}

	artifact := filepath.Join(outputDir, ArtifactName(offset, path))
	err = writeExtrapolated(artifact, res)
	if err == nil {
		err = writeFileAtomic(artifact, func(w io.Writer) error {
			return WriteArtifact(w, res)
		})
	}
	if err != nil {
		c.logger.Error("writing artifact failed", "file", path, "artifact", artifact, "error", err)
		fr.Status, fr.Err = StatusFailed, err
		metrics.RecordFile(string(StatusFailed))
		return fr
	}

	metrics.RecordFile(string(StatusWritten))
	metrics.AddRecords(len(res.Records), res.Extrapolated())
	c.logger.Debug("artifact written",
		"file", path,
		"satellite", res.Satellite,
		"key", res.Product,
		"artifact", artifact,
		"records", len(res.Records),
	)

	fr.Status, fr.Artifact, fr.Result = StatusWritten, artifact, res
	return fr
}

// writeExtrapolated writes the sidecar for artifact, or removes a stale one
// when no record was extrapolated.
func writeExtrapolated(artifact string, res *Result) error {
	path := ExtrapolatedName(artifact)
	if res.Extrapolated() == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing stale %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteExtrapolated(w, res)
	})
}
