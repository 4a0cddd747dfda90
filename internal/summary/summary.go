// Package summary reduces comparison results to per-file statistics and
// keeps them in a SQLite index across runs.
package summary

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pupper42/roo-analysis/internal/compare"
)

// Summary is the reduction of one telescope file at one offset.
// Angles are arcseconds; std is the population standard deviation.
type Summary struct {
	RunID        string
	Source       string
	Artifact     string
	Satellite    string
	Product      string
	Offset       time.Duration
	Status       compare.Status
	Error        string
	Records      int
	Extrapolated int
	RAMean       float64
	RAStd        float64
	DecMean      float64
	DecStd       float64
	// Norm is the length of (RAMean, DecMean).
	Norm float64
}

// Summarize computes the statistics of one result.
func Summarize(res *compare.Result) Summary {
	s := Summary{
		Source:       res.Source,
		Satellite:    res.Satellite,
		Product:      res.Product,
		Offset:       res.Offset,
		Status:       compare.StatusWritten,
		Records:      len(res.Records),
		Extrapolated: res.Extrapolated(),
	}
	if len(res.Records) == 0 {
		return s
	}

	ra := make([]float64, len(res.Records))
	dec := make([]float64, len(res.Records))
	for i, rec := range res.Records {
		ra[i], dec[i] = rec.RADiff, rec.DecDiff
	}
	s.RAMean, s.RAStd = stat.PopMeanStdDev(ra, nil)
	s.DecMean, s.DecStd = stat.PopMeanStdDev(dec, nil)
	s.Norm = math.Hypot(s.RAMean, s.DecMean)
	return s
}

// FromReport summarizes every file of a run, including skipped and failed
// ones.
func FromReport(r compare.Report) []Summary {
	out := make([]Summary, 0, len(r.Files))
	for _, f := range r.Files {
		var s Summary
		if f.Result != nil {
			s = Summarize(f.Result)
		} else {
			s = Summary{Source: f.Source, Offset: r.Offset}
		}
		s.Artifact = f.Artifact
		s.Status = f.Status
		if f.Err != nil {
			s.Error = f.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

// Sort orders summaries by satellite, then offset, then source.
func Sort(rows []Summary) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Satellite != b.Satellite {
			return a.Satellite < b.Satellite
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Source < b.Source
	})
}

// WriteTable renders rows as an aligned text table.
func WriteTable(w io.Writer, rows []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SATELLITE\tOFFSET\tSTATUS\tRECORDS\tEXTRAP\tRA MEAN\tRA STD\tDEC MEAN\tDEC STD\tNORM\tSOURCE")
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			s.Satellite, compare.OffsetLabel(s.Offset), s.Status, s.Records, s.Extrapolated,
			s.RAMean, s.RAStd, s.DecMean, s.DecStd, s.Norm, s.Source)
	}
	return tw.Flush()
}
