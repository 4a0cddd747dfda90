package compare

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Header is the first row of every comparison artifact.
var Header = []string{"Timestamp", "Telescope RA", "Telescope DEC", "Ephemeris RA", "Ephemeris DEC", "RA Difference", "DEC Difference"}

// Record pairs one telescope measurement with the predicted position.
type Record struct {
	Time         time.Time // offset-adjusted, UTC
	TelescopeRA  float64   // degrees
	TelescopeDec float64
	EphemerisRA  float64
	EphemerisDec float64
	RangeKm      float64
	RADiff       float64 // arcseconds, predicted − measured
	DecDiff      float64
	// Extrapolated is set when the ephemeris was evaluated outside its
	// sampled span.
	Extrapolated bool
}

// Result is the comparison of one telescope file.
type Result struct {
	Source    string
	Satellite string
	Product   string // ephemeris file name, empty when there were no rows
	Offset    time.Duration
	Records   []Record
}

// Extrapolated counts flagged records.
func (r *Result) Extrapolated() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Extrapolated {
			n++
		}
	}
	return n
}

// OffsetMillis returns d in whole milliseconds, rounded half away from zero.
func OffsetMillis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

// OffsetLabel names an offset as signed integer milliseconds, e.g. "-200ms",
// "0ms", "1000ms".
func OffsetLabel(d time.Duration) string {
	return strconv.FormatInt(OffsetMillis(d), 10) + "ms"
}

// ArtifactName returns the output file name for a source file at an offset.
func ArtifactName(offset time.Duration, source string) string {
	return OffsetLabel(offset) + "_compared_" + filepath.Base(source)
}

// angleDiff returns a − b in arcseconds. Right ascension differences are
// taken across the 0/360 seam the short way round.
func angleDiff(a, b float64, wrap bool) float64 {
	d := a - b
	if wrap {
		d = math.Mod(d+540, 360) - 180
	}
	return d * 3600
}

// WriteArtifact writes the result as CSV: the header then one row per
// record. Timestamps are milliseconds since the Unix epoch.
func WriteArtifact(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	row := make([]string, len(Header))
	for _, rec := range r.Records {
		row[0] = formatFloat(float64(rec.Time.UnixNano()) / 1e6)
		row[1] = formatFloat(rec.TelescopeRA)
		row[2] = formatFloat(rec.TelescopeDec)
		row[3] = formatFloat(rec.EphemerisRA)
		row[4] = formatFloat(rec.EphemerisDec)
		row[5] = formatFloat(rec.RADiff)
		row[6] = formatFloat(rec.DecDiff)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExtrapolatedHeader heads the sidecar listing extrapolated artifact rows.
var ExtrapolatedHeader = []string{"Row", "Timestamp"}

// ExtrapolatedName returns the sidecar path for an artifact. The sidecar
// exists only when at least one record was extrapolated.
func ExtrapolatedName(artifact string) string {
	return artifact + ".extrapolated"
}

// WriteExtrapolated lists the records whose prediction fell outside the
// ephemeris samples. Row is the 1-based data row of the artifact; Timestamp
// matches the artifact's first column.
func WriteExtrapolated(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExtrapolatedHeader); err != nil {
		return err
	}
	for i, rec := range r.Records {
		if !rec.Extrapolated {
			continue
		}
		row := []string{strconv.Itoa(i + 1), formatFloat(float64(rec.Time.UnixNano()) / 1e6)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeFileAtomic writes through a temp file in the destination directory
// and renames it into place, so an interrupted run never leaves a partial
// artifact under the final name.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
