// Package telescope reads measured RA/Dec observation files.
package telescope

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedInput is returned for files missing expected columns or
// carrying unparseable values. It is fatal to that file only.
var ErrMalformedInput = errors.New("malformed observation file")

// Observation is one telescope measurement.
type Observation struct {
	Time   time.Time // UTC
	RADeg  float64
	DecDeg float64
}

// Columns gives the zero-based positions of the fields used.
type Columns struct {
	Time int `yaml:"time"`
	RA   int `yaml:"ra"`
	Dec  int `yaml:"dec"`
}

// DefaultColumns matches the ROO reduction pipeline output.
var DefaultColumns = Columns{Time: 0, RA: 3, Dec: 4}

// Validate checks the indexes are usable.
func (c Columns) Validate() error {
	if c.Time < 0 || c.RA < 0 || c.Dec < 0 {
		return fmt.Errorf("column indexes must be non-negative: %+v", c)
	}
	if c.Time == c.RA || c.Time == c.Dec || c.RA == c.Dec {
		return fmt.Errorf("column indexes must be distinct: %+v", c)
	}
	return nil
}

func (c Columns) max() int {
	return max(c.Time, c.RA, c.Dec)
}

// Timestamps without a zone are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an ISO-8601 timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Read parses an observation file: one header row, then one row per
// measurement. Rows are returned in file order. A file with a header but no
// rows yields an empty slice.
func Read(r io.Reader, cols Columns) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing header row", ErrMalformedInput)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var out []Observation
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) <= cols.max() {
			return nil, fmt.Errorf("%w: line %d: %d columns, need %d", ErrMalformedInput, line, len(row), cols.max()+1)
		}

		t, err := ParseTime(row[cols.Time])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, line, err)
		}
		ra, err := parseAngle(row[cols.RA])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: ra: %v", ErrMalformedInput, line, err)
		}
		dec, err := parseAngle(row[cols.Dec])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: dec: %v", ErrMalformedInput, line, err)
		}
		out = append(out, Observation{Time: t, RADeg: ra, DecDeg: dec})
	}
	return out, nil
}

// ReadFile opens and parses path.
func ReadFile(path string, cols Columns) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obs, err := Read(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

func parseAngle(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Shift returns a copy of obs with every timestamp moved by offset.
func Shift(obs []Observation, offset time.Duration) []Observation {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		o.Time = o.Time.Add(offset)
		out[i] = o
	}
	return out
}
