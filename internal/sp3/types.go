package sp3

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pupper42/roo-analysis/internal/interp"
)

// GPSUTCOffset is GPS time minus UTC, fixed since the 2017 leap second.
const GPSUTCOffset = 18 * time.Second

// ErrSatelliteNotFound is returned when a product has no samples for a satellite.
var ErrSatelliteNotFound = errors.New("satellite not in ephemeris product")

// Sample is one position record, timestamped in the product's own time system.
type Sample struct {
	Time     time.Time
	Position r3.Vec // earth-fixed, km
}

// Product is a parsed SP3 orbit file. Read-only once parsed.
type Product struct {
	Version    byte
	TimeSystem string
	Epochs     []time.Time

	samples map[string][]Sample
}

// Satellites returns the ids that have at least one sample, sorted.
func (p *Product) Satellites() []string {
	ids := make([]string, 0, len(p.samples))
	for id := range p.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GLOUTCOffset is GLONASS system time minus UTC: UTC(SU) + 3 h.
const GLOUTCOffset = 3 * time.Hour

// UTCOffset returns the offset between the product's time system and UTC.
// GAL, QZS and IRN are steered to GPS time and take the GPS offset.
func (p *Product) UTCOffset() time.Duration {
	switch p.TimeSystem {
	case "UTC":
		return 0
	case "GLO":
		return GLOUTCOffset
	case "TAI":
		return GPSUTCOffset + 19*time.Second
	case "BDT":
		return GPSUTCOffset - 14*time.Second
	default:
		return GPSUTCOffset
	}
}

// Extract returns the UTC-stamped position series for one satellite.
func (p *Product) Extract(id string) (Series, error) {
	samples, ok := p.samples[id]
	if !ok || len(samples) == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrSatelliteNotFound, id)
	}

	offset := p.UTCOffset()
	s := Series{
		Satellite: id,
		Times:     make([]time.Time, len(samples)),
		Positions: make([]r3.Vec, len(samples)),
		rel:       make([]float64, len(samples)),
	}
	for k := range s.axes {
		s.axes[k] = make([]float64, len(samples))
	}
	origin := samples[0].Time.Add(-offset)
	for i, smp := range samples {
		ts := smp.Time.Add(-offset)
		if i > 0 && !ts.After(s.Times[i-1]) {
			return Series{}, fmt.Errorf("satellite %s: epochs not increasing at %s", id, smp.Time.Format(time.RFC3339))
		}
		s.Times[i] = ts
		s.Positions[i] = smp.Position
		s.rel[i] = ts.Sub(origin).Seconds()
		s.axes[0][i], s.axes[1][i], s.axes[2][i] = smp.Position.X, smp.Position.Y, smp.Position.Z
	}
	return s, nil
}

// Series is the position history of one satellite with UTC timestamps.
// Immutable after extraction.
type Series struct {
	Satellite string
	Times     []time.Time
	Positions []r3.Vec

	rel  []float64 // seconds since Times[0]
	axes [3][]float64
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Times)
}

// Contains reports whether t lies within the sampled span.
func (s Series) Contains(t time.Time) bool {
	return len(s.Times) > 0 && !t.Before(s.Times[0]) && !t.After(s.Times[len(s.Times)-1])
}

// At interpolates the position at t, one axis at a time. When t is outside
// the sampled span the extrapolated position is returned along with an error
// wrapping interp.ErrOutOfRange.
func (s Series) At(t time.Time, order int) (r3.Vec, error) {
	if len(s.Times) == 0 {
		return r3.Vec{}, fmt.Errorf("satellite %s: empty series", s.Satellite)
	}
	q := t.Sub(s.Times[0]).Seconds()

	var out [3]float64
	var rangeErr error
	for k, values := range s.axes {
		v, err := interp.Lagrange(s.rel, values, q, order)
		if err != nil {
			if !errors.Is(err, interp.ErrOutOfRange) {
				return r3.Vec{}, fmt.Errorf("satellite %s: %w", s.Satellite, err)
			}
			rangeErr = err
		}
		out[k] = v
	}

	pos := r3.Vec{X: out[0], Y: out[1], Z: out[2]}
	if rangeErr != nil {
		return pos, fmt.Errorf("satellite %s at %s: %w", s.Satellite, t.UTC().Format(time.RFC3339Nano), rangeErr)
	}
	return pos, nil
}
