package compare

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pupper42/roo-analysis/internal/sp3"
	"github.com/pupper42/roo-analysis/internal/transform"
)

// TrackPoint is the apparent position of a satellite at one ephemeris epoch.
type TrackPoint struct {
	Time time.Time
	Geo  transform.Angles
	Topo transform.Angles
}

// Track converts every sample of a series to geocentric and topocentric
// RA/Dec/range.
func Track(series sp3.Series, frame transform.Frame, obs transform.Observer) []TrackPoint {
	points := make([]TrackPoint, series.Len())
	for i, t := range series.Times {
		p := series.Positions[i]
		points[i] = TrackPoint{
			Time: t,
			Geo:  transform.Geocentric(frame, p, t),
			Topo: transform.Topocentric(frame, p, t, obs),
		}
	}
	return points
}

var trackHeader = []string{"Timestamp", "RA", "DEC", "Distance"}

// TrackNames returns the geocentric and topocentric file names for a
// satellite track taken from product, e.g. "J07_qzf21831_geo.csv".
func TrackNames(sat, product string) (geo, topo string) {
	base := sat + "_" + strings.TrimSuffix(filepath.Base(product), filepath.Ext(product))
	return base + "_geo.csv", base + "_topo.csv"
}

// WriteTrack writes the track files for sat into dir and returns their paths.
func WriteTrack(dir, sat, product string, points []TrackPoint) (string, string, error) {
	geoName, topoName := TrackNames(sat, product)
	geoPath := filepath.Join(dir, geoName)
	topoPath := filepath.Join(dir, topoName)

	err := writeFileAtomic(geoPath, func(w io.Writer) error {
		return writeAngles(w, points, func(p TrackPoint) transform.Angles { return p.Geo })
	})
	if err != nil {
		return "", "", err
	}
	err = writeFileAtomic(topoPath, func(w io.Writer) error {
		return writeAngles(w, points, func(p TrackPoint) transform.Angles { return p.Topo })
	})
	if err != nil {
		return "", "", err
	}
	return geoPath, topoPath, nil
}

func writeAngles(w io.Writer, points []TrackPoint, pick func(TrackPoint) transform.Angles) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(trackHeader); err != nil {
		return err
	}
	for _, p := range points {
		a := pick(p)
		row := []string{
			p.Time.UTC().Format(time.RFC3339Nano),
			formatFloat(a.RADeg),
			formatFloat(a.DecDeg),
			formatFloat(a.RangeKm),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
