package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Angles holds right ascension, declination and range of a line of sight.
type Angles struct {
	RADeg   float64 // [0, 360)
	DecDeg  float64 // [-90, 90]
	RangeKm float64
}

// Topocentric computes the apparent right ascension, declination and range of
// a satellite seen from obs at instant t. Both positions are earth-fixed (km)
// and are rotated into the celestial frame at the same instant before the
// line of sight is formed.
func Topocentric(f Frame, sat r3.Vec, t time.Time, obs Observer) Angles {
	satCel := f.ToCelestial(sat, t)
	obsCel := f.ToCelestial(obs.Fixed, t)
	return VectorAngles(r3.Sub(satCel, obsCel))
}

// Geocentric computes right ascension, declination and range of a satellite
// as seen from the geocenter.
func Geocentric(f Frame, sat r3.Vec, t time.Time) Angles {
	return VectorAngles(f.ToCelestial(sat, t))
}

// VectorAngles converts a celestial-frame vector to RA/Dec/range.
// RA from atan2 lies in (−180°, 180°]; negative values are folded into [0°, 360°).
func VectorAngles(v r3.Vec) Angles {
	rng := r3.Norm(v)
	if rng == 0 {
		return Angles{}
	}

	ra := math.Atan2(v.Y, v.X) * 180.0 / math.Pi
	if ra < 0 {
		ra += 360.0
	}
	if ra >= 360.0 {
		ra = 0
	}

	dec := math.Asin(clamp(v.Z/rng, -1, 1)) * 180.0 / math.Pi

	return Angles{RADeg: ra, DecDeg: dec, RangeKm: rng}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
