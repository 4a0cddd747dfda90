package transform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid is a reference ellipsoid given by its semi-major axis and flattening.
type Ellipsoid struct {
	Name string
	A    float64 // semi-major axis (km)
	F    float64 // flattening
}

// E2 returns the first eccentricity squared.
func (e Ellipsoid) E2() float64 {
	return e.F * (2 - e.F)
}

var (
	// WGS84 is the GPS reference ellipsoid.
	WGS84 = Ellipsoid{Name: "WGS84", A: 6378.137, F: 1.0 / 298.257223563}
	// GRS80 is the ITRF reference ellipsoid; it differs from WGS84 by 0.1 mm at the poles.
	GRS80 = Ellipsoid{Name: "GRS80", A: 6378.137, F: 1.0 / 298.257222101}
)

// EllipsoidByName looks up a reference ellipsoid (case-insensitive).
func EllipsoidByName(name string) (Ellipsoid, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "WGS84", "WGS-84":
		return WGS84, nil
	case "GRS80", "GRS-80":
		return GRS80, nil
	default:
		return Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q", name)
	}
}

// Observer holds a ground observer's location in both geodetic and earth-fixed
// frames. The earth-fixed position is computed once so it can be reused across
// every satellite lookup of a run.
type Observer struct {
	LatDeg, LonDeg float64
	HeightM        float64 // above the ellipsoid
	Ellipsoid      Ellipsoid
	Fixed          r3.Vec // earth-fixed Cartesian position (km)
}

// NewObserver creates an Observer from geodetic coordinates.
// Latitude and longitude are in degrees, height in meters above the ellipsoid.
func NewObserver(latDeg, lonDeg, heightM float64, ell Ellipsoid) Observer {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	e2 := ell.E2()
	h := heightM / 1000.0

	// Radius of curvature in the prime vertical.
	N := ell.A / math.Sqrt(1-e2*sinLat*sinLat)

	return Observer{
		LatDeg:    latDeg,
		LonDeg:    lonDeg,
		HeightM:   heightM,
		Ellipsoid: ell,
		Fixed: r3.Vec{
			X: (N + h) * cosLat * cosLon,
			Y: (N + h) * cosLat * sinLon,
			Z: (N*(1-e2) + h) * sinLat,
		},
	}
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, height in meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, HeightM float64
}

// FixedToGeodetic converts an earth-fixed position (km) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func FixedToGeodetic(p r3.Vec, ell Ellipsoid) GeodeticPoint {
	e2 := ell.E2()
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-e2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := ell.A / math.Sqrt(1-e2*sinLat*sinLat)
		lat = math.Atan2(p.Z+e2*N*sinLat, rho)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := ell.A / math.Sqrt(1-e2*sinLat*sinLat)

	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = rho/cosLat - N
	} else {
		h = math.Abs(p.Z)/math.Abs(sinLat) - N*(1-e2)
	}

	return GeodeticPoint{
		LatDeg:  lat * 180.0 / math.Pi,
		LonDeg:  lon * 180.0 / math.Pi,
		HeightM: h * 1000.0,
	}
}

// PlausibleOrbit checks that an earth-fixed position (km) is physically
// reasonable for an Earth-orbiting satellite: finite, and between 6200 km
// and 50000 km from the geocenter.
func PlausibleOrbit(p r3.Vec) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	mag := r3.Norm(p)
	return mag >= 6200.0 && mag <= 50000.0
}
