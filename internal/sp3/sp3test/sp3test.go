// Package sp3test builds synthetic SP3 products for tests.
package sp3test

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// GPSUTCOffset mirrors sp3.GPSUTCOffset; duplicated to keep this package import-free.
const GPSUTCOffset = 18 * time.Second

// Trajectory returns the earth-fixed position (km) of a satellite at a UTC instant.
type Trajectory func(utc time.Time) r3.Vec

// Line returns a trajectory moving from p0 at t0 with constant velocity v (km/s).
func Line(t0 time.Time, p0, v r3.Vec) Trajectory {
	return func(utc time.Time) r3.Vec {
		return r3.Add(p0, r3.Scale(utc.Sub(t0).Seconds(), v))
	}
}

// Circle returns an equatorial circular orbit of the given radius (km),
// at longitude 0 at t0 and advancing eastward once per period.
func Circle(t0 time.Time, radius float64, period time.Duration) Trajectory {
	return func(utc time.Time) r3.Vec {
		a := 2 * math.Pi * utc.Sub(t0).Seconds() / period.Seconds()
		return r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
}

// Build renders an SP3-d product with n epochs spaced step apart, starting at
// the GPS-time epoch start. Positions are sampled at the matching UTC instant.
func Build(start time.Time, step time.Duration, n int, sats map[string]Trajectory) []byte {
	ids := make([]string, 0, len(sats))
	for id := range sats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b bytes.Buffer
	fmt.Fprintf(&b, "#dP%s %7d ORBIT IGb14 FIT  TST\n", epochFields(start), n)
	fmt.Fprintf(&b, "## 2183  86400.00000000 %14.8f 59526 0.0000000000000\n", step.Seconds())
	fmt.Fprintf(&b, "+   %2d   ", len(ids))
	for _, id := range ids {
		b.WriteString(id)
	}
	b.WriteString("\n")
	b.WriteString("%c M  cc GPS ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc\n")
	b.WriteString("%c cc cc ccc ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc\n")
	b.WriteString("/* SYNTHETIC ORBIT FOR TESTS\n")

	for i := 0; i < n; i++ {
		gps := start.Add(time.Duration(i) * step)
		fmt.Fprintf(&b, "*  %s\n", epochFields(gps))
		for _, id := range ids {
			p := sats[id](gps.Add(-GPSUTCOffset))
			fmt.Fprintf(&b, "P%s%14.6f%14.6f%14.6f %13.6f\n", id, p.X, p.Y, p.Z, 0.0)
		}
	}
	b.WriteString("EOF\n")
	return b.Bytes()
}

func epochFields(t time.Time) string {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return fmt.Sprintf("%4d %2d %2d %2d %2d %11.8f", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec)
}
