// Package transform provides coordinate frame transformations for satellite positions.
//
// Ephemeris positions are earth-fixed (ITRF). Apparent right ascension and
// declination are measured in the celestial frame (GCRS, taken equal to the
// J2000 mean equator and equinox). The rotation between them is
//
//	r_GCRS = Pᵀ · Nᵀ · R3(−GAST) · r_ITRF
//
// with P the IAU-76 precession, N the truncated IAU-80 nutation and GAST the
// apparent sidereal angle at UT1. UT1−UTC is supplied per run (Celestial.DUT1).
// Polar motion (<15 m on the ground) and the 23 mas frame bias are ignored.
// The four-term nutation series limits the chain to about 0.5″.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame rotates earth-fixed vectors into a celestial frame at a given instant.
type Frame interface {
	ToCelestial(p r3.Vec, t time.Time) r3.Vec
}

// MaxDUT1 bounds |UT1−UTC|; leap seconds keep it below 0.9 s.
const MaxDUT1 = 900 * time.Millisecond

// Celestial is the ITRF → GCRS transform. DUT1 is UT1−UTC for the observing
// period, as published in IERS Bulletin A. The zero value takes UT1 = UTC.
type Celestial struct {
	DUT1 time.Duration
}

// ToCelestial transforms an earth-fixed vector to the celestial frame at the
// UTC instant t.
func (c Celestial) ToCelestial(p r3.Vec, t time.Time) r3.Vec {
	return apply(terrestrialToCelestial(t, c.DUT1), p)
}

// Identity treats the earth-fixed and celestial frames as coincident.
// Used for synthetic scenarios where the frame rotation is not under test.
type Identity struct{}

// ToCelestial returns p unchanged.
func (Identity) ToCelestial(p r3.Vec, _ time.Time) r3.Vec {
	return p
}

// CelestialToTerrestrial returns the matrix W·N·P taking GCRS vectors to
// earth-fixed vectors at t, with UT1 = UTC. Its transpose is the inverse.
func CelestialToTerrestrial(t time.Time) *mat.Dense {
	return celestialToTerrestrial(t, 0)
}

func celestialToTerrestrial(t time.Time, dut1 time.Duration) *mat.Dense {
	zeta, z, theta := Precession(t)
	nut := NutationAt(t)

	p := chain(rot3(-z), rot2(theta), rot3(-zeta))
	n := chain(rot1(-nut.TrueObliquity()), rot3(-nut.DeltaPsi), rot1(nut.MeanObliquity))
	w := rot3(gast(t, dut1))

	return chain(w, n, p)
}

// TerrestrialToCelestial returns the matrix taking earth-fixed vectors to GCRS
// at t, with UT1 = UTC.
func TerrestrialToCelestial(t time.Time) *mat.Dense {
	return terrestrialToCelestial(t, 0)
}

func terrestrialToCelestial(t time.Time, dut1 time.Duration) *mat.Dense {
	c := celestialToTerrestrial(t, dut1)
	var out mat.Dense
	out.CloneFrom(c.T())
	return &out
}

// EarthRotation rotates an earth-fixed vector about the pole by the sidereal
// angle only (true-of-date equator and equinox, no precession or nutation).
func EarthRotation(p r3.Vec, t time.Time) r3.Vec {
	return apply(rot3(-GAST(t)), p)
}

func apply(m mat.Matrix, p r3.Vec) r3.Vec {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// chain multiplies the given matrices left to right.
func chain(ms ...*mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(out, m)
		out = &next
	}
	return out
}

// rot1, rot2 and rot3 are the frame rotations about the x, y and z axes
// (Vallado Eq. 3-15).
func rot1(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	})
}

func rot2(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	})
}

func rot3(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}
