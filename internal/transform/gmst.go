package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// ttMinusUTC is TT−UTC in seconds: TAI−UTC (37 s since 2017) plus TT−TAI (32.184 s).
// Only the precession/nutation arguments use TT, where a one-second error is
// far below the model's own truncation error.
const ttMinusUTC = 69.184

const arcsecToRad = math.Pi / (180.0 * 3600.0)

// JulianDate converts a time.Time (UTC) to Julian Date.
// Uses the standard astronomical algorithm valid for dates after March 1, 4801 BC.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Adjust year/month for Jan/Feb (treat as months 13/14 of previous year).
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// CenturiesTT returns Julian centuries of Terrestrial Time since J2000.0.
func CenturiesTT(t time.Time) float64 {
	return (JulianDate(t) + ttMinusUTC/86400.0 - j2000) / 36525.0
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UT1 time.
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
// Callers holding UTC add UT1−UTC first; Celestial does this with its DUT1.
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
func GMST(t time.Time) float64 {
	jd := JulianDate(t)
	tUT1 := (jd - j2000) / 36525.0

	// GMST in seconds of time.
	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	// Normalize to [0, 86400) seconds, then convert to radians.
	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// Nutation holds the nutation angles and obliquity for one instant, in radians.
type Nutation struct {
	DeltaPsi      float64 // nutation in longitude
	DeltaEpsilon  float64 // nutation in obliquity
	MeanObliquity float64
}

// TrueObliquity returns ε = ε̄ + Δε.
func (n Nutation) TrueObliquity() float64 {
	return n.MeanObliquity + n.DeltaEpsilon
}

// NutationAt evaluates the four largest terms of the IAU-1980 nutation series
// (Meeus ch. 22, good to about 0.5″) and the IAU-76 mean obliquity.
func NutationAt(t time.Time) Nutation {
	T := CenturiesTT(t)
	deg := math.Pi / 180.0

	omega := (125.04452 - 1934.136261*T) * deg // longitude of the Moon's ascending node
	lSun := (280.4665 + 36000.7698*T) * deg
	lMoon := (218.3165 + 481267.8813*T) * deg

	dPsi := -17.20*math.Sin(omega) - 1.32*math.Sin(2*lSun) - 0.23*math.Sin(2*lMoon) + 0.21*math.Sin(2*omega)
	dEps := 9.20*math.Cos(omega) + 0.57*math.Cos(2*lSun) + 0.10*math.Cos(2*lMoon) - 0.09*math.Cos(2*omega)

	eps0 := 84381.448 - 46.8150*T - 0.00059*T*T + 0.001813*T*T*T

	return Nutation{
		DeltaPsi:      dPsi * arcsecToRad,
		DeltaEpsilon:  dEps * arcsecToRad,
		MeanObliquity: eps0 * arcsecToRad,
	}
}

// GAST returns Greenwich Apparent Sidereal Time in radians: GMST plus the
// equation of the equinoxes (Δψ·cos ε). UT1 is taken equal to UTC.
func GAST(t time.Time) float64 {
	return gast(t, 0)
}

// gast evaluates the sidereal angle at UT1 = t + dut1. The equation of the
// equinoxes is a function of TT and is evaluated at t.
func gast(t time.Time, dut1 time.Duration) float64 {
	n := NutationAt(t)
	g := GMST(t.Add(dut1)) + n.DeltaPsi*math.Cos(n.TrueObliquity())
	g = math.Mod(g, 2*math.Pi)
	if g < 0 {
		g += 2 * math.Pi
	}
	return g
}

// Precession returns the IAU-76 precession angles ζ, z, θ (radians) from
// J2000.0 to the mean equator and equinox of date.
func Precession(t time.Time) (zeta, z, theta float64) {
	T := CenturiesTT(t)
	zeta = (2306.2181*T + 0.30188*T*T + 0.017998*T*T*T) * arcsecToRad
	z = (2306.2181*T + 1.09468*T*T + 0.018203*T*T*T) * arcsecToRad
	theta = (2004.3109*T - 0.42665*T*T - 0.041833*T*T*T) * arcsecToRad
	return zeta, z, theta
}
