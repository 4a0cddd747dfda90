package sp3

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pupper42/roo-analysis/internal/interp"
	"github.com/pupper42/roo-analysis/internal/sp3/sp3test"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const sample = `#dP2021 11  8  0  0  0.00000000       3 ORBIT IGb14 FIT  JAX
## 2183  86400.00000000   900.00000000 59526 0.0000000000000
+    3   J01J07  5
%c M  cc GPS ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc
%c cc cc ccc ccc cccc cccc cccc cccc ccccc ccccc ccccc ccccc
/* QZSS FINAL ORBIT
*  2021 11  8  0  0  0.00000000
PJ01 -32421.960612  27184.017233 -11270.105390    -64.394637
PJ07 -35713.124455  23442.345111    311.993311     12.000001
P  5  15000.000000  20000.000000   5000.000000      1.234567
*  2021 11  8  0 15  0.00000000
PJ01 -32333.124000  27265.000100 -11012.777000    -64.394700
PJ07      0.000000      0.000000      0.000000 999999.999999
P  5  15010.000000  19990.000000   5010.000000      1.234567
*  2021 11  8  0 30  0.00000000
PJ01 -32240.000000  27340.500000 -10755.000000    -64.394800
PJ07 -35713.124460  23442.345120    311.993300     12.000002
PJ07 garbage
EOF
`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(sample), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.Version != 'd' {
		t.Errorf("version = %c, want d", p.Version)
	}
	if p.TimeSystem != "GPS" {
		t.Errorf("time system = %q, want GPS", p.TimeSystem)
	}
	if len(p.Epochs) != 3 {
		t.Fatalf("epochs = %d, want 3", len(p.Epochs))
	}

	got := strings.Join(p.Satellites(), ",")
	if got != "G05,J01,J07" {
		t.Errorf("satellites = %s, want G05,J01,J07", got)
	}
}

func TestExtract_AppliesGPSOffset(t *testing.T) {
	p, err := Parse(strings.NewReader(sample), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	s, err := p.Extract("J01")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("samples = %d, want 3", s.Len())
	}

	want := time.Date(2021, 11, 7, 23, 59, 42, 0, time.UTC)
	if !s.Times[0].Equal(want) {
		t.Errorf("first UTC time = %v, want %v", s.Times[0], want)
	}
	if s.Positions[1].Z != -11012.777 {
		t.Errorf("second Z = %v, want -11012.777", s.Positions[1].Z)
	}
}

func TestExtract_SkipsMissingPositions(t *testing.T) {
	p, err := Parse(strings.NewReader(sample), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	s, err := p.Extract("J07")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	// The zero record and the garbage record are dropped.
	if s.Len() != 2 {
		t.Errorf("samples = %d, want 2", s.Len())
	}
}

func TestExtract_UnknownSatellite(t *testing.T) {
	p, err := Parse(strings.NewReader(sample), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	_, err = p.Extract("J03")
	if !errors.Is(err, ErrSatelliteNotFound) {
		t.Errorf("expected ErrSatelliteNotFound, got %v", err)
	}
}

func TestParse_UTCTimeSystem(t *testing.T) {
	data := strings.Replace(sample, "%c M  cc GPS", "%c M  cc UTC", 1)
	p, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := p.Extract("J01")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if want := time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC); !s.Times[0].Equal(want) {
		t.Errorf("first time = %v, want %v", s.Times[0], want)
	}
}

func TestParse_GLOTimeSystem(t *testing.T) {
	data := strings.Replace(sample, "%c M  cc GPS", "%c M  cc GLO", 1)
	p, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := p.Extract("J01")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if want := time.Date(2021, 11, 7, 21, 0, 0, 0, time.UTC); !s.Times[0].Equal(want) {
		t.Errorf("first time = %v, want %v", s.Times[0], want)
	}
}

func TestProduct_UTCOffset(t *testing.T) {
	tests := map[string]time.Duration{
		"GPS": 18 * time.Second,
		"GAL": 18 * time.Second,
		"QZS": 18 * time.Second,
		"UTC": 0,
		"TAI": 37 * time.Second,
		"BDT": 4 * time.Second,
		"GLO": 3 * time.Hour,
	}
	for system, want := range tests {
		p := &Product{TimeSystem: system}
		if got := p.UTCOffset(); got != want {
			t.Errorf("UTCOffset(%s) = %v, want %v", system, got, want)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not sp3", "hello world\n"},
		{"no epochs", "#dP2021 11  8  0  0  0.00000000\nEOF\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.data), testLogger); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	tests := map[string]string{
		"J01": "J01",
		"G18": "G18",
		"  5": "G05",
		" 18": "G18",
		"C 5": "C05",
		"   ": "",
		"X":   "",
	}
	for in, want := range tests {
		if got := normalizeID(in); got != want {
			t.Errorf("normalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestSeries_AtStraightLine interpolates the midpoint of an 11-sample
// straight-line trajectory with order 9.
func TestSeries_AtStraightLine(t *testing.T) {
	start := time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC)
	t0 := start.Add(-GPSUTCOffset)
	p0 := r3.Vec{X: -30000, Y: 25000, Z: 8000}
	v := r3.Vec{X: 0.8, Y: 1.1, Z: -0.35}
	line := sp3test.Line(t0, p0, v)

	data := sp3test.Build(start, 15*time.Minute, 11, map[string]sp3test.Trajectory{"J01": line})
	p, err := Parse(strings.NewReader(string(data)), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := p.Extract("J01")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mid := s.Times[0].Add(s.Times[10].Sub(s.Times[0]) / 2)
	got, err := s.At(mid, 9)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	want := line(mid)
	if d := r3.Norm(r3.Sub(got, want)); d > 1e-6 {
		t.Errorf("midpoint off by %.3e km: got %v, want %v", d, got, want)
	}

	// Off-node query between samples 2 and 3.
	q := s.Times[2].Add(7*time.Minute + 300*time.Millisecond)
	got, err = s.At(q, 9)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if d := r3.Norm(r3.Sub(got, line(q))); d > 1e-6 {
		t.Errorf("off-node query off by %.3e km", d)
	}
}

func TestSeries_AtOutOfRange(t *testing.T) {
	start := time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC)
	line := sp3test.Line(start, r3.Vec{X: 42164}, r3.Vec{Y: 0.5})
	data := sp3test.Build(start, 15*time.Minute, 12, map[string]sp3test.Trajectory{"J03": line})

	p, err := Parse(strings.NewReader(string(data)), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := p.Extract("J03")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	q := s.Times[s.Len()-1].Add(time.Minute)
	if s.Contains(q) {
		t.Fatal("query should be outside the series")
	}
	got, err := s.At(q, 9)
	if !errors.Is(err, interp.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if d := r3.Norm(r3.Sub(got, line(q))); d > 1e-3 || math.IsNaN(d) {
		t.Errorf("extrapolated position off by %.3e km", d)
	}
}
