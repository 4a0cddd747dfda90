package compare

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/telescope"
)

var night = time.Date(2021, 11, 8, 2, 0, 0, 0, time.UTC)

func TestCompareMatchesTruth(t *testing.T) {
	dir := t.TempDir()
	path := writeTelescopeFile(t, dir, "211108_qzs1_cleaned.csv", night, 30, 0)

	c := newTestComparator(t, newFakeResolver())
	res, err := c.Compare(context.Background(), path, 0)
	require.NoError(t, err)

	assert.Equal(t, "J01", res.Satellite)
	assert.Equal(t, "qzf21831.sp3", res.Product)
	require.Len(t, res.Records, 30)
	for _, rec := range res.Records {
		assert.False(t, rec.Extrapolated)
		assert.InDelta(t, 0, rec.RADiff, 1e-3, "RA diff at %v", rec.Time)
		assert.InDelta(t, 0, rec.DecDiff, 1e-3)
		assert.InDelta(t, geoRadius, rec.RangeKm, 1e-5)
	}
}

func TestCompareOffsetDrift(t *testing.T) {
	dir := t.TempDir()
	path := writeTelescopeFile(t, dir, "qzs1.csv", night, 10, 0)
	c := newTestComparator(t, newFakeResolver())

	rate := 360.0 / sidereal.Seconds() * 3600 // arcsec per second
	for _, offset := range []time.Duration{-200 * time.Millisecond, 0, 200 * time.Millisecond} {
		res, err := c.Compare(context.Background(), path, offset)
		require.NoError(t, err)
		want := rate * offset.Seconds()
		for _, rec := range res.Records {
			assert.InDelta(t, want, rec.RADiff, 1e-3, "offset %v", offset)
		}
	}
}

func TestCompareOffsetAdditivity(t *testing.T) {
	dir := t.TempDir()
	delta := 700 * time.Millisecond
	plain := writeTelescopeFile(t, dir, "a_qzs3.csv", night, 12, 0)

	// The same measurements with timestamps already moved by delta.
	obs, err := telescope.ReadFile(plain, telescope.DefaultColumns)
	require.NoError(t, err)
	var b strings.Builder
	b.WriteString("Timestamp,Exposure,Filter,RA,DEC\n")
	for _, o := range telescope.Shift(obs, delta) {
		b.WriteString(o.Time.Format("2006-01-02T15:04:05.000000") + ",0.5,V," + formatFloat(o.RADeg) + "," + formatFloat(o.DecDeg) + "\n")
	}
	shifted := filepath.Join(dir, "b_qzs3.csv")
	require.NoError(t, os.WriteFile(shifted, []byte(b.String()), 0644))

	c := newTestComparator(t, newFakeResolver())
	withOffset, err := c.Compare(context.Background(), plain, delta)
	require.NoError(t, err)
	preShifted, err := c.Compare(context.Background(), shifted, 0)
	require.NoError(t, err)

	require.Equal(t, len(withOffset.Records), len(preShifted.Records))
	for i := range withOffset.Records {
		a, b := withOffset.Records[i], preShifted.Records[i]
		assert.True(t, a.Time.Equal(b.Time))
		assert.Equal(t, a.EphemerisRA, b.EphemerisRA)
		assert.Equal(t, a.EphemerisDec, b.EphemerisDec)
		assert.Equal(t, a.RADiff, b.RADiff)
	}
}

func TestCompareUnrecognizedSatellite(t *testing.T) {
	dir := t.TempDir()
	path := writeTelescopeFile(t, dir, "galileo_e11.csv", night, 3, 0)

	resolver := newFakeResolver()
	c := newTestComparator(t, resolver)
	_, err := c.Compare(context.Background(), path, 0)
	assert.ErrorIs(t, err, catalog.ErrUnrecognizedSatellite)
	assert.Zero(t, resolver.calls.Load(), "no ephemeris is fetched for skipped files")
}

func TestCompareSatelliteMissingFromProduct(t *testing.T) {
	dir := t.TempDir()
	path := writeTelescopeFile(t, dir, "qzs4.csv", night, 3, 0)

	c := newTestComparator(t, newFakeResolver())
	_, err := c.Compare(context.Background(), path, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "J03")
}

func TestCompareFlagsExtrapolation(t *testing.T) {
	dir := t.TempDir()
	// The product ends at 05:44:42 UTC; the last rows run past it.
	start := time.Date(2021, 11, 8, 5, 44, 40, 0, time.UTC)
	path := writeTelescopeFile(t, dir, "qzs1.csv", start, 5, 0)

	c := newTestComparator(t, newFakeResolver())
	res, err := c.Compare(context.Background(), path, 0)
	require.NoError(t, err)

	flags := []bool{}
	for _, rec := range res.Records {
		flags = append(flags, rec.Extrapolated)
	}
	assert.Equal(t, []bool{false, false, false, true, true}, flags)
	assert.Equal(t, 2, res.Extrapolated())
}

func TestCompareEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qzs2.csv")
	require.NoError(t, os.WriteFile(path, []byte("Timestamp,a,b,RA,DEC\n"), 0644))

	resolver := newFakeResolver()
	c := newTestComparator(t, resolver)
	res, err := c.Compare(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, resolver.calls.Load())
}

func TestWriteArtifact(t *testing.T) {
	res := &Result{
		Records: []Record{{
			Time:         time.Date(2021, 11, 8, 2, 0, 0, 123456000, time.UTC),
			TelescopeRA:  187.5,
			TelescopeDec: -12.25,
			EphemerisRA:  187.5001,
			EphemerisDec: -12.2501,
			RADiff:       0.36,
			DecDiff:      -0.36,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteArtifact(&buf, res))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Timestamp,Telescope RA,Telescope DEC,Ephemeris RA,Ephemeris DEC,RA Difference,DEC Difference", lines[0])
	assert.Equal(t, "1636336800123.456,187.5,-12.25,187.5001,-12.2501,0.36,-0.36", lines[1])
}

func TestAngleDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		wrap bool
		want float64
	}{
		{"plain", 10.5, 10, true, 1800},
		{"negative", 10, 10.5, true, -1800},
		{"across seam", 0.1, 359.9, true, 720},
		{"across seam reversed", 359.9, 0.1, true, -720},
		{"declination unwrapped", -80, 80, false, -160 * 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, angleDiff(tt.a, tt.b, tt.wrap), 1e-6)
		})
	}
}

func TestOffsetLabel(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-1000 * time.Millisecond, "-1000ms"},
		{-200 * time.Millisecond, "-200ms"},
		{-100 * time.Millisecond, "-100ms"},
		{0, "0ms"},
		{100 * time.Millisecond, "100ms"},
		{time.Second, "1000ms"},
		{1500 * time.Microsecond, "2ms"},
		{-1500 * time.Microsecond, "-2ms"},
		{400 * time.Microsecond, "0ms"},
		{-400 * time.Microsecond, "0ms"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OffsetLabel(tt.d), "offset %v", tt.d)
	}
	assert.Equal(t, "-200ms_compared_qzs1.csv", ArtifactName(-200*time.Millisecond, "/data/qzs1.csv"))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestRetrievalErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	path := writeTelescopeFile(t, dir, "qzs1.csv", time.Date(2021, 11, 20, 2, 0, 0, 0, time.UTC), 3, 0)

	c := newTestComparator(t, newFakeResolver())
	_, err := c.Compare(context.Background(), path, 0)
	assert.ErrorIs(t, err, ephemeris.ErrNotPublished)
}
