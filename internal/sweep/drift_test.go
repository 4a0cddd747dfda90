package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/compare"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/sp3/sp3test"
	"github.com/pupper42/roo-analysis/internal/telescope"
	"github.com/pupper42/roo-analysis/internal/transform"
)

type staticResolver []byte

func (s staticResolver) Resolve(ctx context.Context, p ephemeris.Product) ([]byte, error) {
	return s, nil
}

// TestSweepLinearDrift sweeps -200, 0 and +200 ms over a satellite whose RA
// grows linearly at the sidereal rate. The RA difference must follow
// rate × offset.
func TestSweepLinearDrift(t *testing.T) {
	const period = 86164 * time.Second
	start := time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC)
	orbit := sp3test.Circle(start, 42164, period)
	product := sp3test.Build(start, 15*time.Minute, 16, map[string]sp3test.Trajectory{"J01": orbit})

	// Measured RA is exact at the recorded timestamp.
	in := t.TempDir()
	var b strings.Builder
	b.WriteString("Timestamp,Exposure,Filter,RA,DEC\n")
	obsStart := start.Add(90 * time.Minute)
	for i := 0; i < 8; i++ {
		ts := obsStart.Add(time.Duration(i) * 2 * time.Second)
		ra := 360 * ts.Sub(start).Seconds() / period.Seconds()
		fmt.Fprintf(&b, "%s,1,V,%s,0\n", ts.Format("2006-01-02T15:04:05.000000"), strconv.FormatFloat(ra, 'f', -1, 64))
	}
	require.NoError(t, os.WriteFile(filepath.Join(in, "211108_qzs1.csv"), []byte(b.String()), 0644))

	cat, err := catalog.New(catalog.Default())
	require.NoError(t, err)
	cmp := compare.New(compare.Config{
		Kind:     ephemeris.KindFinal,
		Frame:    transform.Identity{},
		Observer: transform.Observer{},
		Order:    9,
		Columns:  telescope.DefaultColumns,
		Workers:  2,
	}, cat, ephemeris.NewStore(staticResolver(product), testLogger), testLogger)

	out := t.TempDir()
	offsets, err := List([]int{-200, 0, 200})
	require.NoError(t, err)
	reports, err := NewDriver(cmp, in, out, 3, testLogger).Sweep(context.Background(), offsets)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	rate := 360.0 / period.Seconds() * 3600 // arcsec per second
	var means []float64
	for i, r := range reports {
		require.Len(t, r.Files, 1)
		f := r.Files[0]
		require.Equal(t, compare.StatusWritten, f.Status, "offset %v: %v", offsets[i], f.Err)
		assert.Equal(t, filepath.Join(out, compare.OffsetLabel(offsets[i]), compare.ArtifactName(offsets[i], "211108_qzs1.csv")), f.Artifact)

		var sum float64
		for _, rec := range f.Result.Records {
			assert.InDelta(t, rate*offsets[i].Seconds(), rec.RADiff, 1e-3)
			sum += rec.RADiff
		}
		means = append(means, sum/float64(len(f.Result.Records)))
	}
	assert.Less(t, means[0], means[1])
	assert.Less(t, means[1], means[2])
	assert.InDelta(t, 2*rate*0.2, means[2]-means[0], 1e-3)
}
