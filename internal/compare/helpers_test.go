package compare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/sp3/sp3test"
	"github.com/pupper42/roo-analysis/internal/telescope"
	"github.com/pupper42/roo-analysis/internal/transform"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	geoRadius = 42164.0
	sidereal  = 86164 * time.Second
)

// productStart is the first epoch (GPS time) of the synthetic product.
var productStart = time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC)

// orbitEpoch is when the synthetic satellite crosses RA 0.
var orbitEpoch = time.Date(2021, 11, 8, 0, 0, 0, 0, time.UTC)

// fakeResolver serves a synthetic product for week 2183 day 1 and
// ErrNotPublished for everything else.
type fakeResolver struct {
	data  []byte
	calls atomic.Int32
}

func newFakeResolver() *fakeResolver {
	orbit := sp3test.Circle(orbitEpoch, geoRadius, sidereal)
	return &fakeResolver{
		data: sp3test.Build(productStart, 15*time.Minute, 24, map[string]sp3test.Trajectory{
			"J01": orbit,
			"J07": orbit,
		}),
	}
}

func (f *fakeResolver) Resolve(ctx context.Context, p ephemeris.Product) ([]byte, error) {
	f.calls.Add(1)
	if p.Name() != "qzf21831.sp3" {
		return nil, &ephemeris.RetrievalError{Product: p.Name(), Status: 404, Err: ephemeris.ErrNotPublished}
	}
	return f.data, nil
}

// expectedRA is the RA (deg) of the synthetic satellite seen from the
// geocenter with the identity frame.
func expectedRA(t time.Time) float64 {
	ra := 360 * t.Sub(orbitEpoch).Seconds() / sidereal.Seconds()
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

func newTestComparator(t *testing.T, resolver ephemeris.Resolver) *Comparator {
	t.Helper()
	cat, err := catalog.New(catalog.Default())
	require.NoError(t, err)

	cfg := Config{
		Kind:     ephemeris.KindFinal,
		Frame:    transform.Identity{},
		Observer: transform.Observer{},
		Order:    9,
		Columns:  telescope.DefaultColumns,
		Workers:  3,
	}
	return New(cfg, cat, ephemeris.NewStore(resolver, testLogger), testLogger)
}

// writeTelescopeFile writes n one-second-spaced observations starting at
// start whose measured RA is the true RA at measured+bias.
func writeTelescopeFile(t *testing.T, dir, name string, start time.Time, n int, bias time.Duration) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Timestamp,Exposure,Filter,RA,DEC\n")
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		fmt.Fprintf(&b, "%s,0.5,V,%s,0\n", ts.Format("2006-01-02T15:04:05.000000"), formatFloat(expectedRA(ts.Add(bias))))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}
