// Package compare predicts topocentric RA/Dec from precise ephemerides and
// compares it with telescope measurements.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/interp"
	"github.com/pupper42/roo-analysis/internal/sp3"
	"github.com/pupper42/roo-analysis/internal/telescope"
	"github.com/pupper42/roo-analysis/internal/transform"
)

// Config holds the comparator parameters. It is read-only after New.
type Config struct {
	Kind     ephemeris.Kind
	Frame    transform.Frame
	Observer transform.Observer
	Order    int
	Columns  telescope.Columns
	Workers  int
}

// ProductSource returns parsed ephemeris products. *ephemeris.Store
// satisfies it.
type ProductSource interface {
	Get(ctx context.Context, p ephemeris.Product) (*sp3.Product, error)
}

// Comparator compares telescope files against the ephemeris. Safe for
// concurrent use; all state it holds is read-only.
type Comparator struct {
	cfg      Config
	catalog  *catalog.Catalog
	products ProductSource
	logger   *slog.Logger
}

// New creates a Comparator.
func New(cfg Config, cat *catalog.Catalog, products ProductSource, logger *slog.Logger) *Comparator {
	if cfg.Frame == nil {
		cfg.Frame = transform.Celestial{}
	}
	if cfg.Order < 1 {
		cfg.Order = interp.DefaultOrder
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Comparator{
		cfg:      cfg,
		catalog:  cat,
		products: products,
		logger:   logger,
	}
}

// Compare reads one telescope file, shifts its timestamps by offset and
// predicts the satellite position for every row. The ephemeris product is
// the one covering the first shifted timestamp.
//
// Errors wrap catalog.ErrUnrecognizedSatellite (file skipped),
// telescope.ErrMalformedInput, or the ephemeris retrieval failure.
func (c *Comparator) Compare(ctx context.Context, path string, offset time.Duration) (*Result, error) {
	sat, err := c.catalog.Match(path)
	if err != nil {
		return nil, err
	}

	obs, err := telescope.ReadFile(path, c.cfg.Columns)
	if err != nil {
		return nil, err
	}
	return c.CompareObservations(ctx, path, sat, telescope.Shift(obs, offset), offset)
}

// CompareObservations compares already shifted observations of sat.
func (c *Comparator) CompareObservations(ctx context.Context, source, sat string, obs []telescope.Observation, offset time.Duration) (*Result, error) {
	res := &Result{
		Source:    source,
		Satellite: sat,
		Offset:    offset,
	}
	if len(obs) == 0 {
		return res, nil
	}

	product := ephemeris.ProductFor(c.cfg.Kind, obs[0].Time)
	res.Product = product.Name()

	prod, err := c.products.Get(ctx, product)
	if err != nil {
		return nil, err
	}
	series, err := prod.Extract(sat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", product.Name(), err)
	}

	res.Records = make([]Record, len(obs))
	for i, o := range obs {
		rec, err := c.predict(series, o)
		if err != nil {
			return nil, err
		}
		res.Records[i] = rec
	}

	if n := res.Extrapolated(); n > 0 {
		c.logger.Warn("ephemeris extrapolated outside product span",
			"file", source,
			"satellite", sat,
			"key", product.Name(),
			"offset_ms", OffsetMillis(offset),
			"records", n,
		)
	}
	return res, nil
}

func (c *Comparator) predict(series sp3.Series, o telescope.Observation) (Record, error) {
	pos, err := series.At(o.Time, c.cfg.Order)
	extrapolated := errors.Is(err, interp.ErrOutOfRange)
	if err != nil && !extrapolated {
		return Record{}, err
	}

	a := transform.Topocentric(c.cfg.Frame, pos, o.Time, c.cfg.Observer)
	return Record{
		Time:         o.Time,
		TelescopeRA:  o.RADeg,
		TelescopeDec: o.DecDeg,
		EphemerisRA:  a.RADeg,
		EphemerisDec: a.DecDeg,
		RangeKm:      a.RangeKm,
		RADiff:       angleDiff(a.RADeg, o.RADeg, true),
		DecDiff:      angleDiff(a.DecDeg, o.DecDeg, false),
		Extrapolated: extrapolated,
	}, nil
}
