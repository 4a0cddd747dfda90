package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pupper42/roo-analysis/internal/config"
	"github.com/pupper42/roo-analysis/internal/interp"
	"github.com/pupper42/roo-analysis/internal/sp3"
	"github.com/pupper42/roo-analysis/internal/transform"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Println("usage: diag FILE.sp3 [SATELLITE]")
		os.Exit(2)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Println("ERROR opening SP3 file:", err)
		os.Exit(1)
	}
	defer f.Close()

	prod, err := sp3.Parse(f, logger)
	if err != nil {
		fmt.Println("ERROR parsing SP3:", err)
		os.Exit(1)
	}
	fmt.Printf("SP3-%c, time system %s, %d epochs\n", prod.Version, prod.TimeSystem, len(prod.Epochs))
	fmt.Printf("Epochs: %v .. %v\n", prod.Epochs[0].Format(time.RFC3339), prod.Epochs[len(prod.Epochs)-1].Format(time.RFC3339))

	sats := prod.Satellites()
	if len(os.Args) > 2 {
		sats = os.Args[2:]
	}
	fmt.Printf("Satellites: %d\n", len(prod.Satellites()))

	cfg := config.ApplyEnv(config.Default(), logger)
	obs, err := cfg.ObserverLocation()
	if err != nil {
		fmt.Println("ERROR observer:", err)
		os.Exit(1)
	}
	fmt.Printf("Observer: lat=%.6f lon=%.6f h=%.1fm (%s)\n", obs.LatDeg, obs.LonDeg, obs.HeightM, obs.Ellipsoid.Name)
	frame := transform.Celestial{DUT1: cfg.UT1MinusUTC}

	for _, id := range sats {
		s, err := prod.Extract(id)
		if err != nil {
			fmt.Printf("  %s: ERROR %v\n", id, err)
			continue
		}
		first := s.Times[0]
		sub := transform.FixedToGeodetic(s.Positions[0], obs.Ellipsoid)
		a := transform.Topocentric(frame, s.Positions[0], first, obs)
		fmt.Printf("  %s: %d samples from %s, sub-point lat=%.3f lon=%.3f alt=%.0fkm, topo ra=%.5f dec=%.5f range=%.1fkm\n",
			id, s.Len(), first.Format(time.RFC3339), sub.LatDeg, sub.LonDeg, sub.HeightM/1000, a.RADeg, a.DecDeg, a.RangeKm)

		// Interpolation check: half way between the first two samples.
		if s.Len() > interp.DefaultOrder {
			mid := first.Add(s.Times[1].Sub(first) / 2)
			if p, err := s.At(mid, interp.DefaultOrder); err == nil {
				fmt.Printf("      midpoint %s: %.3f %.3f %.3f km\n", mid.Format(time.RFC3339), p.X, p.Y, p.Z)
			}
		}
	}
}
