// Package config builds the run configuration. A Config is assembled once at
// startup from defaults, an optional YAML file and ROO_* environment
// variables, then passed by value to every component.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pupper42/roo-analysis/internal/catalog"
	"github.com/pupper42/roo-analysis/internal/ephemeris"
	"github.com/pupper42/roo-analysis/internal/interp"
	"github.com/pupper42/roo-analysis/internal/telescope"
	"github.com/pupper42/roo-analysis/internal/transform"
)

// Config holds every static parameter of a run.
type Config struct {
	EphemerisDir string `yaml:"ephemerisDir"`
	TelescopeDir string `yaml:"telescopeDir"`
	OutputDir    string `yaml:"outputDir"`

	// Kind is "final" or "rapid".
	Kind    string  `yaml:"kind"`
	Archive Archive `yaml:"archive"`

	Observer Observer `yaml:"observer"`
	// Frame is "celestial" (earth-fixed to GCRS) or "identity" (no rotation).
	Frame string `yaml:"frame"`
	// UT1MinusUTC is DUT1 from IERS Bulletin A for the observing period.
	UT1MinusUTC time.Duration `yaml:"ut1MinusUTC"`
	Order       int           `yaml:"order"`

	Columns    telescope.Columns `yaml:"columns"`
	Satellites map[string]string `yaml:"satellites"`

	Sweep   Sweep `yaml:"sweep"`
	Workers int   `yaml:"workers"`

	SummaryDB   string `yaml:"summaryDB"`
	MetricsFile string `yaml:"metricsFile"`
	LogLevel    string `yaml:"logLevel"`
}

// Archive configures the remote ephemeris archive.
type Archive struct {
	FinalURL string        `yaml:"finalURL"`
	RapidURL string        `yaml:"rapidURL"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

// Observer is the geodetic site of the telescope.
type Observer struct {
	LatDeg    float64 `yaml:"latitude"`
	LonDeg    float64 `yaml:"longitude"`
	HeightM   float64 `yaml:"height"`
	Ellipsoid string  `yaml:"ellipsoid"`
}

// Sweep is an offset range in milliseconds. A non-empty Offsets list
// overrides the range.
type Sweep struct {
	StartMs int   `yaml:"startMs"`
	StopMs  int   `yaml:"stopMs"`
	StepMs  int   `yaml:"stepMs"`
	Offsets []int `yaml:"offsets"`
}

// Default returns the built-in configuration: the ROO site, the QZSS final
// archive and a -1000..1000 ms sweep in 100 ms steps.
func Default() Config {
	return Config{
		EphemerisDir: "ephemeris",
		TelescopeDir: "telescope",
		OutputDir:    "output",
		Kind:         string(ephemeris.KindFinal),
		Archive: Archive{
			FinalURL: ephemeris.DefaultFinalURL,
			RapidURL: ephemeris.DefaultRapidURL,
			Timeout:  30 * time.Second,
			Retries:  3,
		},
		Observer: Observer{
			LatDeg:    -37.680589141,
			LonDeg:    145.061634327,
			HeightM:   155.083,
			Ellipsoid: "GRS80",
		},
		Frame:      "celestial",
		Order:      interp.DefaultOrder,
		Columns:    telescope.DefaultColumns,
		Satellites: catalog.Default(),
		Sweep:      Sweep{StartMs: -1000, StopMs: 1000, StepMs: 100},
		Workers:    runtime.NumCPU(),
		LogLevel:   "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	// A satellites table in the file replaces the default one rather than
	// merging into it.
	cfg.Satellites = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Satellites == nil {
		cfg.Satellites = catalog.Default()
	}
	return cfg, nil
}

// ApplyEnv overlays ROO_* environment variables. Invalid values are logged
// and the current value kept.
func ApplyEnv(cfg Config, logger *slog.Logger) Config {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("ROO_EPHEMERIS_DIR", &cfg.EphemerisDir)
	str("ROO_TELESCOPE_DIR", &cfg.TelescopeDir)
	str("ROO_OUTPUT_DIR", &cfg.OutputDir)
	str("ROO_KIND", &cfg.Kind)
	str("ROO_FINAL_URL", &cfg.Archive.FinalURL)
	str("ROO_RAPID_URL", &cfg.Archive.RapidURL)
	str("ROO_ELLIPSOID", &cfg.Observer.Ellipsoid)
	str("ROO_FRAME", &cfg.Frame)
	str("ROO_SUMMARY_DB", &cfg.SummaryDB)
	str("ROO_METRICS_FILE", &cfg.MetricsFile)
	str("ROO_LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("ROO_FETCH_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROO_FETCH_TIMEOUT value, using default", "value", v, "default", cfg.Archive.Timeout.Seconds())
		} else {
			cfg.Archive.Timeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ROO_FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ROO_FETCH_RETRIES value, using default", "value", v, "default", cfg.Archive.Retries)
		} else {
			cfg.Archive.Retries = n
		}
	}

	if v := os.Getenv("ROO_ORDER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROO_ORDER value, using default", "value", v, "default", cfg.Order)
		} else {
			cfg.Order = n
		}
	}

	if v := os.Getenv("ROO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROO_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	float := func(name string, dst *float64) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
			return
		}
		*dst = f
	}
	float("ROO_OBSERVER_LAT", &cfg.Observer.LatDeg)
	float("ROO_OBSERVER_LON", &cfg.Observer.LonDeg)
	float("ROO_OBSERVER_HEIGHT", &cfg.Observer.HeightM)

	if v := os.Getenv("ROO_DUT1_MS"); v != "" {
		ms, err := strconv.ParseFloat(strings.TrimSuffix(v, "ms"), 64)
		if err != nil {
			logger.Warn("invalid ROO_DUT1_MS value, using default", "value", v, "default", cfg.UT1MinusUTC.Milliseconds())
		} else {
			cfg.UT1MinusUTC = time.Duration(ms * float64(time.Millisecond))
		}
	}

	millis := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSuffix(v, "ms"))
		if err != nil {
			logger.Warn("invalid "+name+" value, using default", "value", v, "default", *dst)
			return
		}
		*dst = n
	}
	millis("ROO_SWEEP_START", &cfg.Sweep.StartMs)
	millis("ROO_SWEEP_STOP", &cfg.Sweep.StopMs)
	millis("ROO_SWEEP_STEP", &cfg.Sweep.StepMs)

	return cfg
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if _, err := ephemeris.ParseKind(c.Kind); err != nil {
		errs = append(errs, err)
	}
	if c.Order < 1 {
		errs = append(errs, fmt.Errorf("order must be at least 1, got %d", c.Order))
	}
	if err := c.Columns.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Observer.LatDeg < -90 || c.Observer.LatDeg > 90 {
		errs = append(errs, fmt.Errorf("observer latitude %v out of range [-90, 90]", c.Observer.LatDeg))
	}
	if _, err := transform.EllipsoidByName(c.Observer.Ellipsoid); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FrameModel(); err != nil {
		errs = append(errs, err)
	}
	if c.UT1MinusUTC < -transform.MaxDUT1 || c.UT1MinusUTC > transform.MaxDUT1 {
		errs = append(errs, fmt.Errorf("ut1MinusUTC %v out of range [-%v, %v]", c.UT1MinusUTC, transform.MaxDUT1, transform.MaxDUT1))
	}
	if len(c.Sweep.Offsets) == 0 && c.Sweep.StepMs <= 0 {
		errs = append(errs, fmt.Errorf("sweep step must be positive, got %d", c.Sweep.StepMs))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := catalog.New(c.Satellites); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EphemerisKind returns the parsed product kind.
func (c Config) EphemerisKind() ephemeris.Kind {
	k, err := ephemeris.ParseKind(c.Kind)
	if err != nil {
		return ephemeris.KindFinal
	}
	return k
}

// ObserverLocation converts the configured site to an earth-fixed observer.
func (c Config) ObserverLocation() (transform.Observer, error) {
	ell, err := transform.EllipsoidByName(c.Observer.Ellipsoid)
	if err != nil {
		return transform.Observer{}, err
	}
	return transform.NewObserver(c.Observer.LatDeg, c.Observer.LonDeg, c.Observer.HeightM, ell), nil
}

// FrameModel returns the configured frame transform. UT1MinusUTC only
// applies to the celestial frame.
func (c Config) FrameModel() (transform.Frame, error) {
	switch strings.ToLower(c.Frame) {
	case "", "celestial":
		return transform.Celestial{DUT1: c.UT1MinusUTC}, nil
	case "identity":
		return transform.Identity{}, nil
	default:
		return nil, fmt.Errorf("unknown frame %q (want celestial or identity)", c.Frame)
	}
}

// Catalog builds the satellite token table.
func (c Config) Catalog() (*catalog.Catalog, error) {
	return catalog.New(c.Satellites)
}

// FetcherConfig returns the archive client settings.
func (c Config) FetcherConfig() ephemeris.FetcherConfig {
	return ephemeris.FetcherConfig{
		FinalURL:   c.Archive.FinalURL,
		RapidURL:   c.Archive.RapidURL,
		Timeout:    c.Archive.Timeout,
		MaxRetries: c.Archive.Retries,
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
