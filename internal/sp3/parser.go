// Package sp3 reads precise orbit products in the SP3-a/c/d text format.
package sp3

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pupper42/roo-analysis/internal/transform"
)

// Parse reads an SP3 product from r. Only epoch ("*") and position ("P")
// records are used; clock values and velocity records are ignored.
// Malformed records are skipped with a warning log, as are positions that
// are zero or otherwise implausible (the format's "missing" marker).
func Parse(r io.Reader, logger *slog.Logger) (*Product, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	p := &Product{
		TimeSystem: "GPS",
		samples:    make(map[string][]Sample),
	}

	var (
		epoch     time.Time
		haveEpoch bool
		sysRead   bool
		lineNo    int
		skipped   int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line == "" {
			continue
		}

		switch {
		case lineNo == 1:
			if len(line) < 3 || line[0] != '#' {
				return nil, fmt.Errorf("not an SP3 file: first line %q", truncate(line, 20))
			}
			p.Version = line[1]

		case strings.HasPrefix(line, "%c") && !sysRead:
			// First %c record carries the time system in its fourth field.
			sysRead = true
			if fields := strings.Fields(line); len(fields) >= 4 && fields[3] != "ccc" {
				p.TimeSystem = fields[3]
			}

		case line[0] == '*':
			t, err := parseEpoch(line[1:])
			if err != nil {
				logger.Warn("skipping malformed SP3 epoch", "line", lineNo, "error", err)
				haveEpoch = false
				skipped++
				continue
			}
			epoch = t
			haveEpoch = true
			p.Epochs = append(p.Epochs, t)

		case line[0] == 'P' && len(line) >= 4:
			if !haveEpoch {
				skipped++
				continue
			}
			id, pos, err := parsePosition(line)
			if err != nil {
				logger.Warn("skipping malformed SP3 position", "line", lineNo, "error", err)
				skipped++
				continue
			}
			if !transform.PlausibleOrbit(pos) {
				logger.Debug("skipping missing SP3 position", "line", lineNo, "satellite", id)
				skipped++
				continue
			}
			p.samples[id] = append(p.samples[id], Sample{Time: epoch, Position: pos})

		case strings.HasPrefix(line, "EOF"):
			return finish(p, logger, skipped)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading SP3 data: %w", err)
	}

	return finish(p, logger, skipped)
}

func finish(p *Product, logger *slog.Logger, skipped int) (*Product, error) {
	if len(p.Epochs) == 0 {
		return nil, fmt.Errorf("SP3 product has no epochs")
	}
	logger.Debug("parsed SP3 product",
		"version", string(p.Version),
		"time_system", p.TimeSystem,
		"epochs", len(p.Epochs),
		"satellites", len(p.samples),
		"skipped_records", skipped,
	)
	return p, nil
}

// parseEpoch parses "  YYYY MM DD hh mm ss.ssssssss".
func parseEpoch(s string) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) < 6 {
		return time.Time{}, fmt.Errorf("epoch has %d fields, want 6", len(fields))
	}

	var parts [5]int
	for i := 0; i < 5; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch field %q: %w", fields[i], err)
		}
		parts[i] = n
	}
	sec, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch seconds %q: %w", fields[5], err)
	}

	whole, frac := math.Modf(sec)
	nsec := int(math.Round(frac*1e9/1e3)) * 1e3 // microsecond resolution

	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], int(whole), nsec, time.UTC), nil
}

// parsePosition parses "P<sat> x y z [clock ...]" with coordinates in km.
func parsePosition(line string) (string, r3.Vec, error) {
	id := normalizeID(line[1:4])
	if id == "" {
		return "", r3.Vec{}, fmt.Errorf("invalid satellite id %q", line[1:4])
	}

	fields := strings.Fields(line[4:])
	if len(fields) < 3 {
		return "", r3.Vec{}, fmt.Errorf("satellite %s: %d coordinate fields, want 3", id, len(fields))
	}

	var xyz [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return "", r3.Vec{}, fmt.Errorf("satellite %s: invalid coordinate %q: %w", id, fields[i], err)
		}
		xyz[i] = v
	}

	return id, r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// normalizeID maps SP3-a style ids ("  5", " 05") to "G05"; SP3-c ids pass through.
func normalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		n, err := strconv.Atoi(s)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("G%02d", n)
	}
	if len(s) != 3 {
		return ""
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[1:]))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%c%02d", s[0], n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
