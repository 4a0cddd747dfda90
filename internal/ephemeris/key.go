// Package ephemeris locates, downloads and caches precise orbit products.
package ephemeris

import (
	"fmt"
	"strings"
	"time"
)

// gpsEpoch is the origin of GPS week numbering.
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

const (
	secondsPerDay  = 86400
	secondsPerWeek = 7 * secondsPerDay
)

// Key identifies the daily product covering an instant: GPS week and day of week.
type Key struct {
	Week int
	Day  int
}

// KeyFor returns the product key for t. The key is computed from the
// calendar instant without leap-second correction, matching archive naming.
func KeyFor(t time.Time) Key {
	secs := t.UTC().Sub(gpsEpoch).Seconds()
	return Key{
		Week: floorDiv(secs, secondsPerWeek),
		Day:  floorDiv(secs, secondsPerDay) % 7,
	}
}

// Start returns the UTC instant the key's day begins.
func (k Key) Start() time.Time {
	return gpsEpoch.AddDate(0, 0, k.Week*7+k.Day)
}

func (k Key) String() string {
	return fmt.Sprintf("%d%d", k.Week, k.Day)
}

func floorDiv(secs float64, unit int) int {
	n := int(secs) / unit
	if secs < 0 && float64(n*unit) != secs {
		n--
	}
	return n
}

// Kind selects the final (about two weeks latency) or rapid (about one day)
// product line.
type Kind string

const (
	KindFinal Kind = "final"
	KindRapid Kind = "rapid"
)

// ParseKind validates a product kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFinal, KindRapid:
		return k, nil
	default:
		return "", fmt.Errorf("unknown ephemeris kind %q (want final or rapid)", s)
	}
}

func (k Kind) prefix() string {
	if k == KindRapid {
		return "qzr"
	}
	return "qzf"
}

// Product names one archive file.
type Product struct {
	Kind Kind
	Key  Key
}

// ProductFor returns the product of the given kind covering t.
func ProductFor(kind Kind, t time.Time) Product {
	return Product{Kind: kind, Key: KeyFor(t)}
}

// Name returns the canonical archive file name, e.g. "qzf21831.sp3".
func (p Product) Name() string {
	return p.Kind.prefix() + p.Key.String() + ".sp3"
}

// Year returns the archive directory year of the product.
func (p Product) Year() int {
	return p.Key.Start().Year()
}
