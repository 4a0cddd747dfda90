// Package catalog maps telescope file names to satellite identifiers.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrUnrecognizedSatellite is returned when a file name contains no known token.
	ErrUnrecognizedSatellite = errors.New("unrecognized satellite")
	// ErrAmbiguousSatellite is returned when a file name matches tokens of
	// different satellites and neither is the longest match.
	ErrAmbiguousSatellite = errors.New("ambiguous satellite")
)

var satellitePattern = regexp.MustCompile(`^[A-Z][0-9]{2}$`)

// Default is the token table for the QZSS and GPS satellites observed at ROO.
func Default() map[string]string {
	return map[string]string{
		"qzs1":  "J01",
		"qzs2":  "J02",
		"qzs3":  "J07",
		"qzs4":  "J03",
		"prn5":  "G05",
		"prn18": "G18",
	}
}

type entry struct {
	token     string
	satellite string
}

// Catalog is an immutable token table. Tokens are matched case-insensitively
// as substrings of a file's base name.
type Catalog struct {
	entries []entry // longest token first
}

// New validates the table and builds a Catalog.
func New(tokens map[string]string) (*Catalog, error) {
	if len(tokens) == 0 {
		return nil, errors.New("satellite token table is empty")
	}

	seen := make(map[string]string, len(tokens))
	entries := make([]entry, 0, len(tokens))
	for tok, sat := range tokens {
		key := strings.ToLower(strings.TrimSpace(tok))
		if key == "" {
			return nil, errors.New("satellite token table has an empty token")
		}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("token %q is listed twice (%s, %s)", key, prev, sat)
		}
		if !satellitePattern.MatchString(sat) {
			return nil, fmt.Errorf("token %q: invalid satellite id %q", tok, sat)
		}
		seen[key] = sat
		entries = append(entries, entry{token: key, satellite: sat})
	}

	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].token) != len(entries[j].token) {
			return len(entries[i].token) > len(entries[j].token)
		}
		return entries[i].token < entries[j].token
	})
	return &Catalog{entries: entries}, nil
}

// Match returns the satellite encoded in the base name of path. When several
// tokens match, the longest wins, so "prn18" is not read as "prn1". Equal
// length matches naming different satellites are ambiguous.
func (c *Catalog) Match(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))

	var best *entry
	for i := range c.entries {
		e := &c.entries[i]
		if best != nil && len(e.token) < len(best.token) {
			break
		}
		if !strings.Contains(name, e.token) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if e.satellite != best.satellite {
			return "", fmt.Errorf("%w: %s matches %q and %q", ErrAmbiguousSatellite, filepath.Base(path), best.token, e.token)
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: %s", ErrUnrecognizedSatellite, filepath.Base(path))
	}
	return best.satellite, nil
}

// Satellites returns the distinct satellite ids in the table, sorted.
func (c *Catalog) Satellites() []string {
	set := make(map[string]struct{}, len(c.entries))
	for _, e := range c.entries {
		set[e.satellite] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
