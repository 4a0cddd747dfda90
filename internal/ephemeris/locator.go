package ephemeris

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pupper42/roo-analysis/internal/metrics"
)

// Locator is a cache-first Resolver: products already present in the cache
// directory are served from disk, anything else is fetched from the wrapped
// Resolver and written to the cache before use. Cache entries never expire;
// remove files from the directory to force a re-download.
type Locator struct {
	dir    string
	kind   Kind
	remote Resolver
	logger *slog.Logger
	group  singleflight.Group
}

// NewLocator creates a Locator caching products of the given kind in dir.
func NewLocator(dir string, kind Kind, remote Resolver, logger *slog.Logger) *Locator {
	return &Locator{
		dir:    dir,
		kind:   kind,
		remote: remote,
		logger: logger,
	}
}

// Kind returns the product kind this locator serves.
func (l *Locator) Kind() Kind {
	return l.kind
}

// Path returns the cache path of a product, whether or not it exists.
func (l *Locator) Path(p Product) string {
	return filepath.Join(l.dir, p.Name())
}

// Locate returns the local path of the product covering epoch, downloading
// it first if it is not cached. A download failure is returned as is; no
// other product is substituted.
func (l *Locator) Locate(ctx context.Context, epoch time.Time) (string, error) {
	p := ProductFor(l.kind, epoch)
	if err := l.ensure(ctx, p); err != nil {
		return "", err
	}
	return l.Path(p), nil
}

// Resolve returns the product bytes, from cache when possible.
func (l *Locator) Resolve(ctx context.Context, p Product) ([]byte, error) {
	if err := l.ensure(ctx, p); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path(p))
	if err != nil {
		return nil, fmt.Errorf("reading cached %s: %w", p.Name(), err)
	}
	return data, nil
}

// ensure makes sure the product file exists in the cache. Concurrent callers
// for the same product share one download.
func (l *Locator) ensure(ctx context.Context, p Product) error {
	path := l.Path(p)
	if cached(path) {
		metrics.IncCacheHits()
		l.logger.Debug("ephemeris cache hit", "product", p.Name(), "path", path)
		return nil
	}

	_, err, shared := l.group.Do(p.Name(), func() (any, error) {
		// Another flight may have finished between the check and Do.
		if cached(path) {
			return nil, nil
		}
		metrics.IncCacheMisses()

		data, err := l.remote.Resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		return nil, l.write(path, data)
	})
	if err != nil {
		return err
	}
	if shared {
		l.logger.Debug("ephemeris download shared", "product", p.Name())
	}
	return nil
}

// write stores data verbatim through a temp file and rename so readers never
// observe a partially written product.
func (l *Locator) write(path string, data []byte) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func cached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
