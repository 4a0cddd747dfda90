package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pupper42/roo-analysis/internal/metrics"
)

const (
	DefaultFinalURL = "https://sys.qzss.go.jp/archives/final-sp3/"
	DefaultRapidURL = "https://sys.qzss.go.jp/archives/rapid-sp3/"

	// maxBodyBytes bounds a single product download. Daily multi-GNSS SP3
	// files are a few MB.
	maxBodyBytes = 50 << 20

	defaultTimeout = 30 * time.Second
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// ErrNotPublished is returned when the archive has no file for the product yet.
var ErrNotPublished = errors.New("ephemeris product not published")

// RetrievalError describes a failed archive download.
type RetrievalError struct {
	Product string
	URL     string
	Status  int // 0 when no response was received
	Err     error
}

func (e *RetrievalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("retrieving %s from %s: status %d: %v", e.Product, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("retrieving %s from %s: %v", e.Product, e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Resolver returns the raw bytes of a product.
type Resolver interface {
	Resolve(ctx context.Context, p Product) ([]byte, error)
}

// FetcherConfig configures the archive client.
type FetcherConfig struct {
	FinalURL   string
	RapidURL   string
	Timeout    time.Duration // per attempt
	MaxRetries int
}

// HTTPFetcher retrieves products from the remote archive.
type HTTPFetcher struct {
	cfg        FetcherConfig
	httpClient *http.Client
	logger     *slog.Logger
	backoff    time.Duration
}

// NewHTTPFetcher creates an archive client. Empty URLs fall back to the
// QZSS archive, a zero timeout to 30 s.
func NewHTTPFetcher(cfg FetcherConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.FinalURL == "" {
		cfg.FinalURL = DefaultFinalURL
	}
	if cfg.RapidURL == "" {
		cfg.RapidURL = DefaultRapidURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &HTTPFetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		backoff: baseBackoff,
	}
}

// URL returns the archive location of a product: <base>/<year>/<name>.
func (f *HTTPFetcher) URL(p Product) string {
	base := f.cfg.FinalURL
	if p.Kind == KindRapid {
		base = f.cfg.RapidURL
	}
	return strings.TrimRight(base, "/") + "/" + strconv.Itoa(p.Year()) + "/" + p.Name()
}

// Resolve downloads a product, retrying network errors and 5xx responses
// with exponential backoff. A 404 fails immediately with ErrNotPublished.
func (f *HTTPFetcher) Resolve(ctx context.Context, p Product) ([]byte, error) {
	url := f.URL(p)
	backoff := f.backoff

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying ephemeris download",
				"product", p.Name(),
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, &RetrievalError{Product: p.Name(), URL: url, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		start := time.Now()
		body, err := f.fetchOnce(ctx, p, url)
		metrics.ObserveFetch(time.Since(start), len(body), err == nil)
		if err == nil {
			f.logger.Info("downloaded ephemeris",
				"product", p.Name(),
				"url", url,
				"size", humanize.Bytes(uint64(len(body))),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return body, nil
		}
		lastErr = err

		var re *RetrievalError
		if errors.Is(err, ErrNotPublished) || ctx.Err() != nil ||
			(errors.As(err, &re) && re.Status != 0 && re.Status < 500) {
			break
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, p Product, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RetrievalError{Product: p.Name(), URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &RetrievalError{Product: p.Name(), URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &RetrievalError{Product: p.Name(), URL: url, Status: resp.StatusCode, Err: ErrNotPublished}
	case resp.StatusCode != http.StatusOK:
		return nil, &RetrievalError{Product: p.Name(), URL: url, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &RetrievalError{Product: p.Name(), URL: url, Status: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &RetrievalError{Product: p.Name(), URL: url, Status: resp.StatusCode, Err: fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)}
	}
	if len(body) == 0 || body[0] != '#' {
		return nil, &RetrievalError{Product: p.Name(), URL: url, Status: resp.StatusCode, Err: errors.New("response is not an SP3 product")}
	}

	return body, nil
}
