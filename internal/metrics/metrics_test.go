package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveFetch(t *testing.T) {
	beforeOK := value(t, fetchTotal.WithLabelValues("success"))
	beforeFail := value(t, fetchTotal.WithLabelValues("failure"))
	beforeBytes := value(t, fetchBytesTotal)

	ObserveFetch(120*time.Millisecond, 2048, true)
	ObserveFetch(30*time.Millisecond, 0, false)

	if got := value(t, fetchTotal.WithLabelValues("success")) - beforeOK; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := value(t, fetchTotal.WithLabelValues("failure")) - beforeFail; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
	if got := value(t, fetchBytesTotal) - beforeBytes; got != 2048 {
		t.Errorf("bytes delta = %v, want 2048", got)
	}
}

func TestRecordFileOutcomes(t *testing.T) {
	for _, outcome := range []string{"written", "skipped", "failed"} {
		before := value(t, filesTotal.WithLabelValues(outcome))
		RecordFile(outcome)
		if got := value(t, filesTotal.WithLabelValues(outcome)) - before; got != 1 {
			t.Errorf("%s delta = %v, want 1", outcome, got)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	AddRecords(10, 2)
	IncCacheHits()

	path := filepath.Join(t.TempDir(), "roo.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	for _, name := range []string{"roo_records_total", "roo_records_extrapolated_total", "roo_ephemeris_cache_hits_total"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("textfile missing %s", name)
		}
	}
}
