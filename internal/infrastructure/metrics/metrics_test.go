package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRead("local", nil)
	m.ObserveChange("local", "poll")
	m.SetEntries("local", 3)
	m.ObserveAdvert("multicast", nil)
	m.ObserveAdvertStates("diff", 1)
	m.ObserveHTTP("GET", "/states", 200, time.Millisecond)
	m.ObserveRemote("kitchen", "read", "ok")
	m.SetRemoteEnabled("kitchen", true)
	m.ObserveFault("cache")

	if m.Registry() != nil {
		t.Error("Registry() on nil Metrics should be nil")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestObserveRead(t *testing.T) {
	m := New()
	m.ObserveRead("local", nil)
	m.ObserveRead("local", errors.New("boom"))

	if got := testutil.ToFloat64(m.cacheReads.WithLabelValues("local")); got != 2 {
		t.Errorf("reads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cacheReadErrors.WithLabelValues("local")); got != 1 {
		t.Errorf("read errors = %v, want 1", got)
	}
}

func TestObserveAdvert(t *testing.T) {
	m := New()
	m.ObserveAdvert("multicast", nil)
	m.ObserveAdvert("multicast", nil)
	m.ObserveAdvert("multicast", errors.New("no route"))

	if got := testutil.ToFloat64(m.adverts.WithLabelValues("multicast")); got != 2 {
		t.Errorf("sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.advertErrors.WithLabelValues("multicast")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestSetRemoteEnabled(t *testing.T) {
	m := New()
	m.SetRemoteEnabled("kitchen", true)
	if got := testutil.ToFloat64(m.remoteEnabled.WithLabelValues("kitchen")); got != 1 {
		t.Errorf("enabled = %v, want 1", got)
	}
	m.SetRemoteEnabled("kitchen", false)
	if got := testutil.ToFloat64(m.remoteEnabled.WithLabelValues("kitchen")); got != 0 {
		t.Errorf("enabled = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveFault("cache")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `graysync_faults_total{module="cache"} 1`) {
		t.Errorf("exposition missing fault counter:\n%s", rec.Body.String())
	}
}
