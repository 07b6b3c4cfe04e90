package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessageChecked("passed")
	m.MessageChecked("passed")
	m.CheckFailed("history_by_code")
	m.InviteLookup("cache_hit")
	m.Superseded()

	if got := testutil.ToFloat64(m.messagesChecked.WithLabelValues("passed")); got != 2 {
		t.Fatalf("expected 2 passed, got %v", got)
	}
	if got := testutil.ToFloat64(m.checkFailures.WithLabelValues("history_by_code")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.superseded); got != 1 {
		t.Fatalf("expected 1 superseded, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.MessageChecked("passed")
	m.CleanupFailed("reply")
	m.Reconciled("purged")
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.InviteLookup("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `promo_invite_lookups_total{result="ok"} 1`) {
		t.Fatalf("metric missing from output:\n%s", rec.Body.String())
	}
}
