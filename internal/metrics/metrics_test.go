package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TestRegistrySettersAppearOnScrape exercises every setter once (promauto
// panics on double registration, so a single New() is shared across
// assertions within this one test function rather than split across
// several).
func TestRegistrySettersAppearOnScrape(t *testing.T) {
	r := New()

	r.SetActiveSessions(2)
	r.SetQueuedSessions(1)
	r.AddBytesTransmitted(1024)
	r.SetFillRatio("sess-1", 0.5)
	r.SetChannelPower("sess-1", 0.001)
	r.SetSquelchOpen("sess-1", true)
	r.IncConnections()
	r.IncBlacklisted()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	promhttp.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"remoteiq_active_sessions 2",
		"remoteiq_queued_sessions 1",
		"remoteiq_bytes_transmitted_total 1024",
		`remoteiq_session_fill_ratio{session_id="sess-1"} 0.5`,
		`remoteiq_squelch_open{session_id="sess-1"} 1`,
		"remoteiq_connections_total 1",
		"remoteiq_blacklisted_connections_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected scrape output to contain %q", want)
		}
	}

	r.DeleteSession("sess-1")
	rec2 := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec2, req)
	if strings.Contains(rec2.Body.String(), `session_id="sess-1"`) {
		t.Error("expected sess-1 labels to be gone after DeleteSession")
	}
}
