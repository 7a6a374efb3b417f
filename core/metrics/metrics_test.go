package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConversationCounters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ConversationStarted("top_news")
	c.ConversationStarted("top_news")
	c.ConversationEnded("top_news", "ended")
	c.ValidationFailed("edit_topics:add_topic_name")
	c.DocumentSent("pdf")
	c.SessionsEvicted(3)
	c.SessionsEvicted(0)

	if got := testutil.ToFloat64(c.started.WithLabelValues("top_news")); got != 2 {
		t.Fatalf("started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ended.WithLabelValues("top_news", "ended")); got != 1 {
		t.Fatalf("ended = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.validation.WithLabelValues("edit_topics:add_topic_name")); got != 1 {
		t.Fatalf("validation = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.documents.WithLabelValues("pdf")); got != 1 {
		t.Fatalf("documents = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evicted); got != 3 {
		t.Fatalf("evicted = %v, want 3", got)
	}
}

func TestObserveFetch(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveFetch("search", 120*time.Millisecond, nil)
	c.ObserveFetch("search", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(c.fetchErrors.WithLabelValues("search")); got != 1 {
		t.Fatalf("fetch errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.fetchLatency); got != 1 {
		t.Fatalf("latency series = %d, want 1", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	expected := `
# HELP newsbot_active_sessions Users currently inside a conversation.
# TYPE newsbot_active_sessions gauge
newsbot_active_sessions 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "newsbot_active_sessions"); err != nil {
		t.Fatalf("gauge before tracking: %v", err)
	}

	n := 4
	c.TrackSessions(func() int { return n })
	expected = `
# HELP newsbot_active_sessions Users currently inside a conversation.
# TYPE newsbot_active_sessions gauge
newsbot_active_sessions 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "newsbot_active_sessions"); err != nil {
		t.Fatalf("gauge after tracking: %v", err)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.UpdateHandled("top_news", "ok")
	c.RateLimited()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"newsbot_updates_handled_total", "newsbot_updates_rate_limited_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("response missing %s", name)
		}
	}
}
