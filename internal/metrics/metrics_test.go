package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(swapRequests.WithLabelValues("submit", "conflict"))
	SwapRequest("submit", "conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(swapRequests.WithLabelValues("submit", "conflict")))

	before = testutil.ToFloat64(events.WithLabelValues("newRequest", "dropped"))
	Event("newRequest", "dropped")
	assert.Equal(t, before+1, testutil.ToFloat64(events.WithLabelValues("newRequest", "dropped")))

	g := testutil.ToFloat64(liveChannels)
	ChannelOpened()
	ChannelOpened()
	ChannelClosed()
	assert.Equal(t, g+1, testutil.ToFloat64(liveChannels))
}

func TestHTTP_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTP)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/abc123", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range mfs {
		if mf.GetName() != "skillswap_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/api/users/{id}" && labels["status"] == "418" {
				samples += m.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(1), samples)
}
