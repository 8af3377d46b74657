package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sweeney/community-signage/internal/metrics"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
}

func TestSetCurrentMode(t *testing.T) {
	known := []string{"events", "weather", "announcements"}

	metrics.SetCurrentMode("weather", known)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CurrentMode.WithLabelValues("weather")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CurrentMode.WithLabelValues("events")))

	metrics.SetCurrentMode("", known)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CurrentMode.WithLabelValues("weather")))
}

func TestIncRefresh(t *testing.T) {
	before := testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(metrics.RefreshChanged))
	metrics.IncRefresh(metrics.RefreshChanged)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(metrics.RefreshChanged)))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 304: "3xx", 404: "4xx", 429: "4xx", 500: "5xx", 101: "1xx"}
	for code, want := range tests {
		assert.Equal(t, want, metrics.StatusClass(code), "code %d", code)
	}
}
