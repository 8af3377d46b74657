// Package metrics exposes Prometheus collectors for the display and the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_renders_total",
		Help: "Content units rendered, by mode",
	}, []string{"mode"})

	VisitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_visits_total",
		Help: "Mode visits started, by mode",
	}, []string{"mode"})

	SkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_skips_total",
		Help: "Sequence positions skipped because the mode was unavailable",
	}, []string{"mode"})

	IdleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signage_idle_total",
		Help: "Times the rotation entered the idle state",
	})

	AdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signage_advances_total",
		Help: "Operator advance requests received",
	})

	RenderErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signage_render_errors_total",
		Help: "Render or track selection calls that failed",
	})

	CurrentMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signage_current_mode",
		Help: "1 for the mode currently on screen, 0 otherwise",
	}, []string{"mode"})

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_refresh_total",
		Help: "Content refresh attempts by result (changed, unchanged, error)",
	}, []string{"result"})

	ContentRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signage_content_revision",
		Help: "Revision of the content snapshot in use",
	})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_api_requests_total",
		Help: "API requests by route pattern and status class",
	}, []string{"route", "status"})

	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_store_writes_total",
		Help: "Store file writes by file and result",
	}, []string{"file", "result"})
)

// Refresh results.
const (
	RefreshChanged   = "changed"
	RefreshUnchanged = "unchanged"
	RefreshError     = "error"
)

// SetCurrentMode marks mode as on screen and clears every other known mode.
// An empty mode clears all of them.
func SetCurrentMode(mode string, known []string) {
	for _, m := range known {
		v := 0.0
		if m == mode {
			v = 1
		}
		CurrentMode.WithLabelValues(m).Set(v)
	}
}

// IncRefresh records a refresh outcome.
func IncRefresh(result string) {
	if result == "" {
		result = "unknown"
	}
	RefreshTotal.WithLabelValues(result).Inc()
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
