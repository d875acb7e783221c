package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/fetcher"
)

// Metrics holds the run counters. Each Metrics owns its registry so runs and
// tests never share state.
type Metrics struct {
	registry *prometheus.Registry

	Places          prometheus.Counter
	WebsitesFetched prometheus.Counter
	WebsiteFailures prometheus.Counter
	EmailRecords    prometheus.Counter
	BlockedPages    prometheus.Counter
	Skipped         *prometheus.CounterVec
}

// NewMetrics creates and registers the run counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Places: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cafescrape_places_total",
			Help: "Place summaries returned by search.",
		}),
		WebsitesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cafescrape_websites_fetched_total",
			Help: "Business websites fetched successfully.",
		}),
		WebsiteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cafescrape_website_failures_total",
			Help: "Business websites that could not be fetched.",
		}),
		EmailRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cafescrape_email_records_total",
			Help: "Email records produced.",
		}),
		BlockedPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cafescrape_blocked_pages_total",
			Help: "Fetched pages that looked like bot challenges or JS shells.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cafescrape_skipped_total",
			Help: "Places or fixture entries skipped, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.Places,
		m.WebsitesFetched,
		m.WebsiteFailures,
		m.EmailRecords,
		m.BlockedPages,
		m.Skipped,
	)
	return m
}

// ObserveBlocked counts a block page. It matches fetcher.WebOptions.OnBlocked.
func (m *Metrics) ObserveBlocked(_ string, _ fetcher.BlockType) {
	m.BlockedPages.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the counters in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	zap.L().Debug("metrics: wrote textfile", zap.String("path", path))
	return nil
}
