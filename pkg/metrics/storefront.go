package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics tracks ticket selection, cart and checkout activity.
type StorefrontMetrics struct {
	selections    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	commits       prometheus.Counter
	cartMutations *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	workspaces    prometheus.Gauge
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	selections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_selection_outcomes_total",
		Help: "Date selections by outcome (applied, rejected, stale, failed).",
	}, []string{"outcome"})
	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tour_api_fetch_duration_seconds",
		Help:    "Duration of tour API fetches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	commits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ticket_selection_commits_total",
		Help: "Ticket selections committed to a cart.",
	})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart store mutations by operation.",
	}, []string{"operation"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_results_total",
		Help: "Checkout submissions by result.",
	}, []string{"result"})
	workspaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_workspaces",
		Help: "Storefront sessions currently held in memory.",
	})
	reg.MustRegister(selections, fetchDuration, commits, cartMutations, checkouts, workspaces)
	return &StorefrontMetrics{
		selections:    selections,
		fetchDuration: fetchDuration,
		commits:       commits,
		cartMutations: cartMutations,
		checkouts:     checkouts,
		workspaces:    workspaces,
	}
}

// IncSelection counts a date selection outcome.
func (m *StorefrontMetrics) IncSelection(outcome string) {
	if m == nil || m.selections == nil {
		return
	}
	m.selections.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveFetch records how long a tour API call took.
func (m *StorefrontMetrics) ObserveFetch(operation string, duration time.Duration) {
	if m == nil || m.fetchDuration == nil {
		return
	}
	m.fetchDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncCommit counts a committed selection.
func (m *StorefrontMetrics) IncCommit() {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.Inc()
}

// IncCartMutation counts a cart operation that changed state.
func (m *StorefrontMetrics) IncCartMutation(operation string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncCheckout counts a checkout submission result.
func (m *StorefrontMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetWorkspaces reports the number of live storefront sessions.
func (m *StorefrontMetrics) SetWorkspaces(count int) {
	if m == nil || m.workspaces == nil {
		return
	}
	m.workspaces.Set(float64(count))
}
