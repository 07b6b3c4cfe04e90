package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the moderation counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry        *prometheus.Registry
	messagesChecked *prometheus.CounterVec
	checkFailures   *prometheus.CounterVec
	inviteLookups   *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
	superseded      prometheus.Counter
	cleanupFailures *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_messages_checked_total",
			Help: "Advertisement messages run through the check pipeline by outcome.",
		}, []string{"outcome"}),
		checkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_check_failures_total",
			Help: "Failed pipeline stages.",
		}, []string{"stage"}),
		inviteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_invite_lookups_total",
			Help: "Invite metadata lookups by result.",
		}, []string{"result"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_history_reconciled_total",
			Help: "Store records reconciled after their message disappeared.",
		}, []string{"outcome"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promo_superseded_posts_total",
			Help: "Earlier posts removed because their author reposted within the grace period.",
		}),
		cleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promo_warning_cleanup_failures_total",
			Help: "Failed deletions after a warning delay.",
		}, []string{"target"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesChecked,
		m.checkFailures,
		m.inviteLookups,
		m.reconciled,
		m.superseded,
		m.cleanupFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageChecked(outcome string) {
	if m == nil {
		return
	}
	m.messagesChecked.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CheckFailed(stage string) {
	if m == nil {
		return
	}
	m.checkFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) InviteLookup(result string) {
	if m == nil {
		return
	}
	m.inviteLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Superseded() {
	if m == nil {
		return
	}
	m.superseded.Inc()
}

func (m *Metrics) CleanupFailed(target string) {
	if m == nil {
		return
	}
	m.cleanupFailures.WithLabelValues(target).Inc()
}
