package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the chat qualification flow.
type LeadMetrics struct {
	turnsTotal       *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	otpEvents        *prometheus.CounterVec
	crmSubmissions   *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by outcome",
		}, []string{"outcome"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "chat",
			Name:      "stage_transitions_total",
			Help:      "Conversation stage transitions",
		}, []string{"from", "to"}),
		otpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Name:      "otp_events_total",
			Help:      "OTP sends and verification outcomes",
		}, []string{"event"}),
		crmSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Name:      "crm_submissions_total",
			Help:      "CRM lead submissions by status",
		}, []string{"status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "realty",
			Name:      "llm_latency_seconds",
			Help:      "Latency of language model calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.stageTransitions, m.otpEvents, m.crmSubmissions, m.llmLatency)
	return m
}

func (m *LeadMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveStageTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.stageTransitions.WithLabelValues(from, to).Inc()
}

func (m *LeadMetrics) ObserveOTP(event string) {
	if m == nil {
		return
	}
	m.otpEvents.WithLabelValues(event).Inc()
}

func (m *LeadMetrics) ObserveCRM(status string) {
	if m == nil {
		return
	}
	m.crmSubmissions.WithLabelValues(status).Inc()
}

func (m *LeadMetrics) ObserveLLMLatency(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider, status).Observe(seconds)
}
