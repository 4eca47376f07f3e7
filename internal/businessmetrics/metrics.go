package businessmetrics

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	complaintsFiled   prometheus.Counter
	paymentsConfirmed *prometheus.CounterVec
	feesCollected     *prometheus.CounterVec
	lettersIssued     *prometheus.CounterVec
	engineErrors      *prometheus.CounterVec
	memoryBytes       prometheus.Gauge
	openComplaints    prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		complaintsFiled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grievance_complaints_filed_total",
			Help: "Complaints accepted for filing.",
		}),
		paymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_payments_confirmed_total",
			Help: "Filing fees confirmed by the payment gateway.",
		}, []string{"provider"}),
		feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_fees_collected_cents_total",
			Help: "Filing fees collected, in minor currency units.",
		}, []string{"provider"}),
		lettersIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_letters_issued_total",
			Help: "Response letters stored, by outcome.",
		}, []string{"outcome"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_engine_errors_total",
			Help: "Letter generation failures by stage.",
		}, []string{"operation"}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grievance_process_memory_bytes",
			Help: "Memory obtained from the OS by the process.",
		}),
		openComplaints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grievance_open_complaints",
			Help: "Complaints not yet resolved.",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.complaintsFiled,
			m.paymentsConfirmed,
			m.feesCollected,
			m.lettersIssued,
			m.engineErrors,
			m.memoryBytes,
			m.openComplaints,
		)
	}
	return m
}
