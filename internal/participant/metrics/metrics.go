package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProvisionAttempts  *prometheus.CounterVec
	DeprovisionResults *prometheus.CounterVec
	ProvisionDuration  prometheus.Histogram
	CredentialRequests prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ProvisionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataspace_participant_provision_attempts_total",
			Help: "Participant provisioning attempts by outcome",
		}, []string{"outcome"}),
		DeprovisionResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataspace_participant_deprovision_total",
			Help: "Participant deprovisioning runs by outcome",
		}, []string{"outcome"}),
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataspace_participant_provision_duration_seconds",
			Help:    "Duration of the provisioning saga including external calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CredentialRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_credential_requests_total",
			Help: "Total number of credential issuance batches requested",
		}),
	}
}

func (m *Metrics) ObserveProvision(start time.Time, outcome string) {
	m.ProvisionAttempts.WithLabelValues(outcome).Inc()
	m.ProvisionDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveDeprovision(outcome string) {
	m.DeprovisionResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCredentialRequests() {
	m.CredentialRequests.Inc()
}
