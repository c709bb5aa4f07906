// Package metrics exposes domain counters for the vault on a Prometheus registry.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"healthvault/internal/model"
	"healthvault/internal/service"
)

const namespace = "healthvault"

// Metrics implements service.Recorder and service.Hook.
type Metrics struct {
	documentsUploaded  *prometheus.CounterVec
	documentsDeleted   prometheus.Counter
	uploadedBytes      prometheus.Counter
	blobDeleteFailures prometheus.Counter
	integrityErrors    prometheus.Counter
	sharesGenerated    prometheus.Counter
	sharesSuperseded   prometheus.Counter
	shareRedemptions   *prometheus.CounterVec
	sharesSwept        prometheus.Counter
}

var (
	_ service.Recorder = (*Metrics)(nil)
	_ service.Hook     = (*Metrics)(nil)
)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		documentsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_uploaded_total",
			Help:      "Documents committed to the registry, by category.",
		}, []string{"category"}),
		documentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Documents removed from the registry.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to the blob store by committed uploads.",
		}),
		blobDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_delete_failures_total",
			Help:      "Blob deletes that failed while the registry delete proceeded.",
		}),
		integrityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_integrity_errors_total",
			Help:      "Registry records whose blob handle did not resolve.",
		}),
		sharesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_sessions_generated_total",
			Help:      "Share sessions created.",
		}),
		sharesSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_sessions_superseded_total",
			Help:      "Active share sessions expired by a newer session for the same owner.",
		}),
		shareRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_redemptions_total",
			Help:      "Share token accesses, by outcome.",
		}, []string{"outcome"}),
		sharesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_sessions_swept_total",
			Help:      "Share sessions expired by the background sweep.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.documentsUploaded,
		m.documentsDeleted,
		m.uploadedBytes,
		m.blobDeleteFailures,
		m.integrityErrors,
		m.sharesGenerated,
		m.sharesSuperseded,
		m.shareRedemptions,
		m.sharesSwept,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) AfterUpload(_ context.Context, doc model.Document) {
	m.documentsUploaded.WithLabelValues(string(doc.Category.Bucket())).Inc()
	m.uploadedBytes.Add(float64(doc.SizeBytes))
}

func (m *Metrics) AfterDelete(context.Context, model.Document) {
	m.documentsDeleted.Inc()
}

func (m *Metrics) BlobDeleteFailed()          { m.blobDeleteFailures.Inc() }
func (m *Metrics) StorageIntegrityViolation() { m.integrityErrors.Inc() }

func (m *Metrics) ShareGenerated(superseded int64) {
	m.sharesGenerated.Inc()
	m.sharesSuperseded.Add(float64(superseded))
}

func (m *Metrics) ShareRedeemed(outcome string) {
	m.shareRedemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SharesSwept(n int64) {
	m.sharesSwept.Add(float64(n))
}
