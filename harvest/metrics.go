package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pii-harvester/entity"
)

// Metrics are registered on a private registry per runner so repeated runners
// in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	FilesClassified prometheus.Counter
	DatabasesCopied prometheus.Counter
	TablesExported  *prometheus.CounterVec
	Entities        *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	FileSeconds     prometheus.Histogram
	LastRunSeconds  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FilesClassified: f.NewCounter(prometheus.CounterOpts{
			Name: "piiharvest_files_classified_total",
			Help: "Files carrying the SQLite signature",
		}),
		DatabasesCopied: f.NewCounter(prometheus.CounterOpts{
			Name: "piiharvest_databases_copied_total",
			Help: "Databases copied under their identifier",
		}),
		TablesExported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "piiharvest_tables_total",
			Help: "Tables visited during export by outcome",
		}, []string{"status"}),
		Entities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "piiharvest_entity_occurrences_total",
			Help: "Entity occurrences found by kind",
		}, []string{"kind"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "piiharvest_errors_total",
			Help: "Recovered failures by type",
		}, []string{"type"}),
		FileSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "piiharvest_file_seconds",
			Help:    "Time spent exporting and scanning one database",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		LastRunSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "piiharvest_last_run_seconds",
			Help: "Wall time of the last completed run",
		}),
	}
}

func (m *Metrics) observeExport(fe *FileExport) {
	if m == nil || fe == nil {
		return
	}
	if fe.CopyPath != "" {
		m.DatabasesCopied.Inc()
	}
	empty := fe.Tables - len(fe.Artifacts) - len(fe.TableErrors) - len(fe.Overwritten)
	m.TablesExported.WithLabelValues("exported").Add(float64(len(fe.Artifacts)))
	m.TablesExported.WithLabelValues("failed").Add(float64(len(fe.TableErrors)))
	if len(fe.Overwritten) > 0 {
		m.TablesExported.WithLabelValues("overwritten").Add(float64(len(fe.Overwritten)))
	}
	if empty > 0 {
		m.TablesExported.WithLabelValues("empty").Add(float64(empty))
	}
}

func (m *Metrics) observeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.Errors.WithLabelValues(errorType(err)).Inc()
}

func (m *Metrics) observeCorpus(c *entity.Corpus) {
	if m == nil || c == nil {
		return
	}
	for _, k := range entity.Kinds {
		m.Entities.WithLabelValues(string(k)).Add(float64(c.Index(k).Total()))
	}
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
