package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindvault_documents_ingested_total",
			Help: "Total documents that reached a terminal ingestion status",
		},
		[]string{"status"},
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindvault_ingestion_duration_seconds",
			Help:    "End-to-end ingestion run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindvault_chunks_indexed_total",
			Help: "Total chunk vectors written to the index",
		},
	)

	QuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindvault_quota_rejections_total",
			Help: "Requests rejected by quota checks",
		},
		[]string{"resource"},
	)

	ChatMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindvault_chat_messages_total",
			Help: "Chat turns answered",
		},
	)

	RetrievalMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindvault_retrieval_matches",
			Help:    "Number of chunks retrieved per chat query",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(IngestionDuration)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(QuotaRejections)
	prometheus.MustRegister(ChatMessages)
	prometheus.MustRegister(RetrievalMatches)
}

// IngestionTimer starts a timer observed into IngestionDuration.
func IngestionTimer() *prometheus.Timer {
	return prometheus.NewTimer(IngestionDuration)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
