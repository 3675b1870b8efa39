package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestedChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fapdraft_ingested_chunks_total",
			Help: "Chunks written to the knowledge base",
		},
		[]string{"category"},
	)

	KnowledgeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fapdraft_knowledge_queries_total",
			Help: "Knowledge base questions answered",
		},
		[]string{"status"},
	)

	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fapdraft_classifications_total",
			Help: "Reason classifications by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fapdraft_llm_request_duration_seconds",
			Help:    "Latency of LLM and embedding provider calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	PetitionGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fapdraft_petition_generations_total",
			Help: "Petition generations by final status",
		},
		[]string{"status"},
	)

	PetitionGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fapdraft_petition_generation_duration_seconds",
			Help:    "Time spent composing a petition",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(
		IngestedChunks,
		KnowledgeQueries,
		Classifications,
		LLMRequestDuration,
		PetitionGenerations,
		PetitionGenerationDuration,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
