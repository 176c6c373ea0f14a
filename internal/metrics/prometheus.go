package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradelens_documents_uploaded_total",
			Help: "Total documents uploaded",
		},
		[]string{"doc_type"},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gradelens_extraction_duration_seconds",
			Help:    "Text extraction duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180},
		},
	)

	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradelens_extractions_total",
			Help: "Total text extractions by outcome",
		},
		[]string{"status"},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradelens_predictions_total",
			Help: "Total predictions by model",
		},
		[]string{"model"},
	)

	CombinedConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradelens_combined_confidence_total",
			Help: "Combined predictions by confidence level",
		},
		[]string{"confidence"},
	)

	TrainingExamplesAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gradelens_training_examples_added_total",
			Help: "Total training examples appended",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradelens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(DocumentsUploaded)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(ExtractionsTotal)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(CombinedConfidence)
	prometheus.MustRegister(TrainingExamplesAdded)
	prometheus.MustRegister(LLMTokensUsed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
