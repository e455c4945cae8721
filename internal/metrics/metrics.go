package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalGenerated atomic.Int64

var (
	TrainStepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "train_steps_total",
		Help: "The total number of optimizer updates performed",
	})

	TrainLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "train_loss",
		Help: "Cross-entropy loss of the most recent training step",
	})

	TrainStepDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "train_step_duration_seconds",
		Help: "Duration of a full forward/backward/update step",
	})

	GenerateTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generate_tokens_total",
		Help: "The total number of tokens produced by greedy decoding",
	})

	GenerateDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "generate_duration_seconds",
		Help: "Duration of generation runs",
	})

	GenerateStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "generate_step_duration_seconds",
		Help:    "Histogram of per-token decode step times",
		Buckets: prometheus.DefBuckets,
	})

	TokenizerEncodeLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tokenizer_encode_length",
		Help:    "Length of encoded token sequences",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})

	TokenizerUnknownTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokenizer_unknown_tokens_total",
		Help: "Count of unknown words encountered during encoding",
	})

	DatasetRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataset_records_total",
		Help: "Total number of text records loaded, by source",
	}, []string{"source"})

	ContextLengthHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "context_length_tokens",
		Help:    "Distribution of context lengths processed",
		Buckets: []float64{4, 8, 16, 32, 64, 128, 256, 512},
	})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})
)

func RecordTrainStep(loss float64, duration time.Duration) {
	TrainStepsTotal.Inc()
	TrainLoss.Set(loss)
	TrainStepDuration.Observe(duration.Seconds())
}

func RecordGeneration(tokens int, duration time.Duration) {
	GenerateTokensTotal.Add(float64(tokens))
	totalGenerated.Add(int64(tokens))
	GenerateDuration.Observe(duration.Seconds())
}

func RecordGenerateStep(duration time.Duration) {
	GenerateStepDuration.Observe(duration.Seconds())
}

func RecordTokenizerEncode(length int, unknownCount int) {
	TokenizerEncodeLength.Observe(float64(length))
	if unknownCount > 0 {
		TokenizerUnknownTokens.Add(float64(unknownCount))
	}
}

func RecordDatasetRecords(source string, count int) {
	DatasetRecordsTotal.WithLabelValues(source).Add(float64(count))
}

func RecordContextLength(tokens int) {
	ContextLengthHistogram.Observe(float64(tokens))
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

// TotalGenerated reports the process-lifetime token count.
func TotalGenerated() int64 {
	return totalGenerated.Load()
}
