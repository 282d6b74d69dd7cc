package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/quotecheck/internal/embeddings"

// Purpose says what a text is embedded for. It labels embedding metrics so snippet
// indexing, search queries and confidence scoring can be told apart.
type Purpose string

// Embedding purposes.
const (
	PurposeSnippets    Purpose = "snippets"
	PurposeQuery       Purpose = "query"
	PurposeConfidence  Purpose = "confidence"
	PurposeUnspecified Purpose = "unspecified"
)

type purposeKey struct{}

// WithPurpose tags ctx with the reason for the embedding calls made under it.
func WithPurpose(ctx context.Context, p Purpose) context.Context {
	return context.WithValue(ctx, purposeKey{}, p)
}

// PurposeFrom returns the purpose set by WithPurpose, or PurposeUnspecified.
func PurposeFrom(ctx context.Context) Purpose {
	if p, ok := ctx.Value(purposeKey{}).(Purpose); ok && p != "" {
		return p
	}
	return PurposeUnspecified
}

// Metrics records embedding calls per provider, model and purpose.
type Metrics struct {
	provider string
	meter    metric.Meter
	logger   *zap.Logger

	duration metric.Float64Histogram
	texts    metric.Int64Histogram
	empty    metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetrics creates the instruments for provider ("tei" or "fastembed").
func NewMetrics(provider string, logger *zap.Logger) *Metrics {
	m := &Metrics{
		provider: provider,
		meter:    otel.Meter(embeddingsInstrumentationName),
		logger:   logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"quotecheck.embedding.duration_seconds",
		metric.WithDescription("Embedding call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create embedding duration histogram", zap.Error(err))
	}

	m.texts, err = m.meter.Int64Histogram(
		"quotecheck.embedding.texts_per_call",
		metric.WithDescription("Snippets or queries sent per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64, 128),
	)
	if err != nil {
		m.logger.Warn("failed to create embedding texts histogram", zap.Error(err))
	}

	m.empty, err = m.meter.Int64Counter(
		"quotecheck.embedding.empty_vectors_total",
		metric.WithDescription("Vectors returned empty; the snippets they belong to are skipped"),
		metric.WithUnit("{vector}"),
	)
	if err != nil {
		m.logger.Warn("failed to create empty vector counter", zap.Error(err))
	}

	m.failures, err = m.meter.Int64Counter(
		"quotecheck.embedding.failures_total",
		metric.WithDescription("Embedding calls that returned an error"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		m.logger.Warn("failed to create embedding failure counter", zap.Error(err))
	}
}

// record reports one call that sent texts texts and got vectors back.
func (m *Metrics) record(ctx context.Context, model string, texts int, vectors [][]float32, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", m.provider),
		attribute.String("model", model),
		attribute.String("purpose", string(PurposeFrom(ctx))),
	)

	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), attrs)
	}
	if texts > 0 && m.texts != nil {
		m.texts.Record(ctx, int64(texts), attrs)
	}
	if err != nil {
		if m.failures != nil {
			m.failures.Add(ctx, 1, attrs)
		}
		return
	}
	if m.empty != nil {
		if n := emptyVectors(texts, vectors); n > 0 {
			m.empty.Add(ctx, int64(n), attrs)
		}
	}
}

// emptyVectors counts texts left without a vector, including a short response.
func emptyVectors(texts int, vectors [][]float32) int {
	n := max(texts-len(vectors), 0)
	for _, v := range vectors {
		if len(v) == 0 {
			n++
		}
	}
	return n
}
