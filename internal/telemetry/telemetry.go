// Package telemetry provides OpenTelemetry instruments for textclust.
//
// Instruments are created from the global providers, which are no-ops until
// the process installs real ones.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies textclust to OpenTelemetry.
const InstrumentationName = "github.com/thebtf/textclust"

// Outcome values recorded with every request.
const (
	OutcomeOK         = "ok"
	OutcomeBadInput   = "bad_input"
	OutcomeInternal   = "internal"
	OutcomeOverloaded = "overloaded"
)

var tracer = otel.Tracer(InstrumentationName)

// Recorder records clustering request metrics.
type Recorder struct {
	requests  metric.Int64Counter
	documents metric.Int64Counter
	duration  metric.Float64Histogram
	clusters  metric.Int64Histogram
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	requests, err := meter.Int64Counter("textclust.requests",
		metric.WithDescription("Clustering requests by algorithm and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	documents, err := meter.Int64Counter("textclust.documents",
		metric.WithDescription("Documents submitted for clustering"))
	if err != nil {
		return nil, fmt.Errorf("create documents counter: %w", err)
	}
	duration, err := meter.Float64Histogram("textclust.duration",
		metric.WithDescription("Clustering request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	clusters, err := meter.Int64Histogram("textclust.clusters",
		metric.WithDescription("Clusters produced per successful request"))
	if err != nil {
		return nil, fmt.Errorf("create clusters histogram: %w", err)
	}
	return &Recorder{requests: requests, documents: documents, duration: duration, clusters: clusters}, nil
}

// Default returns a recorder on the global meter provider. Creation errors
// fall back to a recorder that drops everything.
func Default() *Recorder {
	r, err := NewRecorder(otel.Meter(InstrumentationName))
	if err != nil {
		return &Recorder{}
	}
	return r
}

// Record adds one finished request.
func (r *Recorder) Record(ctx context.Context, algorithm, outcome string, docs, clusters int, elapsed time.Duration) {
	if r == nil || r.requests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("algorithm", algorithm),
		attribute.String("outcome", outcome),
	)
	r.requests.Add(ctx, 1, attrs)
	r.documents.Add(ctx, int64(docs), metric.WithAttributes(attribute.String("algorithm", algorithm)))
	r.duration.Record(ctx, elapsed.Seconds(), attrs)
	if outcome == OutcomeOK {
		r.clusters.Record(ctx, int64(clusters), metric.WithAttributes(attribute.String("algorithm", algorithm)))
	}
}

// Stage runs fn inside a span named after a pipeline stage.
func Stage(ctx context.Context, name string, fn func() error) error {
	_, span := tracer.Start(ctx, "textclust."+name)
	defer span.End()
	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	return nil
}
