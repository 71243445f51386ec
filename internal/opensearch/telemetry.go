package opensearch

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ca-srg/searchguard/internal/guard"
)

var opensearchTracer = otel.Tracer("searchguard/opensearch")

const (
	outcomeValid       = "valid"
	outcomeServerError = "server_error"
	outcomeInvalid     = "invalid"
	outcomeTransport   = "transport_error"
)

type instruments struct {
	verifications metric.Int64Counter
	duration      metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter("searchguard/opensearch")
	inst := &instruments{}

	var err error
	inst.verifications, err = meter.Int64Counter(
		"searchguard.response.verifications",
		metric.WithDescription("Verified OpenSearch responses by outcome"),
		metric.WithUnit("{responses}"),
	)
	if err != nil {
		log.Printf("opensearch: failed to create verification counter: %v", err)
	}

	inst.duration, err = meter.Float64Histogram(
		"searchguard.request.duration_ms",
		metric.WithDescription("OpenSearch call latency including client-side retries"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		log.Printf("opensearch: failed to create duration histogram: %v", err)
	}

	return inst
}

func (i *instruments) record(ctx context.Context, operation string, err error, elapsedMs float64) {
	if i == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcomeOf(err)),
	)
	if i.verifications != nil {
		i.verifications.Add(ctx, 1, attrs)
	}
	if i.duration != nil {
		i.duration.Record(ctx, elapsedMs, metric.WithAttributes(attribute.String("operation", operation)))
	}
}

func outcomeOf(err error) string {
	var serverErr *guard.ServerReportedError
	var invalid *guard.InvalidResponseError
	switch {
	case err == nil:
		return outcomeValid
	case errors.As(err, &serverErr):
		return outcomeServerError
	case errors.As(err, &invalid):
		return outcomeInvalid
	default:
		return outcomeTransport
	}
}
