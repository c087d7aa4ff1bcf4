package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"shopbridge/internal/models"
	"shopbridge/internal/storage"
)

// InstrumentedSessionStore wraps a storage.SessionStore implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedSessionStore struct {
	inner    storage.SessionStore
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedSessionStore creates a session store wrapper that records
// trace spans, operation latency histograms, and error counters for every
// store method call.
func NewInstrumentedSessionStore(inner storage.SessionStore) (*InstrumentedSessionStore, error) {
	tracer := otel.Tracer("shopbridge/storage")
	meter := otel.Meter("shopbridge/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of session store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of session store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedSessionStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedSessionStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedSessionStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedSessionStore) Store(ctx context.Context, session *models.Session) error {
	ctx, span := s.startSpan(ctx, "Store",
		attribute.String("session_id", session.ID),
		attribute.String("shop", session.Shop),
	)
	start := time.Now()
	err := s.inner.Store(ctx, session)
	s.record(ctx, span, "Store", start, err)
	return err
}

func (s *InstrumentedSessionStore) Load(ctx context.Context, id string) (*models.Session, error) {
	ctx, span := s.startSpan(ctx, "Load", attribute.String("session_id", id))
	start := time.Now()
	result, err := s.inner.Load(ctx, id)
	s.record(ctx, span, "Load", start, err)
	return result, err
}

func (s *InstrumentedSessionStore) LoadByShop(ctx context.Context, shop string) ([]*models.Session, error) {
	ctx, span := s.startSpan(ctx, "LoadByShop", attribute.String("shop", shop))
	start := time.Now()
	result, err := s.inner.LoadByShop(ctx, shop)
	s.record(ctx, span, "LoadByShop", start, err)
	return result, err
}

func (s *InstrumentedSessionStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "Delete", attribute.String("session_id", id))
	start := time.Now()
	err := s.inner.Delete(ctx, id)
	s.record(ctx, span, "Delete", start, err)
	return err
}

func (s *InstrumentedSessionStore) DeleteByShop(ctx context.Context, shop string) error {
	ctx, span := s.startSpan(ctx, "DeleteByShop", attribute.String("shop", shop))
	start := time.Now()
	err := s.inner.DeleteByShop(ctx, shop)
	s.record(ctx, span, "DeleteByShop", start, err)
	return err
}

func (s *InstrumentedSessionStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedSessionStore) Close() error {
	return s.inner.Close()
}
