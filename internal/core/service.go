// Package core exposes the dataset service: add, remove, list, and query,
// wired to a store, a query pipeline, and pluggable observability.
package core

import (
	"context"
	"time"

	"insightcore/internal/query"
	"insightcore/internal/store"
	"insightcore/pkg/domain"
)

// Logger is the minimal leveled logging contract the service emits through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span, recording the operation's error if any.
type TraceSpan interface {
	End(err error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Service is the facade over the dataset store and the query pipeline.
type Service struct {
	store   *store.Store
	engine  query.Engine
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service over the given archive backend.
func NewService(archive domain.Archive, opts ...Option) *Service {
	s := &Service{
		store:  store.New(archive),
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying dataset store.
func (s *Service) Store() *store.Store { return s.store }

// begin opens a span for op and returns the closer that finishes it: ends the
// span, observes metrics, and logs the outcome.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	return ctx, func(err error) {
		duration := time.Since(started)
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, duration)
		}
		if err != nil {
			s.logger.Error(op+" failed", "error", err, "duration_ms", duration.Milliseconds())
			return
		}
		s.logger.Debug(op+" ok", "duration_ms", duration.Milliseconds())
	}
}

// AddDataset registers records under a new dataset id and returns the ids of
// every dataset now present.
func (s *Service) AddDataset(ctx context.Context, id string, kind domain.Kind, records []domain.Record) (ids []string, err error) {
	ctx, done := s.begin(ctx, "add_dataset")
	defer func() { done(err) }()
	ids, err = s.store.Add(ctx, &domain.Dataset{ID: id, Kind: kind, Records: records})
	if err == nil {
		s.logger.Info("dataset added", "id", id, "kind", string(kind), "rows", len(records))
	}
	return ids, err
}

// RemoveDataset deletes the dataset with the given id and echoes it back.
func (s *Service) RemoveDataset(ctx context.Context, id string) (removed string, err error) {
	ctx, done := s.begin(ctx, "remove_dataset")
	defer func() { done(err) }()
	if removed, err = s.store.Remove(ctx, id); err == nil {
		s.logger.Info("dataset removed", "id", removed)
	}
	return removed, err
}

// ListDatasets describes every registered dataset.
func (s *Service) ListDatasets(ctx context.Context) (infos []domain.DatasetInfo, err error) {
	ctx, done := s.begin(ctx, "list_datasets")
	defer func() { done(err) }()
	return s.store.List(ctx)
}

// PerformQuery validates the raw query document and executes it against the
// dataset it addresses.
func (s *Service) PerformQuery(ctx context.Context, doc any) (rows []query.Row, err error) {
	ctx, done := s.begin(ctx, "perform_query")
	defer func() { done(err) }()

	var v query.Validator
	q, err := v.Validate(doc)
	if err != nil {
		return nil, err
	}
	ds, err := s.store.Find(ctx, q.Dataset)
	if err != nil {
		return nil, err
	}
	rows, err = s.engine.Execute(ds, q)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query executed", "dataset", q.Dataset, "rows", len(rows))
	return rows, nil
}
