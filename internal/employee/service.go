package employee

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-store/internal/telemetry"
)

const tracerName = "github.com/JakeFAU/employee-store/internal/employee"

// Service validates requests and forwards them to a Store. Every call is
// logged, counted and traced.
type Service struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService wires the store and logger.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// List returns all employees.
func (s *Service) List(ctx context.Context) (records []Record, err error) {
	ctx, finish := s.start(ctx, "list")
	defer func() { finish(err, zap.Int("count", len(records))) }()

	records, err = s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Add inserts a new employee.
func (s *Service) Add(ctx context.Context, rec Record) (err error) {
	ctx, finish := s.start(ctx, "add", attribute.String("employee.name", rec.Name))
	defer func() { finish(err, zap.String("name", rec.Name)) }()

	if err = rec.Validate(); err != nil {
		return err
	}
	return s.store.Insert(ctx, rec)
}

// Update renames originalName to newName and sets its value in one
// transaction.
func (s *Service) Update(ctx context.Context, originalName, newName string, value int64) (err error) {
	ctx, finish := s.start(ctx, "update",
		attribute.String("employee.original_name", originalName),
		attribute.String("employee.new_name", newName),
	)
	defer func() {
		finish(err, zap.String("original_name", originalName), zap.String("new_name", newName))
	}()

	if err = ValidateName("original name", originalName); err != nil {
		return err
	}
	if err = ValidateName("new name", newName); err != nil {
		return err
	}
	return s.store.Update(ctx, originalName, newName, value)
}

// Delete removes the named employee.
func (s *Service) Delete(ctx context.Context, name string) (err error) {
	ctx, finish := s.start(ctx, "delete", attribute.String("employee.name", name))
	defer func() { finish(err, zap.String("name", name)) }()

	if err = ValidateName("name", name); err != nil {
		return err
	}
	return s.store.Delete(ctx, name)
}

// BulkAdjust applies the increment rule to every employee. Each call adds the
// deltas again.
func (s *Service) BulkAdjust(ctx context.Context) (err error) {
	var rows int64
	ctx, finish := s.start(ctx, "increment_rule")
	defer func() { finish(err, zap.Int64("rows", rows)) }()

	rows, err = s.store.ApplyIncrementRule(ctx)
	if err != nil {
		return err
	}
	telemetry.ObserveAdjustedRows(rows)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("employee.rows", rows))
	return nil
}

// GroupedSum asks the store to evaluate q.
func (s *Service) GroupedSum(ctx context.Context, q GroupQuery) (totals []GroupTotal, err error) {
	ctx, finish := s.start(ctx, "grouped_sum", attribute.Int64("employee.threshold", q.Threshold))
	defer func() { finish(err, zap.Strings("prefixes", q.Prefixes), zap.Int("groups", len(totals))) }()

	if err = q.Validate(); err != nil {
		return nil, err
	}
	totals, err = s.store.GroupedSum(ctx, q)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []GroupTotal{}
	}
	return totals, nil
}

// GroupedSumFromListing evaluates q over a full listing instead of asking the
// store. It must agree with GroupedSum.
func (s *Service) GroupedSumFromListing(ctx context.Context, q GroupQuery) (totals []GroupTotal, err error) {
	ctx, finish := s.start(ctx, "grouped_sum_listing", attribute.Int64("employee.threshold", q.Threshold))
	defer func() { finish(err, zap.Strings("prefixes", q.Prefixes), zap.Int("groups", len(totals))) }()

	if err = q.Validate(); err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Aggregate(records, q), nil
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// start opens a span and returns the function that closes it, records the
// operation metric and logs the outcome.
func (s *Service) start(
	ctx context.Context,
	op string,
	attrs ...attribute.KeyValue,
) (context.Context, func(error, ...zap.Field)) {
	ctx, span := s.tracer.Start(ctx, "employee."+op, trace.WithAttributes(attrs...))
	began := time.Now()
	return ctx, func(err error, fields ...zap.Field) {
		kind := Kind(err)
		elapsed := time.Since(began)
		telemetry.ObserveOperation(op, kind, elapsed)

		fields = append(fields, zap.String("op", op), zap.String("outcome", kind), zap.Duration("duration", elapsed))
		switch {
		case err == nil:
			s.logger.Debug("employee operation completed", fields...)
		case kind == "storage":
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("employee operation failed", append(fields, zap.Error(err))...)
		default:
			s.logger.Info("employee operation rejected", append(fields, zap.Error(err))...)
		}
		span.End()
	}
}
