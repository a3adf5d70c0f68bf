package catalog

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Notifier is told about every committed catalog change so dependent pages can be marked
// stale. Implementations must not fail the caller; the change is already committed.
type Notifier interface {
	Notify(ctx context.Context, eventType string, p ChangedPayload)
}

type SaleStore interface {
	RecordSale(ctx context.Context, productID string, qty int) (Sale, error)
	ListSales(ctx context.Context, limit int) ([]Sale, error)
}

// Sales records sales through the stock-deducting transaction and fans out the
// post-commit invalidation.
type Sales struct {
	Store    SaleStore
	Notifier Notifier
	Logger   *zap.SugaredLogger
	Tracer   trace.Tracer

	recorded metric.Int64Counter
	rejected metric.Int64Counter
	units    metric.Int64Counter
}

func NewSales(store SaleStore, notifier Notifier, logger *zap.SugaredLogger, tracer trace.Tracer, meter metric.Meter) (*Sales, error) {
	s := &Sales{Store: store, Notifier: notifier, Logger: logger, Tracer: tracer}

	var err error
	s.recorded, err = meter.Int64Counter(
		"sales.recorded",
		metric.WithDescription("Number of sales committed"),
	)
	if err != nil {
		return nil, err
	}
	s.rejected, err = meter.Int64Counter(
		"sales.rejected",
		metric.WithDescription("Number of sale attempts rejected, by reason"),
	)
	if err != nil {
		return nil, err
	}
	s.units, err = meter.Int64Counter(
		"sales.units",
		metric.WithDescription("Units deducted from stock by sales"),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sales) Record(ctx context.Context, productID string, qty int) (Sale, error) {
	ctx, span := s.Tracer.Start(ctx, "sales.record", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	sale, err := s.Store.RecordSale(ctx, productID, qty)
	if err != nil {
		reason := rejectReason(err)
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		if reason == "internal" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "record sale")
			s.Logger.Errorw("record sale failed", "product_id", productID, "qty", qty, "error", err)
		} else {
			s.Logger.Infow("sale rejected", "product_id", productID, "qty", qty, "reason", reason)
		}
		return Sale{}, err
	}

	s.recorded.Add(ctx, 1)
	s.units.Add(ctx, int64(qty))
	s.Logger.Infow("sale recorded",
		"sale_id", sale.ID, "product_id", productID, "qty", qty, "total_cents", sale.TotalAmountCents)

	if s.Notifier != nil {
		s.Notifier.Notify(ctx, EventSaleRecorded, ChangedPayload{
			EntityID: productID,
			Paths:    SalePaths(productID),
			Sale:     &sale,
		})
	}
	return sale, nil
}

func (s *Sales) List(ctx context.Context, limit int) ([]Sale, error) {
	return s.Store.ListSales(ctx, limit)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "internal"
	}
}
