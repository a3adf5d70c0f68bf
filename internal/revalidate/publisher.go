package revalidate

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/beyou-storefront/internal/kafka"
)

type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// Publisher is the catalog.Notifier used by the API: it drops the local page cache entries
// right away, then publishes a catalog.changed event so the revalidator can tell the
// storefront. Both steps only log failures because the change is already committed.
type Publisher struct {
	Cache    Invalidator
	Producer kafkax.Publisher
	Service  string
	Logger   *zap.SugaredLogger
}

func (p *Publisher) Notify(ctx context.Context, eventType string, payload catalog.ChangedPayload) {
	if p.Cache != nil {
		if err := p.Cache.Invalidate(ctx, payload.Paths...); err != nil {
			p.Logger.Warnw("page cache invalidation failed", "event", eventType, "paths", payload.Paths, "error", err)
		}
	}
	if p.Producer == nil {
		return
	}

	ev := catalog.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: payload.EntityID,
		Payload:       kafkax.MustMarshal(payload),
	}
	key := payload.EntityID
	if key == "" {
		key = eventType
	}
	if err := p.Producer.Publish(ctx, catalog.PartitionKey(key), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, ev.EventVersion)...); err != nil {
		p.Logger.Errorw("publish catalog change failed", "event", eventType, "event_id", ev.EventID, "error", err)
	}
}
