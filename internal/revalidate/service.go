package revalidate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/beyou-storefront/internal/kafka"
	"github.com/ariefcatur/beyou-storefront/internal/redisx"
)

type Revalidator interface {
	Revalidate(ctx context.Context, paths []string) error
}

var handled = map[string]bool{
	catalog.EventSaleRecorded:         true,
	catalog.EventProductChanged:       true,
	catalog.EventProductDeleted:       true,
	catalog.EventProductImagesChanged: true,
	catalog.EventBannerChanged:        true,
	catalog.EventCategoryImageChanged: true,
}

// Service consumes catalog.changed. Each event is processed once per dedup window: the page
// cache entries are dropped and the storefront hook is called (when configured).
type Service struct {
	Redis       redis.Cmdable
	Cache       Invalidator
	Storefront  Revalidator // nil disables the storefront hook
	ServiceName string
	Logger      *zap.SugaredLogger
}

// HandleCatalogChanged is installed as the consumer handler. Returning an error leaves the
// offset uncommitted so the event is retried.
func (s *Service) HandleCatalogChanged(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env catalog.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Logger.Warnw("dropping undecodable event", "offset", m.Offset, "error", err)
		return nil
	}
	if !handled[env.EventType] {
		return nil
	}

	// 2) dedup via Redis on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[catalog.ChangedPayload](env.Payload)
	if err != nil {
		s.Logger.Warnw("dropping event with bad payload", "event_id", env.EventID, "error", err)
		return nil
	}

	// 4) invalidate + notify
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Cache.Invalidate(gctx, p.Paths...) })
	if s.Storefront != nil {
		g.Go(func() error { return s.Storefront.Revalidate(gctx, p.Paths) })
	}
	if err := g.Wait(); err != nil {
		// release the claim so the redelivery is not skipped
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("revalidate %s %s: %w", env.EventType, env.EventID, err)
	}

	s.Logger.Infow("paths revalidated", "event", env.EventType, "event_id", env.EventID, "paths", p.Paths)
	return nil
}
