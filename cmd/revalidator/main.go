package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/config"
	kafkax "github.com/ariefcatur/beyou-storefront/internal/kafka"
	"github.com/ariefcatur/beyou-storefront/internal/logger"
	"github.com/ariefcatur/beyou-storefront/internal/redisx"
	"github.com/ariefcatur/beyou-storefront/internal/revalidate"
	"github.com/ariefcatur/beyou-storefront/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := cfg.ServiceName + "-revalidator"
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: service,
		Exporter:    cfg.TelemetryExporter,
		Endpoint:    cfg.TelemetryEndpoint,
		Insecure:    cfg.TelemetryInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	var extra []zapcore.Core
	if tel.LogCore != nil {
		extra = append(extra, tel.LogCore)
	}
	logg := logger.New(logger.Options{Service: service, Level: cfg.LogLevel, File: cfg.LogFile, Extra: extra})
	defer func() { _ = logg.Sync() }()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &revalidate.Service{
		Redis:       rdb,
		Cache:       revalidate.NewPageCache(rdb, cfg.PageCacheTTL),
		ServiceName: service,
		Logger:      logg,
	}
	if cfg.RevalidateURL != "" {
		svc.Storefront = revalidate.NewHTTPNotifier(cfg.RevalidateURL, cfg.RevalidateSecret)
	} else {
		logg.Warn("REVALIDATE_URL is empty, only the page cache is invalidated")
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.RevalidatorGroup, catalog.TopicCatalogChanged, cfg.RevalidatorWorkers, logg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logg.Infow("revalidator consumer started",
			"group", cfg.RevalidatorGroup, "topic", catalog.TopicCatalogChanged, "workers", cfg.RevalidatorWorkers)
		if err := cons.Start(ctx, svc.HandleCatalogChanged); err != nil {
			logg.Errorw("consumer exit", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logg.Info("shutting down consumer...")
	cancel()
	<-done
	if err := tel.Shutdown(context.Background()); err != nil {
		logg.Warnw("telemetry shutdown", "error", err)
	}
}
