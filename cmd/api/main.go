package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/checkout"
	"github.com/ariefcatur/beyou-storefront/internal/config"
	"github.com/ariefcatur/beyou-storefront/internal/httpx"
	"github.com/ariefcatur/beyou-storefront/internal/images"
	kafkax "github.com/ariefcatur/beyou-storefront/internal/kafka"
	"github.com/ariefcatur/beyou-storefront/internal/logger"
	"github.com/ariefcatur/beyou-storefront/internal/postgres"
	"github.com/ariefcatur/beyou-storefront/internal/redisx"
	"github.com/ariefcatur/beyou-storefront/internal/revalidate"
	"github.com/ariefcatur/beyou-storefront/internal/telemetry"
	"github.com/ariefcatur/beyou-storefront/internal/uploads"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
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
	logg := logger.New(logger.Options{Service: cfg.ServiceName, Level: cfg.LogLevel, File: cfg.LogFile, Extra: extra})
	defer func() { _ = logg.Sync() }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: cfg.DBMaxConns, SlowQuery: cfg.DBSlowQuery, Logger: logg})
	if err != nil {
		logg.Fatalw("db connect", "error", err)
	}
	defer db.Close()
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		logg.Fatalw("db migrate", "error", err)
	}
	if len(applied) > 0 {
		logg.Infow("migrations applied", "names", applied)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Image files
	files, err := images.NewOSStore(cfg.UploadDir, cfg.PublicUploadPrefix)
	if err != nil {
		logg.Fatalw("upload dir", "dir", cfg.UploadDir, "error", err)
	}

	// Upload sessions
	var sessions uploads.SessionStore
	switch cfg.UploadSessionBackend {
	case "memory":
		mem := uploads.NewMemoryStore(cfg.UploadSessionTTL)
		go mem.Run(ctx, time.Minute, logg)
		sessions = mem
	default:
		sessions = uploads.NewRedisStore(rdb, cfg.UploadSessionTTL)
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, catalog.TopicCatalogChanged, 1024, logg)
	prod.Start(ctx)

	cache := revalidate.NewPageCache(rdb, cfg.PageCacheTTL)
	notifier := &revalidate.Publisher{Cache: cache, Producer: prod, Service: cfg.ServiceName, Logger: logg}

	// Repos & services
	products := &catalog.Repo{DB: db}
	media := &catalog.MediaRepo{DB: db}
	sales, err := catalog.NewSales(&catalog.SaleRepo{DB: db}, notifier, logg, tel.Tracer, tel.Meter)
	if err != nil {
		logg.Fatalw("sales service", "error", err)
	}
	reassembler, err := uploads.NewReassembler(sessions, files, media, int(cfg.MaxChunkBytes), logg, tel.Tracer, tel.Meter)
	if err != nil {
		logg.Fatalw("upload reassembler", "error", err)
	}

	// Handlers
	ph := &httpx.ProductsHandler{Products: products, Images: media, Files: files, Cache: cache, Notifier: notifier, Logger: logg}
	mh := &httpx.MediaHandler{Media: media, Files: files, Chunks: reassembler, Cache: cache, Notifier: notifier, Logger: logg, MaxChunkBytes: cfg.MaxChunkBytes}
	sh := &httpx.SalesHandler{Sales: sales, Logger: logg}
	ch := &httpx.CheckoutHandler{Checkout: checkout.NewService(products, cfg.WhatsAppNumber), Logger: logg}

	router := httpx.NewRouter(logg)
	ph.Register(router)
	mh.Register(router)
	ch.Register(router)
	httpx.MountFiles(router, cfg.PublicUploadPrefix, files.FileSystem())
	router.Route("/api/admin", func(r chi.Router) {
		r.Use(httpx.AdminAuth(cfg.AdminToken))
		ph.RegisterAdmin(r)
		mh.RegisterAdmin(r)
		sh.RegisterAdmin(r)
	})
	if cfg.AdminToken == "" {
		logg.Warn("ADMIN_TOKEN is empty, admin routes are disabled")
	}

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		logg.Infow("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalw("listen", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logg.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush buffered events, then close the writer
	prod.WaitClosed()
	cancel()
	if err := tel.Shutdown(ctx2); err != nil {
		logg.Warnw("telemetry shutdown", "error", err)
	}
}
