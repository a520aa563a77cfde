package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "docexchange/internal/jwt_token"
	"docexchange/internal/notification"
	notificationhandler "docexchange/internal/notification/handler"
	"docexchange/internal/platform/config"
	"docexchange/internal/platform/httpserver"
	"docexchange/internal/platform/logger"
	"docexchange/internal/platform/metrics"
	"docexchange/internal/platform/postgres"
	"docexchange/internal/platform/redis"
	ratelimitmetrics "docexchange/internal/ratelimit/metrics"
	ratelimit "docexchange/internal/ratelimit/middleware"
	"docexchange/internal/ratelimit/store/bucket"
	requesthandler "docexchange/internal/requests/handler"
	requestmetrics "docexchange/internal/requests/metrics"
	requestservice "docexchange/internal/requests/service"
	requeststore "docexchange/internal/requests/store"
	"docexchange/internal/sharelink"
	sharelinkhandler "docexchange/internal/sharelink/handler"
	linkstore "docexchange/internal/sharelink/store"
	httptransport "docexchange/internal/transport/http"
	auditkafka "docexchange/pkg/platform/audit/kafka"
	"docexchange/pkg/platform/audit/publisher"
	auditmemory "docexchange/pkg/platform/audit/store/memory"
	"docexchange/pkg/platform/circuit"
)

const (
	jwtIssuer           = "docexchange"
	auditBufferSize     = 256
	// auditRetainedEvents bounds the in-process trail; Kafka, when
	// configured, keeps the full history.
	auditRetainedEvents = 10000
)

// main wires dependencies and runs the HTTP server and the share-link
// cleanup loop until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	reg := prometheus.DefaultRegisterer
	checks := map[string]httptransport.HealthCheck{}

	var requests requestservice.Store
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer closeDB(db, log)
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(db, log); err != nil {
				return err
			}
		}
		pg := requeststore.NewPostgres(db)
		checks["postgres"] = pg.Ping
		requests = pg
		log.Info("request store: postgres")
	} else {
		requests = requeststore.NewInMemory()
		log.Info("request store: memory")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		slot     notification.Slot     = notification.NewMemorySlot()
		signaler notification.Signaler = notification.NewLogSignaler(log)
		tokens   sharelink.Store       = linkstore.NewInMemory()
		buckets  ratelimit.BucketStore
	)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		slot = notification.NewRedisSlot(rdb.Client)
		signaler = notification.NewRedisSignaler(rdb.Client, log)
		tokens = linkstore.NewRedis(rdb.Client, cfg.ShareLinks.Retention)
		buckets = bucket.NewRedisBucketStore(rdb.Client)
		checks["redis"] = rdb.Health
		log.Info("share links and notifications: redis")
	}

	auditOpts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(auditBufferSize)}
	var kafkaClient *kgo.Client
	if cfg.Kafka.Enabled() {
		kafkaClient, err = auditkafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("kafka client: %w", err)
		}
		auditOpts = append(auditOpts, publisher.WithSink(auditkafka.NewSink(kafkaClient, cfg.Kafka.AuditTopic, log)))
		log.Info("audit events streamed to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	trail := auditmemory.NewInMemoryStore(auditmemory.WithCapacity(auditRetainedEvents))
	auditor := publisher.NewPublisher(trail, auditOpts...)

	coordinator := notification.New(slot,
		notification.WithLogger(log),
		notification.WithSignaler(signaler),
		notification.WithMetrics(notification.NewMetrics(reg)),
	)
	links := sharelink.New(tokens, requests, coordinator,
		sharelink.WithLogger(log),
		sharelink.WithAuditPublisher(auditor),
		sharelink.WithMetrics(sharelink.NewMetrics(reg)),
		sharelink.WithTTL(cfg.ShareLinks.TTL),
		sharelink.WithRetention(cfg.ShareLinks.Retention),
		sharelink.WithBaseURL(cfg.PublicBaseURL),
	)
	service := requestservice.New(requests, links, coordinator,
		requestservice.WithLogger(log),
		requestservice.WithMetrics(requestmetrics.New(reg)),
		requestservice.WithAuditPublisher(auditor),
		requestservice.WithAuditReader(trail),
		requestservice.WithDefaultTTL(cfg.Requests.DefaultTTL),
		requestservice.WithMaxTTL(cfg.Requests.MaxTTL),
	)

	localBuckets := bucket.NewInMemoryBucketStore()
	limiterOpts := []ratelimit.Option{ratelimit.WithMetrics(ratelimitmetrics.New(reg))}
	if rdb != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithFallback(localBuckets, circuit.New("share-ratelimit")))
	} else {
		buckets = localBuckets
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(),
		Gatherer:       prometheus.DefaultGatherer,
		Validator:      jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer),
		RequestTimeout: cfg.Server.RequestTimeout,
		Requests:       requesthandler.New(service, log),
		ShareLinks:     sharelinkhandler.New(links, log),
		Notifications:  notificationhandler.New(coordinator, log),
		HealthChecks:   checks,
		ShareRateLimit: ratelimit.New(buckets, log, cfg.ShareLinks.RateLimit, cfg.ShareLinks.RateLimitWindow, limiterOpts...).RateLimit,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting docexchange", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return links.RunCleanup(gctx, cfg.ShareLinks.CleanupInterval)
	})
	g.Go(func() error {
		return localBuckets.RunPrune(gctx, cfg.ShareLinks.CleanupInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	auditor.Close()
	if kafkaClient != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if flushErr := kafkaClient.Flush(flushCtx); flushErr != nil {
			log.Warn("kafka flush incomplete", "error", flushErr)
		}
		cancel()
		kafkaClient.Close()
	}
	return err
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("closing database", "error", err)
	}
}
