package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/codes"
	"github.com/hungtruong03/SAPromotion/internal/config"
	"github.com/hungtruong03/SAPromotion/internal/db"
	"github.com/hungtruong03/SAPromotion/internal/events"
	promotionhttp "github.com/hungtruong03/SAPromotion/internal/http"
	"github.com/hungtruong03/SAPromotion/internal/logging"
	"github.com/hungtruong03/SAPromotion/internal/metrics"
	"github.com/hungtruong03/SAPromotion/internal/partner"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
	"github.com/hungtruong03/SAPromotion/internal/tracing"
	"github.com/hungtruong03/SAPromotion/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(conf.Database.DSN) == "" {
		return errors.New("database.dsn (DATABASE_URL) is required")
	}
	logging.Setup(conf.Logging)
	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Info("database migrated")
	return nil
}

// RunServer boots the promotion service and blocks until ctx is cancelled
// or a component fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	if errValidate := conf.Validate(); errValidate != nil {
		return errValidate
	}

	if logCloser := logging.Setup(conf.Logging); logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}

	shutdownTracing, err := tracing.Init(conf.Tracing.ServiceName, conf.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := shutdownTracing(flushCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("tracer shutdown failed")
		}
	}()

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Infof("database ready (%s, %s)", db.DialectName(conn), util.RedactDSN(conf.Database.DSN))

	kv, err := cache.New(ctx, conf.Cache)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	publisher := newPublisher(conf.Kafka)
	defer func() {
		if errClose := publisher.Close(); errClose != nil {
			log.WithError(errClose).Warn("event publisher close failed")
		}
	}()

	svc, reconciler := buildService(conn, kv, m, publisher, conf)

	router := promotionhttp.NewRouter(promotionhttp.RouterDeps{
		Server:   conf.Server,
		DB:       conn,
		Cache:    kv,
		Service:  svc,
		Gatherer: reg,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("promotion service listening on %s", server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout())
		defer cancel()
		log.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})
	if reconciler != nil {
		g.Go(func() error { return reconciler.Run(gctx) })
	}
	return g.Wait()
}

// buildService wires the promotion service and, when enabled, its reconciler.
func buildService(conn *gorm.DB, kv cache.Cache, m *metrics.Metrics, publisher events.Publisher, conf config.Config) (*promotion.Service, *promotion.Reconciler) {
	store := promotion.NewStore(conn)
	allocator := codes.NewAllocator(kv, store, codes.Options{
		KeyPrefix:   conf.Cache.KeyPrefix,
		Length:      conf.Codes.Length,
		TTL:         conf.Codes.CodeTTL(),
		MaxAttempts: conf.Codes.MaxAttempts,
		Metrics:     m,
	})
	partnerClient := partner.NewClient(conf.Partner.BaseURL, conf.Partner.Timeout(), m)
	svc := promotion.NewService(store, kv, allocator, partnerClient, promotion.Options{
		KeyPrefix:      conf.Cache.KeyPrefix,
		InflightTTL:    conf.Redemption.InflightTTL(),
		CommitTimeout:  conf.Redemption.CommitTimeout(),
		PublishTimeout: conf.Kafka.PublishTimeout(),
		Publisher:      publisher,
		Metrics:        m,
	})
	if !conf.Reconciler.Enabled {
		return svc, nil
	}
	return svc, promotion.NewReconciler(svc, reconcilerOptions(conf.Reconciler))
}

func reconcilerOptions(cfg config.ReconcilerConfig) promotion.ReconcilerOptions {
	return promotion.ReconcilerOptions{
		Interval:     time.Duration(cfg.IntervalSeconds) * time.Second,
		Grace:        time.Duration(cfg.GraceSeconds) * time.Second,
		StalePending: time.Duration(cfg.StalePendingSeconds) * time.Second,
		Retention:    time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" {
		log.Debug("event publishing disabled")
		return events.NopPublisher{}
	}
	log.Infof("publishing promotion events to %s on %v", cfg.Topic, cfg.Brokers)
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database")
	}
}
