package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/auth"
	"github.com/skpttrack/tracker/internal/cache"
	"github.com/skpttrack/tracker/internal/config"
	"github.com/skpttrack/tracker/internal/db"
	"github.com/skpttrack/tracker/internal/dedupe"
	"github.com/skpttrack/tracker/internal/delivery"
	"github.com/skpttrack/tracker/internal/geo"
	"github.com/skpttrack/tracker/internal/handlers"
	"github.com/skpttrack/tracker/internal/ingest"
	"github.com/skpttrack/tracker/internal/ipcheck"
	"github.com/skpttrack/tracker/internal/logging"
	"github.com/skpttrack/tracker/internal/metrics"
	"github.com/skpttrack/tracker/internal/registry"
	"github.com/skpttrack/tracker/internal/reports"
	"github.com/skpttrack/tracker/internal/utmify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logging.For("server")

	// Without a store the process still serves /health; data endpoints
	// answer 503.
	var database *sql.DB
	if database, err = db.Open(cfg.DBPath); err != nil {
		log.WithError(err).Error("database unavailable, running degraded")
		database = nil
	} else {
		defer database.Close()
	}

	geoReader, err := geo.Open(cfg.GeoIPPath)
	if err != nil {
		log.WithError(err).Warn("geo lookups disabled")
		geoReader, _ = geo.Open("")
	}
	defer geoReader.Close()

	var ips analytics.IPFlagger
	if cfg.IPCheck {
		checker := ipcheck.NewChecker(ipcheck.DefaultSources, nil)
		defer checker.Shutdown()
		ips = checker
	}

	linkCache, err := cache.New(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	readyDeps := map[string]handlers.Pinger{}
	var filter dedupe.Filter = dedupe.Noop{}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rf, err := dedupe.NewRedisFilter(ctx, cfg.RedisURL, cfg.DedupeTTL)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, duplicate filtering disabled")
		} else {
			defer rf.Close()
			filter = rf
			readyDeps["redis"] = rf
		}
	}

	m := metrics.New()

	var queue ingest.Queue
	var dispatcher *delivery.Dispatcher
	if database != nil {
		sender := utmify.NewClient(cfg.UtmifyURL, cfg.UtmifyTimeout, !cfg.IsProduction())
		dispatcher = delivery.NewDispatcher(database, sender, m, delivery.Options{
			Workers:       cfg.DeliveryWorkers,
			QueueSize:     cfg.DeliveryQueueSize,
			MaxAttempts:   cfg.MaxAttempts,
			Backoff:       cfg.RetryBackoff,
			SweepInterval: cfg.SweepInterval,
		})
		queue = dispatcher
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:        cfg.JWTSecret,
		PublicKeyPath: cfg.JWTPublicKey,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	r := handlers.NewRouter(handlers.Routes{
		DB:       database,
		Verifier: verifier,
		Links:    &handlers.LinkHandler{Registry: registry.New(database, linkCache, cfg.TrackingURL)},
		Track: &handlers.TrackHandler{
			Pipeline: ingest.New(database, linkCache, analytics.NewEnricher(geoReader, ips), filter, queue, m),
		},
		Events:  &handlers.EventHandler{DB: database},
		Reports: &handlers.ReportHandler{Aggregator: reports.NewAggregator(database, m)},
		Health: &handlers.HealthHandler{
			DB:          database,
			Version:     cfg.Version,
			Environment: cfg.Environment,
			Deps:        readyDeps,
		},
		Metrics: m.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("tracker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-stop
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}

	if dispatcher != nil {
		dispatcher.Shutdown()
	}
	log.Info("goodbye")
}
