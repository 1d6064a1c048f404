package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/courseloop/authd/pkg/api"
	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/config"
	"github.com/courseloop/authd/pkg/kvstore"
	"github.com/courseloop/authd/pkg/observability"
	"github.com/courseloop/authd/pkg/profile"
	"github.com/courseloop/authd/pkg/purchases"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("storage", cfg.Storage.Type).Info("starting authd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
			logger.WithError(err).Error("OpenTelemetry shutdown failed")
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Storage
	store, err := buildStore(cfg.Storage, metrics)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	// Registration policy, hot-reloadable when a file is configured
	policy := config.NewRegistrationPolicy(auth.DefaultRequiredFields, logger)
	if cfg.Auth.PolicyFile != "" {
		if err := policy.LoadFile(cfg.Auth.PolicyFile); err != nil {
			return fmt.Errorf("loading registration policy: %w", err)
		}
		if err := policy.Watch(ctx, cfg.Auth.PolicyFile); err != nil {
			return fmt.Errorf("watching registration policy: %w", err)
		}
	}

	// Domain
	hasher, err := auth.NewHasher(cfg.Auth.PasswordScheme)
	if err != nil {
		return err
	}
	directory := auth.NewDirectory(store)
	tokens := auth.NewTokenStore(store)
	service := auth.NewService(directory, tokens, hasher, cfg.Auth.TokenTTL, policy.Required, logger)
	validator := auth.NewValidator(tokens, logger)

	gateway, err := profile.NewGateway(directory, cfg.Auth.ProfileCacheSize, logger)
	if err != nil {
		return err
	}
	if metrics != nil {
		gateway.WithCacheHooks(
			metrics.ProfileCacheHitsTotal.Inc,
			metrics.ProfileCacheMissesTotal.Inc,
		)
	}

	// Purchase mirror, optional
	var mirror *purchases.Mirror
	if cfg.Mirror.Enabled {
		sink, err := purchases.NewS3Sink(ctx, purchases.SinkConfig{
			Endpoint:     cfg.Mirror.S3Endpoint,
			Region:       cfg.Mirror.S3Region,
			Bucket:       cfg.Mirror.S3Bucket,
			AccessKey:    cfg.Mirror.S3AccessKey,
			SecretKey:    cfg.Mirror.S3SecretKey,
			UsePathStyle: cfg.Mirror.S3UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("initializing purchase mirror: %w", err)
		}
		mirror = purchases.NewMirror(sink, logger)
		if metrics != nil {
			mirror.OnRecord = func(status string) {
				metrics.MirrorRecordsTotal.WithLabelValues(status).Inc()
			}
		}
	}

	// Expired-token janitor
	janitor := auth.NewJanitor(tokens, cfg.Auth.JanitorSchedule, logger)
	if metrics != nil {
		janitor.OnSweep = func(removed int) {
			metrics.TokensSweptTotal.Add(float64(removed))
		}
	}
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("starting janitor: %w", err)
	}
	defer janitor.Stop()

	server := api.NewServer(api.Options{
		Store:     store,
		Service:   service,
		Validator: validator,
		Gateway:   gateway,
		Mirror:    mirror,
		Metrics:   metrics,
		Logger:    logger,
		Tracing:   cfg.Observability.OTelEnabled,
	})

	apiSrv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.HealthCheck(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	observability.RegisterMetricsEndpoint(opsMux, registry)
	opsSrv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.OpsPort,
		Handler: opsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiSrv.Addr).Info("API server listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", opsSrv.Addr).Info("ops server listening")
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// buildStore selects the storage backend and wraps it in the retry
// decorator. Retries live only at this boundary.
func buildStore(cfg kvstore.Config, metrics *observability.Metrics) (kvstore.Store, error) {
	var base kvstore.Store
	var err error

	switch cfg.Type {
	case "redis":
		base, err = kvstore.NewRedisStore(cfg)
	case "postgres":
		cfg.SQLDriver = "postgres"
		base, err = kvstore.NewSQLStore(cfg)
	case "sqlite":
		cfg.SQLDriver = "sqlite3"
		base, err = kvstore.NewSQLStore(cfg)
	case "memory":
		base = kvstore.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	retry := kvstore.NewRetryStore(base, cfg)
	if metrics != nil {
		retry.OnRetry = func(operation, table string) {
			metrics.StorageRetriesTotal.WithLabelValues(operation, table).Inc()
		}
	}
	return retry, nil
}
