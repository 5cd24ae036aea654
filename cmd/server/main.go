// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kgo"

	"caretrip/internal/identity/authapi"
	kafkanotifier "caretrip/internal/notifier/kafka"
	"caretrip/internal/patient/store"
	"caretrip/internal/platform/config"
	"caretrip/internal/platform/httpserver"
	"caretrip/internal/platform/logger"
	"caretrip/internal/platform/metrics"
	platformredis "caretrip/internal/platform/redis"
	profilestore "caretrip/internal/profile/store"
	"caretrip/internal/provisioning/handler"
	"caretrip/internal/provisioning/poll"
	"caretrip/internal/provisioning/service"
	"caretrip/internal/role/assignment"
	"caretrip/internal/role/catalog"
	catalogcache "caretrip/internal/role/catalog/cache"
	httptransport "caretrip/internal/transport/http"
	"caretrip/pkg/platform/audit/publisher"
	auditpg "caretrip/pkg/platform/audit/store/postgres"
	auditworker "caretrip/pkg/platform/audit/worker"
	"caretrip/pkg/platform/middleware/admin"
	"caretrip/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	notify, err := kafkanotifier.New(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic, log)
	if err != nil {
		return err
	}
	defer notify.Close()

	auditStore := auditpg.New(db)
	auditPub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer auditPub.Close()

	auditClient, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
	if err != nil {
		return err
	}
	defer auditClient.Close()
	exporter := auditworker.New(auditStore, auditClient, cfg.Kafka.AuditTopic, 5*time.Second, log)
	go func() {
		if err := exporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit exporter stopped", "error", err)
		}
	}()

	var roleCatalog service.RoleCatalog = catalog.NewPostgres(db)
	if redisClient != nil {
		roleCatalog = catalogcache.New(catalog.NewPostgres(db), redisClient.Client, cfg.Redis.CatalogTTL, log)
	}

	m := metrics.New()
	svc := service.New(service.Deps{
		Identities:  authapi.New(cfg.Identity),
		Profiles:    profilestore.NewPostgres(db),
		Catalog:     roleCatalog,
		Assignments: assignment.NewPostgres(db),
		Patients:    store.NewPostgres(db),
		Notifier:    notify,
	},
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPub),
		service.WithPollConfig(poll.Config{
			MaxAttempts: cfg.Provisioning.PollMaxAttempts,
			Interval:    cfg.Provisioning.PollInterval,
		}),
		service.WithCallTimeout(cfg.Provisioning.CallTimeout),
		service.WithRedirects(cfg.Provisioning.OnboardingRedirect, cfg.Provisioning.RecoveryRedirect),
	)

	validator := auth.NewValidator([]byte(cfg.JWTSigningKey), log)
	provisioningHandler := handler.New(svc, log,
		auth.RequireActor(validator),
		admin.RequireAdminToken(cfg.AdminToken, log),
	)

	checks := []httptransport.Check{
		{Name: "postgres", Probe: db.PingContext},
	}
	if redisClient != nil {
		checks = append(checks, httptransport.Check{Name: "redis", Probe: redisClient.Health})
	}
	checks = append(checks, httptransport.Check{Name: "kafka", Probe: func(ctx context.Context) error {
		return auditClient.Ping(ctx)
	}})

	router := httptransport.NewRouter(log, checks, provisioningHandler)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting caretrip provisioning service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Confirm the concrete notifier satisfies the service port at compile time.
var _ service.Notifier = (*kafkanotifier.Notifier)(nil)
