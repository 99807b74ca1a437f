package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/internal/config"
	"github.com/spana/mailgate/internal/handlers"
	"github.com/spana/mailgate/internal/metrics"
	"github.com/spana/mailgate/middlewares"
	"github.com/spana/mailgate/pkg/cache"
	"github.com/spana/mailgate/pkg/logger"
	"github.com/spana/mailgate/pkg/mailer"
	"github.com/spana/mailgate/pkg/mailer/resend"
	"github.com/spana/mailgate/pkg/mailer/smtp"
	"github.com/spana/mailgate/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Log, middlewares.RequestIDExtractor())

	if err := run(cfg, log); err != nil {
		log.Error("application error", slog.Any("error", err))
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	var (
		client goredis.UniversalClient
		store  cache.Cache[mailer.LivenessEntry]
		hooks  []internal.RunOption
		checks []handlers.HealthOption
		probes []internal.HealthOption
	)

	if cfg.RedisURL != "" {
		var err error
		client, err = redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		store = cache.NewRedis[mailer.LivenessEntry](client, "mailgate")
		checks = append(checks, handlers.WithDependency("redis", redis.Healthcheck(client)))
		probes = append(probes, internal.WithReadinessCheck("redis", redis.Healthcheck(client)))
	}
	liveness := mailer.NewLivenessCache(store,
		mailer.WithLivenessTTL(cfg.LivenessTTL),
		mailer.WithLivenessFailureTTL(cfg.LivenessFailureTTL),
		mailer.WithLivenessLogger(log.With(slog.String("component", "liveness"))),
	)

	providers, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	dispatcher := mailer.NewDispatcher(
		mailer.WithProviders(providers...),
		mailer.WithSharedSecret(cfg.Service.APISecret),
		mailer.WithLivenessCache(liveness),
		mailer.WithObserver(m),
		mailer.WithLogger(log.With(slog.String("component", "dispatcher"))),
	)

	if dispatcher.Open() {
		log.Warn("API_SECRET is not set, every request is accepted")
	}
	if len(providers) == 0 {
		log.Warn("no email provider configured, sends will fail")
	}
	log.Info("email providers configured", slog.Any("providers", dispatcher.Providers()))

	checks = append(checks,
		handlers.WithService(cfg.Service.Name, cfg.Service.Version),
		handlers.WithHealthLogger(log),
	)

	app := internal.New(
		internal.WithLogger(log),
		internal.WithMiddleware(
			middlewares.RequestID(),
			middlewares.RequestLogger("/metrics", "/health/live"),
			m.Middleware(),
			middlewares.Recover(),
			middlewares.CORS(middlewares.WithAllowOrigins(cfg.CORSAllowOrigins...)),
		),
		internal.WithHandlers(handlers.Aliased(handlers.APIPrefix,
			handlers.NewHealth(dispatcher, checks...),
			handlers.NewEmail(dispatcher, handlers.WithTemplateDefaults(cfg.Links.Defaults)),
			handlers.NewMetrics(m.Handler()),
		)),
		internal.WithErrorHandler(handlers.ErrorHandler),
		internal.WithNotFoundHandler(handlers.NotFound),
		internal.WithMethodNotAllowedHandler(handlers.MethodNotAllowed),
		internal.WithHealthChecks(probes...),
	)

	hooks = append(hooks,
		internal.ShutdownTimeout(cfg.Service.ShutdownTimeout),
		internal.ShutdownHook(func(context.Context) error { return dispatcher.Close() }),
	)
	if client != nil {
		hooks = append(hooks, internal.ShutdownHook(redis.Shutdown(client)))
	}
	hooks = append(hooks, internal.ShutdownHook(logger.FlushSentry))

	return app.Run(cfg.Address(), hooks...)
}

// buildProviders returns the configured providers in priority order:
// the SMTP relay first, the hosted API second.
func buildProviders(cfg *config.Config, log *slog.Logger) ([]mailer.Provider, error) {
	var providers []mailer.Provider

	if cfg.SMTP.Configured() {
		relay, err := smtp.New(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		providers = append(providers, relay)
	} else {
		log.Info("SMTP relay not configured")
	}

	if cfg.Resend.Configured() {
		hosted, err := resend.New(cfg.Resend, resend.WithFallbackFrom(cfg.SMTP.From))
		if err != nil {
			return nil, err
		}
		providers = append(providers, hosted)
	} else {
		log.Info("Resend API not configured")
	}

	return providers, nil
}

func flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = logger.FlushSentry(ctx)
}
