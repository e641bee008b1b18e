package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"execledger/internal/access"
	diaghandler "execledger/internal/diagnostic/handler"
	diagmetrics "execledger/internal/diagnostic/metrics"
	diagservice "execledger/internal/diagnostic/service"
	"execledger/internal/events"
	"execledger/internal/events/feed"
	eventmetrics "execledger/internal/events/metrics"
	"execledger/internal/events/sinks"
	exphandler "execledger/internal/expenditure/handler"
	expmetrics "execledger/internal/expenditure/metrics"
	expservice "execledger/internal/expenditure/service"
	jwttoken "execledger/internal/jwt_token"
	"execledger/internal/platform/config"
	"execledger/internal/platform/httpserver"
	"execledger/internal/platform/logger"
	"execledger/internal/platform/metrics"
	policyhandler "execledger/internal/policy/handler"
	policymetrics "execledger/internal/policy/metrics"
	policyservice "execledger/internal/policy/service"
	ratemetrics "execledger/internal/ratelimit/metrics"
	ratelimit "execledger/internal/ratelimit/middleware"
	httptransport "execledger/internal/transport/http"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()
	health := httptransport.NewHealthHandler(0)

	infra, err := openInfra(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer infra.Close()

	stores, err := buildStores(cfg, infra)
	if err != nil {
		return err
	}

	eventMetrics := eventmetrics.New(m.Registry)
	notifier := events.NewNotifier(events.WithLogger(log))
	recorder := events.NewRecorder(cfg.Events.RecorderSize)
	notifier.Subscribe(recorder)
	notifier.Subscribe(sinks.NewMetricsSink(eventMetrics))
	notifier.Subscribe(sinks.NewTraceSink(otel.GetTracerProvider()))
	if cfg.Events.LogEvents {
		notifier.Subscribe(sinks.NewLogSink(log))
	}

	hubOpts := []feed.Option{feed.WithLogger(log), feed.WithMetrics(eventMetrics), feed.WithReplay(recorder)}
	if len(cfg.Events.AllowedOrigins) > 0 {
		hubOpts = append(hubOpts, feed.WithCheckOrigin(feed.AllowOrigins(cfg.Events.AllowedOrigins)))
	}
	hub := feed.NewHub(hubOpts...)
	notifier.Subscribe(hub)

	var workers []*sinks.Async
	asyncSink := func(p sinks.Publisher) {
		a := sinks.NewAsync(p,
			sinks.WithQueueSize(cfg.Events.QueueSize),
			sinks.WithBreaker(circuit.New(cfg.Events.BreakerThreshold, cfg.Events.BreakerCooldown)),
			sinks.WithLogger(log),
			sinks.WithMetrics(eventMetrics),
		)
		notifier.Subscribe(a)
		workers = append(workers, a)
	}
	if infra.kafka != nil {
		asyncSink(sinks.NewKafkaPublisher(infra.kafka, cfg.Kafka.Topic))
	}
	if infra.redis != nil && cfg.Events.RedisStream != "" {
		asyncSink(sinks.NewRedisStreamPublisher(infra.redis, cfg.Events.RedisStream, cfg.Events.RedisStreamMaxLen))
	}

	principals := make([]id.Principal, 0, len(cfg.Principals()))
	for _, p := range cfg.Principals() {
		principals = append(principals, id.NewPrincipal(p))
	}
	gate := access.NewGate(principals...)

	policies := policyservice.New(stores.policies, gate, notifier,
		policyservice.WithLogger(log),
		policyservice.WithMetrics(policymetrics.New(m.Registry)),
		policyservice.WithTracer(otel.Tracer("execledger/policy")),
	)
	logs := diagservice.New(stores.logs, notifier,
		diagservice.WithLogger(log),
		diagservice.WithMetrics(diagmetrics.New(m.Registry)),
		diagservice.WithTracer(otel.Tracer("execledger/diagnostic")),
	)
	spend := expservice.New(notifier,
		expservice.WithLogger(log),
		expservice.WithMetrics(expmetrics.New(m.Registry)),
		expservice.WithTracer(otel.Tracer("execledger/expenditure")),
	)

	limiter := ratelimit.New(rateLimitStore(cfg, infra), cfg.RateLimit.Writes, cfg.RateLimit.Window, log,
		ratelimit.WithMetrics(ratemetrics.New(m.Registry)),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Logger:    log,
		Metrics:   m,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Modules: []httptransport.Registrar{
			policyhandler.New(policies, log),
			diaghandler.New(logs, log),
			exphandler.New(spend, log),
		},
		Feed:      hub,
		Replay:    feed.NewReplayHandler(recorder),
		Health:    health,
		RateLimit: limiter.Writes,
	})

	srv := httpserver.New(cfg.Server, router)
	log.InfoContext(ctx, "starting execledger",
		"addr", cfg.Server.Addr,
		"storage_backend", cfg.Storage.Backend,
		"log_backend", cfg.LogStoreBackend(),
		"oracles", len(principals),
		"async_sinks", len(workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	for _, w := range workers {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
