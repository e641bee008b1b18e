package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	diagservice "execledger/internal/diagnostic/service"
	diagstore "execledger/internal/diagnostic/store"
	"execledger/internal/platform/config"
	"execledger/internal/platform/database"
	"execledger/internal/platform/kafka"
	"execledger/internal/platform/redis"
	policyservice "execledger/internal/policy/service"
	policystore "execledger/internal/policy/store"
	ratelimit "execledger/internal/ratelimit/middleware"
	"execledger/internal/ratelimit/store/bucket"
	httptransport "execledger/internal/transport/http"
)

// infra holds the external connections the stores and sinks share.
type infra struct {
	db    *database.DB
	redis *redis.Client
	kafka *kgo.Client
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger, health *httptransport.HealthHandler) (_ *infra, err error) {
	in := &infra{}
	defer func() {
		if err != nil {
			in.Close()
		}
	}()

	switch cfg.Storage.Backend {
	case config.BackendPostgres, config.BackendSQLite:
		dialect := database.Postgres
		if cfg.Storage.Backend == config.BackendSQLite {
			dialect = database.SQLite
		}
		in.db, err = database.Open(ctx, dialect, cfg.Storage.DSN, database.Options{MaxOpenConns: cfg.Storage.MaxOpenConns})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		health.Add("database", in.db.PingContext)
		log.InfoContext(ctx, "database ready", "dialect", string(dialect))
	}

	in.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if in.redis != nil {
		health.Add("redis", in.redis.Health)
		log.InfoContext(ctx, "redis ready")
	}

	in.kafka, err = kafka.New(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if in.kafka != nil {
		if cfg.Kafka.EnsureTopic {
			if err := kafka.EnsureTopic(ctx, in.kafka, cfg.Kafka, log); err != nil {
				return nil, fmt.Errorf("ensure kafka topic: %w", err)
			}
		}
		client := in.kafka
		health.Add("kafka", func(ctx context.Context) error { return kafka.Health(ctx, client) })
		log.InfoContext(ctx, "kafka ready", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	return in, nil
}

// Close releases every open connection.
func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

type stores struct {
	policies policyservice.Store
	logs     diagservice.Store
}

func buildStores(cfg config.Config, in *infra) (stores, error) {
	var s stores
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		s.policies = policystore.NewInMemoryPolicyStore()
	case config.BackendPostgres, config.BackendSQLite:
		s.policies = policystore.NewSQLPolicyStore(in.db)
	default:
		return s, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	switch backend := cfg.LogStoreBackend(); backend {
	case config.BackendMemory:
		s.logs = diagstore.NewInMemoryLogStore()
	case config.BackendPostgres, config.BackendSQLite:
		if in.db == nil {
			return s, errors.New("diagnostic logs on a SQL backend need the SQL policy store")
		}
		s.logs = diagstore.NewSQLLogStore(in.db)
	case config.BackendRedis:
		if in.redis == nil {
			return s, errors.New("diagnostic logs on redis need redis.url")
		}
		s.logs = diagstore.NewRedisLogStore(in.redis, "")
	default:
		return s, fmt.Errorf("unsupported log backend %q", backend)
	}
	return s, nil
}

func rateLimitStore(cfg config.Config, in *infra) ratelimit.BucketStore {
	if cfg.RateLimit.Backend == config.BackendRedis && in.redis != nil {
		return bucket.NewRedisBucketStore(in.redis, "")
	}
	return bucket.NewInMemoryBucketStore()
}
