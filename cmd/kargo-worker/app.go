package main

import (
	"context"
	"fmt"
	"time"

	"github.com/DenizBir/KargoGate/config"
	"github.com/DenizBir/KargoGate/internal/broker/kafka"
	"github.com/DenizBir/KargoGate/internal/cache"
	"github.com/DenizBir/KargoGate/internal/cache/rediscache"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier/fake"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier/mngv1"
	"github.com/DenizBir/KargoGate/internal/services/statussync"
	"github.com/DenizBir/KargoGate/internal/services/tokens"
	"github.com/DenizBir/KargoGate/internal/storage/pgstore"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo statussync.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) statussync.Producer
	newRateLimiter   func(cfg *config.Config) statussync.RateLimiter
	newCarrierClient func(cfg *config.Config) carrier.Client
	newTokenCache    func(cfg *config.Config) cache.BytesCache
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (statussync.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgstore.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) statussync.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) statussync.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			// No carrier endpoint configured means a local/dev run; fall
			// back to the in-process fake instead of dialing nothing.
			if cfg.Carrier.BaseURL == "" {
				return fake.New()
			}
			timeout := time.Duration(cfg.Carrier.HTTPTimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			return mngv1.New(cfg.Carrier.BaseURL, cfg.Carrier.APIVersion,
				cfg.Carrier.CBSClientID, cfg.Carrier.CBSClientSecret, timeout)
		},
		newTokenCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
	}
}

func fallbackCredentials(c config.CarrierConfig) carrier.Credentials {
	identityType := c.IdentityType
	if identityType == 0 {
		identityType = 1
	}
	return carrier.Credentials{
		CustomerNumber:    c.CustomerNumber,
		Password:          c.Password,
		IdentityType:      identityType,
		ClientID:          c.ClientID,
		ClientSecret:      c.ClientSecret,
		OrderClientID:     c.OrderClientID,
		OrderClientSecret: c.OrderClientSecret,
	}
}

func plannerConfigFromCfg(g config.KargoGateConfig) statussync.PlannerConfig {
	return statussync.PlannerConfig{
		InTransitMinDelay: time.Duration(g.WorkerNextCheckMinSeconds) * time.Second,
		InTransitMaxDelay: time.Duration(g.WorkerNextCheckMaxSeconds) * time.Second,
		Backoff1:          time.Duration(g.WorkerBackoff1Seconds) * time.Second,
		Backoff2:          time.Duration(g.WorkerBackoff2Seconds) * time.Second,
		Backoff3:          time.Duration(g.WorkerBackoff3Seconds) * time.Second,
		Backoff4:          time.Duration(g.WorkerBackoff4Seconds) * time.Second,
	}
}

func buildPoller(cfg *config.Config, f workerFactories) (*statussync.Poller, func(), error) {
	topic := cfg.Kafka.ShipmentStatusTopicName
	if topic == "" {
		topic = "shipment.status"
	}

	pollInterval := time.Duration(cfg.Gate.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.Gate.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Gate.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.Gate.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.Gate.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	carrierClient := f.newCarrierClient(cfg)
	tokenSrc := tokens.New(carrierClient, f.newTokenCache(cfg), cfg.Carrier.StaticToken)

	p := statussync.New(repo, carrierClient, tokenSrc, producer, rl, topic, fallbackCredentials(cfg.Carrier)).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfigFromCfg(cfg.Gate))

	return p, closeFn, nil
}

func RunKargoWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	p, closeFn, err := buildPoller(cfg, f)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return p.Run(ctx)
}
