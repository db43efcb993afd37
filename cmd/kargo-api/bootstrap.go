package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DenizBir/KargoGate/config"
	"github.com/DenizBir/KargoGate/internal/api/cbs_api"
	"github.com/DenizBir/KargoGate/internal/api/orders_api"
	"github.com/DenizBir/KargoGate/internal/api/returns_api"
	"github.com/DenizBir/KargoGate/internal/api/settings_api"
	"github.com/DenizBir/KargoGate/internal/api/shipments_api"
	"github.com/DenizBir/KargoGate/internal/api/webhook_api"
	"github.com/DenizBir/KargoGate/internal/broker/kafka"
	"github.com/DenizBir/KargoGate/internal/cache/rediscache"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier/mngv1"
	"github.com/DenizBir/KargoGate/internal/integrations/platform/shopifyv1"
	"github.com/DenizBir/KargoGate/internal/services/geocode"
	"github.com/DenizBir/KargoGate/internal/services/returns"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/DenizBir/KargoGate/internal/services/tokens"
	"github.com/DenizBir/KargoGate/internal/storage/pgstore"
)

type kargoAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     kargoAPIOpts
	deps     apiDeps
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapKargoAPI() *kargoAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("cannot load config: %v", err))
	}

	httpAddr := cfg.Gate.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Gate.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "kargo-api"
	}
	statusTopic := cfg.Kafka.ShipmentStatusTopicName
	if statusTopic == "" {
		statusTopic = "shipment.status"
	}
	createdTopic := cfg.Kafka.ShipmentCreatedTopicName
	if createdTopic == "" {
		createdTopic = "shipment.created"
	}

	shipmentTTL := time.Duration(cfg.Gate.ShipmentCacheTTLSeconds) * time.Second
	if shipmentTTL <= 0 {
		shipmentTTL = 10 * time.Minute
	}
	geoTTL := time.Duration(cfg.Gate.GeoCacheTTLSeconds) * time.Second
	if geoTTL <= 0 {
		geoTTL = 24 * time.Hour
	}
	carrierTimeout := time.Duration(cfg.Carrier.HTTPTimeoutSeconds) * time.Second
	if carrierTimeout <= 0 {
		carrierTimeout = 30 * time.Second
	}
	webhookRL := cfg.Gate.WebhookRateLimitPerMinute
	if webhookRL <= 0 {
		webhookRL = 60
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	mng := mngv1.New(cfg.Carrier.BaseURL, cfg.Carrier.APIVersion,
		cfg.Carrier.CBSClientID, cfg.Carrier.CBSClientSecret, carrierTimeout)
	fallback := fallbackCredentials(cfg.Carrier)

	tokenMgr := tokens.New(mng, rc, cfg.Carrier.StaticToken)
	geo := geocode.New(mng, rc, geoTTL)
	builder := shipments.NewBuilder(geo)
	shipSvc := shipments.New(mng, tokenMgr, builder, st, rc, shipmentTTL, fallback)
	returnsSvc := returns.New(mng, tokenMgr, st, cfg.Carrier.CarrierCustomerID, fallback)

	shopify := shopifyv1.New(cfg.Shopify.APIVersion, cfg.Shopify.APIKey, cfg.Shopify.SharedSecret)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, statusTopic, consumerGroup)

	deps := apiDeps{
		webhook:  webhook_api.New(cfg.Shopify, st, shipSvc, shopify, rl, webhookRL, producer, createdTopic),
		cbs:      cbs_api.New(geo),
		ship:     shipments_api.New(st, shipSvc),
		settings: settings_api.New(st, tokenMgr),
		returns:  returns_api.New(st, returnsSvc),
		orders:   orders_api.New(st, shopify),
		svc:      shipSvc,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &kargoAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: kargoAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         statusTopic,
			consumerGroup: consumerGroup,
		},
		deps:     deps,
		consumer: consumer,
		closeDB:  st.Close,
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

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgstore.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *kargoAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *kargoAPIApp) Run() error {
	return runKargoAPI(a.ctx, a.opts, a.deps, a.consumer)
}
