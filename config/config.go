package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Kafka    KafkaConfig     `yaml:"kafka"`
	Redis    RedisConfig     `yaml:"redis"`
	Carrier  CarrierConfig   `yaml:"carrier"`
	Shopify  ShopifyConfig   `yaml:"shopify"`
	Gate     KargoGateConfig `yaml:"kargogate"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentCreatedTopicName string `yaml:"shipment_created_topic_name"`
	ShipmentStatusTopicName  string `yaml:"shipment_status_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CarrierConfig holds the MNG API endpoint and the process-level
// credential fallbacks. Per-merchant credentials in the shops table take
// precedence; these cover the single-tenant deployment shape.
type CarrierConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`

	CustomerNumber string `yaml:"customer_number"`
	Password       string `yaml:"password"`
	IdentityType   int    `yaml:"identity_type"`

	// CarrierCustomerID is the carrier-registered customer id used as
	// the shipper on return orders. Distinct from CustomerNumber, which
	// only authenticates the token endpoint.
	CarrierCustomerID string `yaml:"carrier_customer_id"`

	// Identity-scope client pair (token endpoint).
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// Order-scope client pair (createOrder / createbarcode).
	OrderClientID     string `yaml:"order_client_id"`
	OrderClientSecret string `yaml:"order_client_secret"`

	// CBS-scope client pair (city/district reference data).
	CBSClientID     string `yaml:"cbs_client_id"`
	CBSClientSecret string `yaml:"cbs_client_secret"`

	// StaticToken bypasses the token manager entirely when set.
	StaticToken string `yaml:"static_token"`

	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
}

type ShopifyConfig struct {
	APIKey       string `yaml:"api_key"`
	SharedSecret string `yaml:"shared_secret"`
	APIVersion   string `yaml:"api_version"`
	LocationID   int64  `yaml:"location_id"`

	// Test-only escape hatches. Must stay false in production.
	HMACBypass          bool   `yaml:"hmac_bypass"`
	ForceDummyRecipient bool   `yaml:"force_dummy_recipient"`
	DummyCity           string `yaml:"dummy_city"`
	DummyDistrict       string `yaml:"dummy_district"`
	DummyAddress        string `yaml:"dummy_address"`
	DummyFullName       string `yaml:"dummy_full_name"`
	DummyPhone          string `yaml:"dummy_phone"`
	DummyEmail          string `yaml:"dummy_email"`
}

type KargoGateConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	GeoCacheTTLSeconds      int `yaml:"geo_cache_ttl_seconds"`
	ShipmentCacheTTLSeconds int `yaml:"shipment_cache_ttl_seconds"`

	WebhookRateLimitPerMinute int `yaml:"webhook_rate_limit_per_minute"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int    `yaml:"worker_batch_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int    `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`

	// Status-check scheduling. Defaults are prod-like minutes.
	WorkerNextCheckMinSeconds int `yaml:"worker_next_check_min_seconds"`
	WorkerNextCheckMaxSeconds int `yaml:"worker_next_check_max_seconds"`
	WorkerBackoff1Seconds     int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds     int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds     int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds     int `yaml:"worker_backoff_4_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
