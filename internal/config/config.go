package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type CheckoutConfig struct {
	Env                string `yaml:"env"`
	HTTPServer         `yaml:"http_server"`
	CheckoutDB         `yaml:"checkout_db"`
	LogConfig          `yaml:"log_config"`
	LedgerService      `yaml:"ledger-service"`
	PaymentGateway     `yaml:"payment-gateway"`
	FulfillmentService `yaml:"fulfillment-service"`
	KafkaService       `yaml:"kafka-service"`
	Reconciler         `yaml:"reconciler"`
	ServicePolicies    []ServicePolicy `yaml:"service_policies"`
}

type HTTPServer struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"25s"`
}

type CheckoutDB struct {
	Dsn            string `yaml:"dsn"`
	MigrationsPath string `yaml:"migrations_path"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type LedgerService struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type PaymentGateway struct {
	BaseURL   string        `yaml:"base_url"`
	SecretKey string        `yaml:"secret_key" env:"GATEWAY_SECRET_KEY"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

type FulfillmentService struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key" env:"FULFILLMENT_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env-default:"15s"`
}

type KafkaService struct {
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`
	Topic string `yaml:"topic" env-default:"checkout-events"`
}

type Reconciler struct {
	SweepInterval   time.Duration `yaml:"sweep_interval" env-default:"5s"`
	MinPollInterval time.Duration `yaml:"min_poll_interval" env-default:"10s"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval" env-default:"5m"`
	MaxAttempts     int32         `yaml:"max_attempts" env-default:"20"`
	LeaseTTL        time.Duration `yaml:"lease_ttl" env-default:"30s"`
	BatchSize       int           `yaml:"batch_size" env-default:"100"`
	StaleFundingAge time.Duration `yaml:"stale_funding_age" env-default:"15m"`
}

type ServicePolicy struct {
	Kind           string   `yaml:"kind"`
	MinAmount      int64    `yaml:"min_amount"`
	MaxAmount      int64    `yaml:"max_amount"`
	WalletOnly     bool     `yaml:"wallet_only"`
	RequiredFields []string `yaml:"required_fields"`
}

func MustLoad() *CheckoutConfig {

	configPath := os.Getenv("CHECKOUT_CONFIG_PATH")

	if configPath == "" {
		log.Fatalf("CHECKOUT_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	var cfg CheckoutConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
