// Package config loads service settings: defaults, then an optional YAML file, then
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type OTel struct {
	// Endpoint is the OTLP gRPC collector. Tracing is disabled when empty.
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type InventoryClient struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Coordinator struct {
	LineWorkers      int           `yaml:"line_workers"`
	PublishTimeout   time.Duration `yaml:"publish_timeout"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
	IdempotencyLease time.Duration `yaml:"idempotency_lease"`
}

// MySQL is left with an empty Addr to keep orders in memory.
type MySQL struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type IntentLog struct {
	// Path of the sqlite file. Intents are kept in memory when empty.
	Path string `yaml:"path"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Reconcile struct {
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"`
}

type Order struct {
	ServiceName string          `yaml:"service_name"`
	Env         string          `yaml:"env"`
	LogLevel    string          `yaml:"log_level"`
	HTTP        HTTP            `yaml:"http"`
	Inventory   InventoryClient `yaml:"inventory"`
	Coordinator Coordinator     `yaml:"coordinator"`
	MySQL       MySQL           `yaml:"mysql"`
	IntentLog   IntentLog       `yaml:"intent_log"`
	Redis       Redis           `yaml:"redis"`
	Kafka       Kafka           `yaml:"kafka"`
	Reconcile   Reconcile       `yaml:"reconcile"`
	OTel        OTel            `yaml:"otel"`
}

type SeedProduct struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	Category          string `yaml:"category"`
	Brand             string `yaml:"brand"`
	Price             int64  `yaml:"price"`
	AvailableQuantity int    `yaml:"available_quantity"`
}

type Inventory struct {
	ServiceName string        `yaml:"service_name"`
	Env         string        `yaml:"env"`
	LogLevel    string        `yaml:"log_level"`
	HTTP        HTTP          `yaml:"http"`
	Redis       Redis         `yaml:"redis"`
	Kafka       Kafka         `yaml:"kafka"`
	OTel        OTel          `yaml:"otel"`
	Seed        []SeedProduct `yaml:"seed"`
}

func defaultOrder() Order {
	return Order{
		ServiceName: "order-service",
		Env:         "dev",
		LogLevel:    "info",
		HTTP:        HTTP{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Inventory:   InventoryClient{BaseURL: "http://localhost:8081", Timeout: 2 * time.Second},
		Coordinator: Coordinator{
			LineWorkers:      4,
			PublishTimeout:   300 * time.Millisecond,
			IdempotencyTTL:   24 * time.Hour,
			IdempotencyLease: 30 * time.Second,
		},
		Redis:     Redis{Prefix: "minishop"},
		Kafka:     Kafka{Topic: "minishop.orders"},
		Reconcile: Reconcile{Interval: 30 * time.Second, Grace: 2 * time.Minute},
		OTel:      OTel{SampleRatio: 1},
	}
}

func defaultInventory() Inventory {
	return Inventory{
		ServiceName: "inventory-service",
		Env:         "dev",
		LogLevel:    "info",
		HTTP:        HTTP{Addr: ":8081", ShutdownTimeout: 10 * time.Second},
		Redis:       Redis{Prefix: "minishop"},
		Kafka:       Kafka{Topic: "minishop.inventory"},
		OTel:        OTel{SampleRatio: 1},
	}
}

// LoadOrder reads the order service settings. path may be empty.
func LoadOrder(path string) (Order, error) {
	cfg := defaultOrder()
	if err := readFile(path, &cfg); err != nil {
		return Order{}, err
	}

	cfg.ServiceName = getenvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Env = getenvDefault("ENV", cfg.Env)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTP.Addr = getenvDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Inventory.BaseURL = getenvDefault("INVENTORY_BASE_URL", cfg.Inventory.BaseURL)
	cfg.MySQL.Addr = getenvDefault("MYSQL_ADDR", cfg.MySQL.Addr)
	cfg.MySQL.User = getenvDefault("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getenvDefault("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.Database = getenvDefault("MYSQL_DATABASE", cfg.MySQL.Database)
	cfg.IntentLog.Path = getenvDefault("INTENT_LOG_PATH", cfg.IntentLog.Path)
	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Kafka.Brokers = getenvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getenvDefault("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.OTel.Endpoint = getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)

	var err error
	if cfg.Inventory.Timeout, err = getenvDuration("INVENTORY_TIMEOUT", cfg.Inventory.Timeout); err != nil {
		return Order{}, err
	}
	if cfg.Coordinator.PublishTimeout, err = getenvDuration("PUBLISH_TIMEOUT", cfg.Coordinator.PublishTimeout); err != nil {
		return Order{}, err
	}
	if cfg.Coordinator.IdempotencyLease, err = getenvDuration("IDEMPOTENCY_LEASE", cfg.Coordinator.IdempotencyLease); err != nil {
		return Order{}, err
	}
	if cfg.Coordinator.LineWorkers, err = getenvInt("LINE_WORKERS", cfg.Coordinator.LineWorkers); err != nil {
		return Order{}, err
	}
	if cfg.Reconcile.Interval, err = getenvDuration("RECONCILE_INTERVAL", cfg.Reconcile.Interval); err != nil {
		return Order{}, err
	}
	if cfg.Reconcile.Grace, err = getenvDuration("RECONCILE_GRACE", cfg.Reconcile.Grace); err != nil {
		return Order{}, err
	}

	return cfg, cfg.validate()
}

// LoadInventory reads the inventory service settings. path may be empty.
func LoadInventory(path string) (Inventory, error) {
	cfg := defaultInventory()
	if err := readFile(path, &cfg); err != nil {
		return Inventory{}, err
	}

	cfg.ServiceName = getenvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Env = getenvDefault("ENV", cfg.Env)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTP.Addr = getenvDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Kafka.Brokers = getenvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getenvDefault("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.OTel.Endpoint = getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)

	if cfg.HTTP.Addr == "" {
		return Inventory{}, errors.New("config: http.addr is required")
	}
	return cfg, nil
}

func (c Order) validate() error {
	switch {
	case c.HTTP.Addr == "":
		return errors.New("config: http.addr is required")
	case c.Inventory.BaseURL == "":
		return errors.New("config: inventory.base_url is required")
	case c.Inventory.Timeout <= 0:
		return errors.New("config: inventory.timeout must be positive")
	case c.Coordinator.LineWorkers <= 0:
		return errors.New("config: coordinator.line_workers must be positive")
	case c.MySQL.Addr != "" && c.MySQL.Database == "":
		return errors.New("config: mysql.database is required when mysql.addr is set")
	}
	return nil
}

func readFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
