package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOrderDefaults(t *testing.T) {
	cfg, err := LoadOrder("")
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.Inventory.Timeout)
	assert.Equal(t, 4, cfg.Coordinator.LineWorkers)
	assert.Empty(t, cfg.MySQL.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadOrderFileThenEnv(t *testing.T) {
	path := writeFile(t, `
service_name: orders-a
inventory:
  base_url: http://inventory:8081
  timeout: 750ms
coordinator:
  line_workers: 16
mysql:
  addr: db:3306
  user: shop
  database: minishop
kafka:
  brokers: [k1:9092]
reconcile:
  grace: 5m
`)
	t.Setenv("LINE_WORKERS", "32")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadOrder(path)
	require.NoError(t, err)

	assert.Equal(t, "orders-a", cfg.ServiceName)
	assert.Equal(t, "http://inventory:8081", cfg.Inventory.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Inventory.Timeout)
	assert.Equal(t, 32, cfg.Coordinator.LineWorkers)
	assert.Equal(t, "db:3306", cfg.MySQL.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.Grace)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
}

func TestLoadOrderRejectsBadValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("INVENTORY_TIMEOUT", "soon")
		_, err := LoadOrder("")
		assert.Error(t, err)
	})
	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("LINE_WORKERS", "0")
		_, err := LoadOrder("")
		assert.ErrorContains(t, err, "line_workers")
	})
	t.Run("mysql without database", func(t *testing.T) {
		t.Setenv("MYSQL_ADDR", "db:3306")
		_, err := LoadOrder("")
		assert.ErrorContains(t, err, "mysql.database")
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOrder(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadInventorySeed(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9090"
seed:
  - name: Lamp
    category: home
    price: 2500
    available_quantity: 5
`)
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := LoadInventory(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	require.Len(t, cfg.Seed, 1)
	assert.Equal(t, 5, cfg.Seed[0].AvailableQuantity)
	assert.Equal(t, int64(2500), cfg.Seed[0].Price)
}
