// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendMemory = "memory"
	BackendAWS    = "aws"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		RunLocal bool   `koanf:"run_local"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	// Storage selects AWS-backed stores or in-process memory stores.
	Storage struct {
		Backend string `koanf:"backend"`
	} `koanf:"storage"`

	Tables struct {
		Orders      string `koanf:"orders"`
		History     string `koanf:"history"`
		Ledger      string `koanf:"ledger"`
		Products    string `koanf:"products"`
		Counters    string `koanf:"counters"`
		Idempotency string `koanf:"idempotency"`
		Addresses   string `koanf:"addresses"`
	} `koanf:"tables"`

	Queue struct {
		PaymentsURL string `koanf:"payments_url"`
	} `koanf:"queue"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Shipping struct {
		WarehouseLat      float64 `koanf:"warehouse_lat"`
		WarehouseLng      float64 `koanf:"warehouse_lng"`
		RatePerKm         int64   `koanf:"rate_per_km"`
		PrioritySurcharge int64   `koanf:"priority_surcharge"`
	} `koanf:"shipping"`

	Checkout struct {
		IntentTTL time.Duration `koanf:"intent_ttl"`
	} `koanf:"checkout"`

	Payments struct {
		PendingTTL time.Duration `koanf:"pending_ttl"`
	} `koanf:"payments"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Metrics struct {
		Namespace string `koanf:"namespace"`
	} `koanf:"metrics"`
}

var defaults = map[string]any{
	"app.name":                    "storefront-fulfillment",
	"app.http_addr":               ":8080",
	"app.log_level":               "info",
	"storage.backend":             BackendAWS,
	"tables.orders":               "orders",
	"tables.history":              "order_history",
	"tables.ledger":               "stock_ledger",
	"tables.products":             "products",
	"tables.counters":             "counters",
	"tables.idempotency":          "idempotency",
	"tables.addresses":            "addresses",
	"redis.addr":                  "localhost:6379",
	"shipping.warehouse_lat":      14.5995,
	"shipping.warehouse_lng":      120.9842,
	"shipping.rate_per_km":        1000,
	"shipping.priority_surcharge": 15000,
	"checkout.intent_ttl":         30 * time.Minute,
	"payments.pending_ttl":        24 * time.Hour,
	"idempotency.ttl":             48 * time.Hour,
	"metrics.namespace":           "StorefrontFulfillment",
}

// envKeys maps the deployment's environment variables onto config keys.
var envKeys = map[string]string{
	"APP_NAME":                    "app.name",
	"HTTP_ADDR":                   "app.http_addr",
	"RUN_LOCAL":                   "app.run_local",
	"LOG_LEVEL":                   "app.log_level",
	"LOG_FILE":                    "app.log_file",
	"STORAGE_BACKEND":             "storage.backend",
	"ORDERS_TABLE":                "tables.orders",
	"ORDER_HISTORY_TABLE":         "tables.history",
	"STOCK_LEDGER_TABLE":          "tables.ledger",
	"PRODUCTS_TABLE":              "tables.products",
	"COUNTERS_TABLE":              "tables.counters",
	"IDEMPOTENCY_TABLE":           "tables.idempotency",
	"ADDRESSES_TABLE":             "tables.addresses",
	"PAYMENTS_QUEUE_URL":          "queue.payments_url",
	"REDIS_ADDR":                  "redis.addr",
	"REDIS_PASSWORD":              "redis.password",
	"REDIS_DB":                    "redis.db",
	"WAREHOUSE_LAT":               "shipping.warehouse_lat",
	"WAREHOUSE_LNG":               "shipping.warehouse_lng",
	"SHIPPING_RATE_PER_KM":        "shipping.rate_per_km",
	"SHIPPING_PRIORITY_SURCHARGE": "shipping.priority_surcharge",
	"CHECKOUT_INTENT_TTL":         "checkout.intent_ttl",
	"PENDING_PAYMENT_TTL":         "payments.pending_ttl",
	"IDEMPOTENCY_TTL":             "idempotency.ttl",
	"METRICS_NAMESPACE":           "metrics.namespace",
}

// Load reads defaults, then path when it names a file, then the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendAWS:
		for name, v := range map[string]string{
			"tables.orders":      c.Tables.Orders,
			"tables.history":     c.Tables.History,
			"tables.ledger":      c.Tables.Ledger,
			"tables.products":    c.Tables.Products,
			"tables.counters":    c.Tables.Counters,
			"tables.idempotency": c.Tables.Idempotency,
			"tables.addresses":   c.Tables.Addresses,
			"redis.addr":         c.Redis.Addr,
		} {
			if v == "" {
				return fmt.Errorf("%s required", name)
			}
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendAWS, c.Storage.Backend)
	}
	if c.Shipping.RatePerKm < 0 || c.Shipping.PrioritySurcharge < 0 {
		return fmt.Errorf("shipping rates must not be negative")
	}
	if c.Shipping.WarehouseLat < -90 || c.Shipping.WarehouseLat > 90 || c.Shipping.WarehouseLng < -180 || c.Shipping.WarehouseLng > 180 {
		return fmt.Errorf("warehouse coordinate out of range")
	}
	if c.Checkout.IntentTTL <= 0 || c.Payments.PendingTTL <= 0 || c.Idempotency.TTL <= 0 {
		return fmt.Errorf("ttls must be positive")
	}
	return nil
}
