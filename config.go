package cartkit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
)

// Config wires the library to its surroundings. Every field can be set
// programmatically; ConfigFromEnv fills it from the environment for
// shells that prefer that.
type Config struct {
	CartServiceURL    string `env:"CARTKIT_CART_URL"`
	OrderServiceURL   string `env:"CARTKIT_ORDER_URL"`
	AddressServiceURL string `env:"CARTKIT_ADDRESS_URL"`

	// GatewaySecret is the merchant secret used to verify gateway
	// callback signatures.
	GatewaySecret string `env:"CARTKIT_GATEWAY_SECRET"`

	// CachePath is the sqlite file backing the durable local cache.
	// Ignored when RedisAddr is set.
	CachePath string `env:"CARTKIT_CACHE_PATH" envDefault:"cartkit.db"`

	// RedisAddr switches the durable cache to a local redis instance.
	RedisAddr string `env:"CARTKIT_REDIS_ADDR"`

	// RequestTimeout bounds every remote call; a timeout is treated as a
	// network failure and takes the fallback path.
	RequestTimeout time.Duration `env:"CARTKIT_REQUEST_TIMEOUT" envDefault:"15s"`

	// KafkaBrokers, when set, enables the shipment tracking consumer.
	KafkaBrokers []string `env:"CARTKIT_KAFKA_BROKERS"`

	// Metrics receives the library's collectors. Leave nil to keep them
	// unregistered; pass prometheus.DefaultRegisterer to scrape them.
	Metrics prometheus.Registerer `env:"-"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("cartkit: parse config: %w", err)
	}
	return cfg, nil
}
