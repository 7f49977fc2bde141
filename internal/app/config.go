package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	FrontendURL  string `default:"http://localhost:3000" usage:"Storefront origin for post-payment redirects" flag:"frontend-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`

	PayPal    PayPalConfig `env:"PAYPAL" flag:"paypal" yaml:"paypal"`
	Checkout  CheckoutConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// PayPalConfig holds payment processor credentials and redirect targets.
type PayPalConfig struct {
	ClientID  string        `usage:"PayPal REST client id" flag:"client-id"`
	Secret    string        `usage:"PayPal REST client secret" flag:"secret"`
	Env       string        `default:"sandbox" usage:"PayPal environment: sandbox or live"`
	BaseURL   string        `usage:"Override the PayPal API host" flag:"base-url"`
	Timeout   time.Duration `default:"15s" usage:"Per-request timeout for PayPal calls"`
	BrandName string        `default:"Storefront" usage:"Brand shown on the PayPal approval page" flag:"brand-name"`
	ReturnURL string        `usage:"Approval return URL (defaults to <addr>/orders/return)" flag:"return-url"`
	CancelURL string        `usage:"Approval cancel URL (defaults to <addr>/orders/cancel)" flag:"cancel-url"`
}

// CheckoutConfig tunes order creation.
type CheckoutConfig struct {
	Currency     string `default:"USD" usage:"Currency used when a checkout names none"`
	ReserveStock bool   `default:"false" usage:"Decrement stock on order creation" flag:"reserve-stock"`
}

// RedisConfig configures the order view cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (host:port)" flag:"redis-addr"`
	Password string        `usage:"Redis password" flag:"redis-password"`
	DB       int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	TTL      time.Duration `default:"5m" usage:"Cached order lifetime" flag:"redis-ttl"`
}

// KafkaConfig configures the outbox relay. Empty Brokers disables publishing;
// events stay in the outbox table.
type KafkaConfig struct {
	Brokers       string        `usage:"Comma-separated Kafka brokers" flag:"kafka-brokers"`
	Topic         string        `default:"orders.events" usage:"Order event topic" flag:"kafka-topic"`
	WriteTimeout  time.Duration `default:"10s" usage:"Kafka write timeout" flag:"kafka-write-timeout"`
	RelayInterval time.Duration `default:"1s" usage:"Outbox poll interval" flag:"relay-interval"`
	RelayBatch    int           `default:"100" usage:"Outbox rows per publish" flag:"relay-batch"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.PayPal.ClientID == "" || c.PayPal.Secret == "":
		return errors.New("paypal credentials are required: set SHOP_PAYPAL_CLIENT_ID and SHOP_PAYPAL_SECRET")
	case c.APIKeyPepper == "":
		return errors.New("api key pepper is required: set SHOP_API_KEY_PEPPER")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables such as
// DATABASE_URL and PORT, and derives the processor redirect targets from the
// public address.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}

	public := "http://" + strings.Replace(c.Addr, "0.0.0.0", "localhost", 1)
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		public = strings.TrimRight(v, "/")
	}
	if c.PayPal.ReturnURL == "" {
		c.PayPal.ReturnURL = public + "/orders/return"
	}
	if c.PayPal.CancelURL == "" {
		c.PayPal.CancelURL = public + "/orders/cancel"
	}
}
