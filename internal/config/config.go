// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present; real environment
// variables win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverDynamoDB = "dynamodb"
	DriverMongo    = "mongo"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	RunLocal bool

	StoreDriver string

	AWSRegion   string
	AWSEndpoint string

	OrdersTable      string
	OrdersUserIndex  string
	IdempotencyTable string
	UsersTable       string
	ProductsTable    string
	SettingsTable    string

	MongoURI      string
	MongoDatabase string

	// MongoTransactions wraps placement writes in a session transaction.
	// Standalone servers do not support them.
	MongoTransactions bool

	QueueURL       string
	ReconcileDelay time.Duration
	IdempotencyTTL time.Duration

	JWTSecret string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	GatewayTimeout    time.Duration

	StoreName           string
	StoreCurrency       string
	StoreTimezone       string
	StoreDeliveryFee    string
	CloudWatchNamespace string

	ShutdownGracePeriod time.Duration
}

// Load reads .env (if any) and the environment. Malformed durations or
// booleans are reported rather than silently replaced by defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	p := &parser{}
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "local"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		RunLocal: p.bool("RUN_LOCAL", false),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverDynamoDB)),

		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		OrdersTable:      getEnv("ORDERS_TABLE", "orders"),
		OrdersUserIndex:  getEnv("ORDERS_USER_INDEX", "user_id-created_at-index"),
		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		UsersTable:       getEnv("USERS_TABLE", "users"),
		ProductsTable:    getEnv("PRODUCTS_TABLE", "products"),
		SettingsTable:    getEnv("SETTINGS_TABLE", "settings"),

		MongoURI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGODB_DATABASE", "ecommerce"),
		MongoTransactions: p.bool("MONGODB_TRANSACTIONS", true),

		QueueURL:       getEnv("ORDERS_QUEUE_URL", ""),
		ReconcileDelay: p.duration("RECONCILE_DELAY", 5*time.Minute),
		IdempotencyTTL: p.duration("IDEMPOTENCY_TTL", 48*time.Hour),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		GatewayTimeout:    p.duration("GATEWAY_TIMEOUT", 10*time.Second),

		StoreName:           getEnv("STORE_NAME", "Forever"),
		StoreCurrency:       getEnv("STORE_CURRENCY", "INR"),
		StoreTimezone:       getEnv("STORE_TIMEZONE", "UTC"),
		StoreDeliveryFee:    getEnv("STORE_DELIVERY_FEE", "0"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront/Orders"),

		ShutdownGracePeriod: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	switch cfg.StoreDriver {
	case DriverDynamoDB, DriverMongo:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q (supported: dynamodb, mongo)", cfg.StoreDriver)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// parser remembers the first malformed value.
type parser struct {
	err error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) bool(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
