// Package app builds the services shared by the API, the worker and
// ordersctl from configuration.
package app

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/imrishuroy/go-storefront-orders/internal/analytics"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/gateway"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/mongostore"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
)

// Stores are the persistence backends for one storage driver.
type Stores struct {
	Orders      orders.Repository
	Idempotency idempotency.Store
	Catalog     catalog.Catalog
	Settings    settings.Store
}

// DynamoStores returns the DynamoDB-backed stores.
func DynamoStores(client aws.DynamoDBAPI, cfg config.Config) Stores {
	return Stores{
		Orders: orders.NewDynamoStore(client, orders.DynamoTables{
			Orders:      cfg.OrdersTable,
			UserIndex:   cfg.OrdersUserIndex,
			Idempotency: cfg.IdempotencyTable,
			Users:       cfg.UsersTable,
		}),
		Idempotency: idempotency.NewDynamoStore(client, cfg.IdempotencyTable),
		Catalog:     catalog.NewDynamoStore(client, cfg.ProductsTable),
		Settings:    settings.NewDynamoStore(client, cfg.SettingsTable),
	}
}

// MongoStores returns the MongoDB-backed stores.
func MongoStores(db *mongo.Database, cfg config.Config) Stores {
	return Stores{
		Orders:      mongostore.NewOrders(db, cfg.MongoTransactions),
		Idempotency: mongostore.NewIdempotency(db),
		Catalog:     mongostore.NewCatalog(db),
		Settings:    mongostore.NewSettings(db),
	}
}

// App is the wired object graph.
type App struct {
	Config    config.Config
	AWS       *aws.AWSClients
	Stores    Stores
	Settings  *settings.Service
	Checkout  *checkout.Service
	Workflow  *orders.Workflow
	Analytics *analytics.Aggregator
	Tokens    *auth.Tokens

	closers []func(context.Context) error
}

// RecorderFunc picks the domain metrics sink once the AWS clients exist.
type RecorderFunc func(clients *aws.AWSClients) metrics.Recorder

// Static always returns rec.
func Static(rec metrics.Recorder) RecorderFunc {
	return func(*aws.AWSClients) metrics.Recorder { return rec }
}

// CloudWatch publishes domain metrics under namespace.
func CloudWatch(namespace string) RecorderFunc {
	return func(c *aws.AWSClients) metrics.Recorder {
		return aws.NewCloudWatchRecorder(c.CloudWatch, namespace)
	}
}

// New connects the configured storage driver and wires every service. The
// API records metrics to Prometheus, the worker to CloudWatch.
func New(ctx context.Context, cfg config.Config, recorder RecorderFunc) (*App, error) {
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	rec := recorder(clients)

	var (
		stores  Stores
		closers []func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		closers = append(closers, client.Disconnect)
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		stores = MongoStores(db, cfg)
	default:
		stores = DynamoStores(clients.DynamoDB, cfg)
	}

	var queue checkout.Queue
	if cfg.QueueURL != "" {
		queue = checkout.NewSQSQueue(aws.NewPublisher(clients.SQS, cfg.QueueURL), cfg.ReconcileDelay)
	}
	gw := gateway.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)

	a, err := Assemble(ctx, cfg, stores, gw, queue, rec)
	if err != nil {
		for _, c := range closers {
			_ = c(ctx)
		}
		return nil, err
	}
	a.AWS = clients
	a.closers = closers
	logging.WithCtx(ctx).Info("app initialised", "driver", cfg.StoreDriver, "reconcile_queue", queue != nil)
	return a, nil
}

// Assemble wires services over already-built stores and clients. The
// persisted settings are loaded before it returns.
func Assemble(ctx context.Context, cfg config.Config, stores Stores, gw gateway.Gateway, queue checkout.Queue, rec metrics.Recorder) (*App, error) {
	defaults, err := DefaultSettings(cfg)
	if err != nil {
		return nil, err
	}
	set := settings.NewService(stores.Settings, defaults)
	if err := set.Load(ctx); err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Stores:   stores,
		Settings: set,
		Checkout: checkout.NewService(checkout.Deps{
			Orders:         stores.Orders,
			Idempotency:    stores.Idempotency,
			Catalog:        stores.Catalog,
			Settings:       set,
			Gateway:        gw,
			Queue:          queue,
			Metrics:        rec,
			IdempotencyTTL: cfg.IdempotencyTTL,
		}),
		Workflow:  orders.NewWorkflow(stores.Orders, rec),
		Analytics: analytics.NewAggregator(stores.Orders, stores.Catalog, set.Location),
		Tokens:    auth.NewTokens(cfg.JWTSecret),
	}, nil
}

// DefaultSettings are used until an admin saves settings.
func DefaultSettings(cfg config.Config) (settings.Settings, error) {
	fee, err := money.Parse(cfg.StoreDeliveryFee)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("STORE_DELIVERY_FEE: %w", err)
	}
	s := settings.Settings{
		StoreName:   cfg.StoreName,
		Currency:    cfg.StoreCurrency,
		Timezone:    cfg.StoreTimezone,
		DeliveryFee: fee,
	}
	if err := s.Validate(); err != nil {
		return settings.Settings{}, fmt.Errorf("store defaults: %w", err)
	}
	return s, nil
}

// Close releases driver connections.
func (a *App) Close(ctx context.Context) error {
	var first error
	for _, c := range a.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
