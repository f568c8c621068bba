// Package app assembles the storefront services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/addresses"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/aws"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/cart"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/checkout"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/config"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/handlers"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/payments"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/shipping"
)

const redisPingTimeout = 3 * time.Second

// App holds every wired service. Stores are exposed so local runs and tests
// can seed them.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Orders      fulfillment.OrderStore
	Stock       inventory.Store
	Addresses   addresses.Book
	Cart        cart.Cart
	Idempotency idempotency.Keeper

	Ledger      *inventory.Ledger
	Accumulator *checkout.Accumulator
	Factory     *fulfillment.Factory
	Reconciler  *fulfillment.Reconciler
	Machine     *fulfillment.StatusMachine
	Expirer     *fulfillment.Expirer
	Reader      *fulfillment.Reader

	// PaymentQueue is nil when no queue URL is configured.
	PaymentQueue *payments.Queue

	closers []func() error
}

type backend struct {
	orders      fulfillment.OrderStore
	stock       inventory.Store
	book        addresses.Book
	cart        cart.Cart
	intents     checkout.IntentStore
	idempotency idempotency.Keeper
	alerter     fulfillment.Alerter
	queue       *payments.Queue
	closers     []func() error
}

// New wires the application for cfg's storage backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		b   *backend
		err error
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b = memoryBackend(cfg)
	case config.BackendAWS:
		b, err = awsBackend(ctx, cfg)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}

	fees := shipping.NewFeeCalculator(shipping.Rates{
		Warehouse:         shipping.Coordinate{Latitude: cfg.Shipping.WarehouseLat, Longitude: cfg.Shipping.WarehouseLng},
		PerKm:             cfg.Shipping.RatePerKm,
		PrioritySurcharge: cfg.Shipping.PrioritySurcharge,
	})

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Orders:       b.orders,
		Stock:        b.stock,
		Addresses:    b.book,
		Cart:         b.cart,
		Idempotency:  b.idempotency,
		PaymentQueue: b.queue,
		closers:      b.closers,
	}
	a.Ledger = inventory.NewLedger(b.stock, b.cart, logger.Named("ledger"))
	a.Accumulator = checkout.NewAccumulator(b.intents, b.book, b.cart, fees, cfg.Checkout.IntentTTL, logger.Named("checkout"))
	a.Factory = fulfillment.NewFactory(b.orders, a.Ledger, b.cart, b.book, b.alerter, logger.Named("factory"))
	a.Reconciler = fulfillment.NewReconciler(b.orders, a.Ledger, b.alerter, logger.Named("reconciler"))
	a.Machine = fulfillment.NewStatusMachine(b.orders, a.Ledger, b.alerter, logger.Named("status"))
	a.Expirer = fulfillment.NewExpirer(b.orders, a.Reconciler, cfg.Payments.PendingTTL, logger.Named("expirer"))
	a.Reader = fulfillment.NewReader(b.orders)
	return a, nil
}

// HandlerDeps exposes the services the HTTP API needs.
func (a *App) HandlerDeps() handlers.Deps {
	return handlers.Deps{
		Accumulator:  a.Accumulator,
		Factory:      a.Factory,
		Reconciler:   a.Reconciler,
		Machine:      a.Machine,
		Expirer:      a.Expirer,
		Reader:       a.Reader,
		Inventory:    a.Stock,
		Idempotency:  a.Idempotency,
		PaymentQueue: a.PaymentQueue,
		Logger:       a.Logger.Named("http"),
	}
}

// Close releases connections opened by New.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func memoryBackend(cfg *config.Config) *backend {
	return &backend{
		orders:      orders.NewMemoryStore(),
		stock:       inventory.NewMemoryStore(),
		book:        addresses.NewMemoryBook(),
		cart:        cart.NewMemoryCart(),
		intents:     checkout.NewMemoryIntentStore(),
		idempotency: idempotency.NewMemoryStore(cfg.Idempotency.TTL),
	}
}

func awsBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	clients, err := aws.LoadClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	t := cfg.Tables
	b := &backend{
		orders:      orders.NewStore(clients.DynamoDB, t.Orders, t.History, t.Counters),
		stock:       inventory.NewDynamoStore(clients.DynamoDB, t.Products, t.Ledger),
		book:        addresses.NewDynamoBook(clients.DynamoDB, t.Addresses),
		cart:        cart.NewRedisCart(rdb),
		intents:     checkout.NewRedisIntentStore(rdb),
		idempotency: idempotency.NewStore(clients.DynamoDB, t.Idempotency, cfg.Idempotency.TTL),
		alerter:     aws.NewAlerter(clients.CloudWatch, cfg.Metrics.Namespace),
		closers:     []func() error{rdb.Close},
	}
	if cfg.Queue.PaymentsURL != "" {
		b.queue = payments.NewQueue(aws.NewPublisher(clients.SQS, cfg.Queue.PaymentsURL))
	}
	return b, nil
}
