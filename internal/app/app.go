package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/internal/adapter/catalog"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

type serdes struct {
	order       schema.Serde
	searchEvent schema.Serde
}

type broker struct {
	tlsCfg         *tls.Config
	ordersProducer *kafka.OrdersProducer
	ordersConsumer *kafka.OrdersConsumer
	searchEmitter  *kafka.SearchEventsEmitter
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	catalog    domain.Catalog
	retryCfg   retry.RetryConfig
	store      port.SlotStore
	closeStore func()
	ledger     *service.OrderLedger
	serdes     serdes
	broker     broker
	service    *service.Service
	httpServer httphandler.HTTPServer
	wg         sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg, closeStore: func() {}}

	app.initLogger()
	app.initCatalog()
	app.initStorage()
	if cfg.Broker.Enabled {
		app.initBrokerTLS()
		app.initSerdes()
		app.initBrokerAdapters()
	}
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initCatalog() {
	const op = "App.initCatalog"

	c, err := catalog.Load(app.cfg.CatalogFile)
	if err != nil {
		app.fallDown(op, err)
	}
	app.catalog = c
	slog.Info("catalog is loaded", "op", op, "products", len(c.Products()))
}

func (app *App) initStorage() {
	const op = "App.initStorage"
	scfg := app.cfg.Storage

	backoff := retry.LinearBackoff(scfg.Retry.Delay)
	if scfg.Retry.Backoff == config.BackoffExponential {
		backoff = retry.ExponentialBackoff(scfg.Retry.Delay)
	}
	app.retryCfg = retry.RetryConfig{
		MaxAttempts: scfg.Retry.MaxAttempts,
		Backoff:     backoff,
	}

	switch scfg.Backend {
	case config.BackendPostgres:
		db, err := storage.NewSQLDB(app.ctx, scfg.SQLDB)
		if err != nil {
			app.fallDown(op, err)
		}
		app.store = storage.NewPostgresStore(db)
		app.closeStore = db.Close
	case config.BackendRedis:
		tlsCfg, err := adapter.MakeTLSConfig(
			scfg.RedisTLS.CA, scfg.RedisTLS.Cert, scfg.RedisTLS.Key,
		)
		if err != nil {
			app.fallDown(op, err)
		}
		rs, err := storage.NewRedisStore(app.ctx, scfg.RedisAddr, scfg.RedisTTL, tlsCfg)
		if err != nil {
			app.fallDown(op, err)
		}
		app.store = rs
		app.closeStore = rs.Close
	default:
		app.store = storage.NewMemoryStore()
	}

	app.ledger = service.NewOrderLedger(app.store, app.retryCfg)
	slog.Info("storage is ready", "op", op, "backend", scfg.Backend)
}

func (app *App) initBrokerTLS() {
	const op = "App.initBrokerTLS"
	t := app.cfg.Broker.TLS

	tlsCfg, err := adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
	if err != nil {
		app.fallDown(op, err)
	}
	app.broker.tlsCfg = tlsCfg
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"
	urls := app.cfg.Broker.SchemaRegistryURLs
	topics := app.cfg.Broker.Topics
	ctx := app.ctx

	srOpts := []sr.ClientOpt{sr.URLs(urls...)}
	if app.broker.tlsCfg != nil {
		srOpts = append(srOpts, sr.HTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: app.broker.tlsCfg},
		}))
	}
	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	schemaCreater := schema.NewSchemaCreater(srClient)

	orderSerde, err := schema.NewSerdeOrderV1(
		ctx,
		schema.SubjectOpt(topics.Orders+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	searchEventSerde, err := schema.NewSerdeSearchEventV1(
		ctx,
		schema.SubjectOpt(topics.SearchEvents+"-value"),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.order = orderSerde
	app.serdes.searchEvent = searchEventSerde
}

func (app *App) initBrokerAdapters() {
	const op = "App.initBrokerAdapters"

	ctx := app.ctx
	bcfg := app.cfg.Broker
	tlsCfg := app.broker.tlsCfg

	ordersProducer, err := kafka.NewOrdersProducer(
		kafka.ProducerClientOpt(ctx, bcfg.SeedBrokers, bcfg.Topics.Orders, tlsCfg),
		kafka.ProducerEncoderOpt(app.serdes.order),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	ordersConsumer, err := kafka.NewOrdersConsumer(
		kafka.ConsumerClientOpt(
			bcfg.SeedBrokers,
			bcfg.Topics.Orders,
			bcfg.Consumers.OrdersLedgerGroup,
			tlsCfg,
		),
		kafka.ConsumerDecoderOpt(app.serdes.order),
		kafka.OrdersConsumerRecorderOpt(app.ledger),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	searchEmitter, err := kafka.NewSearchEventsEmitter(
		bcfg.SeedBrokers, bcfg.Topics.SearchEvents, app.serdes.searchEvent, tlsCfg,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.broker.ordersProducer = ordersProducer
	app.broker.ordersConsumer = ordersConsumer
	app.broker.searchEmitter = searchEmitter
}

func (app *App) initCoreService() {
	// Without a broker the ledger records orders directly.
	var placer port.OrderPlacer = app.ledger
	var emitter port.SearchEventEmitter
	if app.cfg.Broker.Enabled {
		placer = app.broker.ordersProducer
		emitter = app.broker.searchEmitter
	}

	app.service = service.New(
		app.catalog, app.store, placer, emitter,
		service.RetryOpt(app.retryCfg),
		service.SessionIdleOpt(app.cfg.SessionIdleTTL),
	)
}

func (app *App) initInboundAdapters() {
	addr := app.cfg.HTTPServerAddr
	mux := http.NewServeMux()
	httphandler.RegisterStorefront(mux, app.service, app.ledger)

	handler := httphandler.AllowJSON(mux)
	app.httpServer = httphandler.NewHTTPServer(addr, handler)
}

func (app *App) Run(stopFn context.CancelFunc) {
	if c := app.broker.ordersConsumer; c != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			c.Run(app.ctx)
		}()
	}

	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)

	if app.cfg.Broker.Enabled {
		app.wg.Wait()
		app.broker.ordersConsumer.Close()
		app.broker.ordersProducer.Close()
		app.broker.searchEmitter.Close()
	}
	app.closeStore()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
