package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	httpadapter "courierhub/internal/adapters/in/http"
	"courierhub/internal/adapters/in/http/openapi"
	"courierhub/internal/adapters/in/kafka"
	"courierhub/internal/adapters/out/metrics"
	"courierhub/internal/adapters/out/mqttpush"
	"courierhub/internal/adapters/out/postgres"
	"courierhub/internal/adapters/out/rabbitmq"
	"courierhub/internal/adapters/out/realtime"
	"courierhub/internal/adapters/out/tariff"
	"courierhub/internal/core/application/dispatch"
	"courierhub/internal/core/application/usecases/commands"
	"courierhub/internal/core/application/usecases/queries"
	"courierhub/internal/core/domain/services"
	"courierhub/internal/core/ports"
	"courierhub/internal/jobs"
	"courierhub/internal/pkg/clock"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// CompositionRoot owns every long-lived dependency of the service and hands
// out handlers wired to them.
type CompositionRoot struct {
	cfg        Config
	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory
	logger     *slog.Logger
	clock      clock.Clock

	registry *prometheus.Registry
	metrics  *metrics.Recorder

	hub      *realtime.Hub
	mqtt     *mqttpush.Session
	notifier ports.Notifier
	audit    ports.AuditSink
	closers  []func() error

	quoter      *tariff.Quoter
	estimator   services.RouteEstimator
	planner     dispatch.Planner
	broadcaster *dispatch.Broadcaster
	fanout      *dispatch.Fanout
}

func NewCompositionRoot(ctx context.Context, cfg Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	c := &CompositionRoot{
		cfg:        cfg,
		gormDB:     gormDB,
		uowFactory: postgres.NewGormUnitOfWorkFactory(gormDB),
		logger:     logger,
		clock:      clock.System{},
		registry:   prometheus.NewRegistry(),
	}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var err error
	if c.metrics, err = metrics.NewRecorder(c.registry); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	c.uowFactory.OnCommit(func(_ context.Context, written []postgres.TrackedAggregate) {
		for _, w := range written {
			c.metrics.AggregateWritten(w.Kind())
		}
	})

	tariffCfg, err := cfg.Pricing.Tariff()
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if c.quoter, err = tariff.NewQuoter(tariffCfg); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if c.estimator, err = services.NewRouteEstimator(cfg.Pricing.AverageSpeedKmh); err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	policy, err := cfg.Dispatch.EscalationPolicy()
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	c.planner = dispatch.NewPlanner(policy)

	if err = c.connectChannels(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.broadcaster = dispatch.NewBroadcaster(c.notifier, c.audit, c.metrics, c.clock, logger)
	c.fanout = dispatch.NewFanout(c.notifier, c.audit, c.metrics, c.clock, logger)
	return c, nil
}

// connectChannels builds the notification fan-out: the websocket hub always,
// MQTT push and the RabbitMQ audit log when enabled.
func (c *CompositionRoot) connectChannels(ctx context.Context) error {
	c.hub = realtime.NewHub(c.cfg.Realtime.SessionBuffer, c.logger)
	c.closers = append(c.closers, func() error {
		c.hub.Close()
		return nil
	})
	channels := realtime.Multi{c.hub}

	if c.cfg.MQTT.Enabled {
		c.mqtt = mqttpush.NewSession(mqttpush.Config{
			Broker:      c.cfg.MQTT.Broker,
			ClientID:    c.cfg.MQTT.ClientID,
			QoS:         c.cfg.MQTT.QoS,
			TopicPrefix: c.cfg.MQTT.TopicPrefix,
		}, c.logger)
		if err := c.mqtt.Connect(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		c.closers = append(c.closers, func() error {
			c.mqtt.Disconnect()
			return nil
		})
		channels = append(channels, c.mqtt)
	}
	c.notifier = channels

	if c.cfg.RabbitMQ.Enabled {
		publisher, err := rabbitmq.Dial(c.cfg.RabbitMQ.URL, c.cfg.RabbitMQ.Exchange, c.logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		c.closers = append(c.closers, publisher.Close)
		c.audit = publisher
	}
	return nil
}

func (c *CompositionRoot) Logger() *slog.Logger {
	return c.logger
}

func (c *CompositionRoot) Config() Config {
	return c.cfg
}

func (c *CompositionRoot) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *CompositionRoot) CreateCreateAndDispatchOrderCommandHandler() commands.CreateAndDispatchOrderCommandHandler {
	return commands.NewCreateAndDispatchOrderCommandHandler(
		c.uowFactory, c.quoter, c.estimator, c.planner, c.broadcaster, c.clock, c.logger)
}

func (c *CompositionRoot) CreateAcceptOrderCommandHandler() commands.AcceptOrderCommandHandler {
	arbiter := dispatch.NewArbiter(c.uowFactory, c.cfg.Dispatch.MaxActiveOrders, c.cfg.Dispatch.RetryPolicy(),
		c.clock, c.metrics, c.logger)
	return commands.NewAcceptOrderCommandHandler(arbiter, c.fanout)
}

func (c *CompositionRoot) CreateCancelOrderCommandHandler() commands.CancelOrderCommandHandler {
	// validated by LoadConfig
	policy, _ := commands.ParseCancelAssignedPolicy(c.cfg.Dispatch.CancelAssignedPolicy)
	return commands.NewCancelOrderCommandHandler(c.uowFactory, c.fanout, policy, c.cfg.Dispatch.RetryPolicy(),
		c.clock, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateReportDeliveryProgressCommandHandler() commands.ReportDeliveryProgressCommandHandler {
	return commands.NewReportDeliveryProgressCommandHandler(c.uowFactory, c.cfg.Dispatch.RetryPolicy(),
		c.clock, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateUpdateCourierPresenceCommandHandler() commands.UpdateCourierPresenceCommandHandler {
	var f commands.CourierUoWFactory = FuncCourierUoWFactory(func() commands.CourierUoW {
		return c.uowFactory.Create()
	})
	return commands.NewUpdateCourierPresenceCommandHandler(f)
}

func (c *CompositionRoot) CreateExpireAttemptsCommandHandler() commands.ExpireAttemptsCommandHandler {
	return commands.NewExpireAttemptsCommandHandler(c.uowFactory, c.planner, c.broadcaster, c.fanout,
		c.cfg.Dispatch.RetryPolicy(), c.clock, c.metrics, c.logger)
}

func (c *CompositionRoot) CreateGetOrderStatusQueryHandler() queries.GetOrderStatusQueryHandler {
	return queries.NewGetOrderStatusQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetPendingOrdersQueryHandler() queries.GetPendingOrdersQueryHandler {
	return queries.NewGetPendingOrdersQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetOnlineCouriersQueryHandler() queries.GetOnlineCouriersQueryHandler {
	return queries.NewGetOnlineCouriersQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateHTTPServer(ctx context.Context) (*echo.Echo, error) {
	spec, err := openapi.Load(ctx)
	if err != nil {
		return nil, err
	}
	server := httpadapter.NewServer(httpadapter.Handlers{
		CreateOrder:    c.CreateCreateAndDispatchOrderCommandHandler(),
		AcceptOrder:    c.CreateAcceptOrderCommandHandler(),
		CancelOrder:    c.CreateCancelOrderCommandHandler(),
		ReportProgress: c.CreateReportDeliveryProgressCommandHandler(),
		UpdatePresence: c.CreateUpdateCourierPresenceCommandHandler(),
		OrderStatus:    c.CreateGetOrderStatusQueryHandler(),
		PendingOrders:  c.CreateGetPendingOrdersQueryHandler(),
		OnlineCouriers: c.CreateGetOnlineCouriersQueryHandler(),
	}, c.hub, c.logger.With("component", "http"))

	return httpadapter.NewEcho(httpadapter.Config{
		AcceptRate:  c.cfg.HTTP.AcceptRate,
		AcceptBurst: c.cfg.HTTP.AcceptBurst,
	}, server, spec, c.registry, c.logger), nil
}

func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	return jobs.NewJobManager(jobs.Config{
		TickInterval:    c.cfg.Dispatch.TickInterval,
		ExpiryBatchSize: c.cfg.Dispatch.ExpiryBatchSize,
		BacklogInterval: c.cfg.Dispatch.BacklogInterval,
	}, c.CreateExpireAttemptsCommandHandler(), c.uowFactory, c.metrics, c.logger)
}

// CreateOrderImportConsumer returns nil when the Kafka import is disabled.
func (c *CompositionRoot) CreateOrderImportConsumer() (*kafka.OrderImportConsumer, error) {
	if !c.cfg.Kafka.Enabled {
		return nil, nil
	}
	return kafka.NewOrderImportConsumer(kafka.Config{
		Brokers: c.cfg.Kafka.Brokers,
		GroupID: c.cfg.Kafka.Group,
		Topic:   c.cfg.Kafka.Topic,
	}, c.CreateCreateAndDispatchOrderCommandHandler(), c.logger)
}

type FuncCourierUoWFactory func() commands.CourierUoW

func (f FuncCourierUoWFactory) Create() commands.CourierUoW {
	return f()
}
