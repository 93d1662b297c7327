// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/mdagg/mdagg/business/aggregator"
	"github.com/mdagg/mdagg/internal/config"
	"github.com/mdagg/mdagg/internal/di"
	"github.com/mdagg/mdagg/internal/logger"
)

// Monolith is the main application container providing access to shared
// infrastructure: configuration, logging, the market-data Aggregator, and
// the DI registry modules use to publish their own services.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Aggregator() *aggregator.Aggregator
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config     *config.Config
	logger     logger.LoggerInterface
	aggregator *aggregator.Aggregator
	container  di.Container
}

// New creates a new Monolith instance around an already-constructed
// Aggregator (the caller wires venue clients per cfg.Market.Exchanges
// before calling New — see cmd/mdagg/main.go).
func New(cfg *config.Config, log logger.LoggerInterface, agg *aggregator.Aggregator) (*app, error) {
	container := di.NewContainer()

	container.Set("config", cfg)
	container.Set("logger", log)
	container.Set("aggregator", agg)

	return &app{
		config:     cfg,
		logger:     log,
		aggregator: agg,
		container:  container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Aggregator() *aggregator.Aggregator {
	return a.aggregator
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close releases monolith-owned resources. The Aggregator's venue clients
// are driven by context cancellation rather than an explicit Close, so
// there is nothing further to release here today.
func (a *app) Close() error {
	return nil
}
