// Command mdagg runs the multi-venue derivatives market-data aggregator:
// it discovers the common instrument set across the configured exchanges,
// streams normalized order-book events into a shared broadcast sink, and
// exits on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mdagg/mdagg/business/aggregator"
	"github.com/mdagg/mdagg/business/venue/delta"
	"github.com/mdagg/mdagg/business/venue/deribit"
	"github.com/mdagg/mdagg/business/venue/venue"
	"github.com/mdagg/mdagg/internal/apm"
	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/config"
	"github.com/mdagg/mdagg/internal/health"
	"github.com/mdagg/mdagg/internal/httpclient"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/metrics"
	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/monolith"
	"github.com/mdagg/mdagg/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars and defaults otherwise)")
	healthPort := flag.Int("health-port", 8081, "health check server port")
	flag.Parse()

	_ = godotenv.Load() // optional .env; absence is not an error

	log := logger.New(os.Stdout, logger.LevelInfo, "mdagg", nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(context.Background(), "failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var tp apm.TraceProvider
	if cfg.Telemetry.Enabled {
		tp = apm.NewTraceProvider(log, apm.WithProvider(apm.ConsoleProvider, log))

		mp := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)
		defer mp.Shutdown(context.Background())

		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort)))
	} else {
		tp = apm.NewEmptyTraceProvider()
	}
	defer tp.Stop()

	agg, err := buildAggregator(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build aggregator", "error", err)
		os.Exit(1)
	}

	mono, err := monolith.New(cfg, log, agg)
	if err != nil {
		log.Error(ctx, "failed to build monolith", "error", err)
		os.Exit(1)
	}

	healthSrv := health.NewServer(*healthPort, mono.Config().App.Environment)
	healthSrv.RegisterCheck("aggregator", func(ctx context.Context) (bool, string) {
		if mono.Aggregator() == nil {
			return false, "aggregator not constructed"
		}
		return true, ""
	})
	if err := healthSrv.Start(); err != nil {
		log.Warn(ctx, "health server failed to start", "error", err)
	}
	defer healthSrv.Stop(context.Background())

	instruments, err := agg.CommonInstruments(ctx)
	if err != nil {
		log.Error(ctx, "discovery failed, aborting startup", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "discovered common instrument set", "count", len(instruments))

	sub, err := agg.Consume(ctx, instruments)
	if err != nil {
		log.Error(ctx, "failed to start streaming", "error", err)
		os.Exit(1)
	}

	log.Info(ctx, "mdagg running", "exchanges", cfg.Market.Exchanges, "currencies", cfg.Market.Currencies)
	for {
		ev, lag, err := sub.Receive(ctx)
		if err != nil {
			log.Info(ctx, "shutting down", "reason", err)
			return
		}
		if lag > 0 {
			log.Warn(ctx, "subscriber lagging", "dropped", lag)
		}
		_ = ev // downstream consumption (analytics, storage, UI) is out of scope (spec.md §2)
	}
}

// buildAggregator wires one venue client per configured exchange.
func buildAggregator(cfg *config.Config, log logger.LoggerInterface) (*aggregator.Aggregator, error) {
	exchanges := make([]model.Exchange, 0, len(cfg.Market.Exchanges))
	clients := make(map[model.Exchange]venue.Client, len(cfg.Market.Exchanges))

	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("mdagg-catalog"),
		httpclient.WithRequestTimeout(cfg.Stream.CatalogHTTPTimeout),
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeCatalogFetchFailed, "construct catalog http client")
	}

	for _, name := range cfg.Market.Exchanges {
		switch name {
		case "delta":
			exchanges = append(exchanges, model.ExchangeDelta)
			clients[model.ExchangeDelta] = delta.New(httpClient, log)
		case "deribit":
			exchanges = append(exchanges, model.ExchangeDeribit)
			limiter := ratelimit.New(cfg.Stream.DeribitRatePerMin)
			clients[model.ExchangeDeribit] = deribit.New(httpClient, limiter, log)
		default:
			return nil, apperror.New(apperror.CodeUnimplementedVenue, apperror.WithContext(name))
		}
	}

	currencies := make([]model.Currency, 0, len(cfg.Market.Currencies))
	for _, c := range cfg.Market.Currencies {
		currencies = append(currencies, model.ParseCurrency(c))
	}

	return aggregator.New(exchanges, currencies, clients, cfg.Market.BroadcastCapacity, log), nil
}
