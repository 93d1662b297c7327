package delta

import (
	"context"
	"strconv"
	"time"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/circuitbreaker"
	"github.com/mdagg/mdagg/internal/httpclient"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/supervisor"

	deltanorm "github.com/mdagg/mdagg/business/normalize/delta"
)

const productsURL = "https://api.delta.exchange/v2/products"

// streamable is the venue-support filter applied before subscribing
// (spec.md §4.3): Delta streams Future/CallOption/PutOption/PerpetualFuture;
// Spot, combos, and Unimplemented have no storage shell and are dropped.
func streamable(ct model.ContractType) bool {
	switch ct {
	case model.ContractTypeFuture, model.ContractTypeCallOption, model.ContractTypePutOption, model.ContractTypePerpetualFuture:
		return true
	default:
		return false
	}
}

// Client is the Delta Exchange venue client.
type Client struct {
	http httpclient.Client
	log  logger.LoggerInterface
	cb   *circuitbreaker.CircuitBreaker[*httpclient.Response]
}

// New constructs a Delta client using the given instrumented HTTP client.
// Catalog requests run through a circuit breaker so a flapping products
// endpoint fails fast instead of stalling discovery.
func New(http httpclient.Client, log logger.LoggerInterface) *Client {
	return &Client{
		http: http,
		log:  log,
		cb:   circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("delta-catalog"), log),
	}
}

// Discover fetches and normalizes the full product catalog (spec.md §6).
func (c *Client) Discover(ctx context.Context) ([]model.Instrument, error) {
	var wrapper deltanorm.ProductWrapper
	resp, err := c.cb.Execute(ctx, func() (*httpclient.Response, error) {
		return c.http.NewRequest().SetResult(&wrapper).Get(ctx, productsURL)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeCatalogFetchFailed, "delta: GET /v2/products")
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeCatalogFetchFailed, apperror.WithStatusCode(resp.StatusCode))
	}
	if !wrapper.Success {
		return nil, apperror.New(apperror.CodeCatalogFetchFailed, apperror.WithContext("delta: success=false"))
	}

	instruments := make([]model.Instrument, 0, len(wrapper.Result))
	for _, p := range wrapper.Result {
		inst, err := deltanorm.Normalize(p)
		if err != nil {
			if c.log != nil {
				c.log.Warn(ctx, "dropping unnormalizable delta product", "symbol", p.Symbol, "error", err)
			}
			continue
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

// Consume spawns one Stream Supervisor per 20-symbol chunk of instruments
// (spec.md §4.3). Each chunk reconnects independently; all chunks publish
// to the same sink. Returns once every supervisor goroutine has been
// spawned.
func (c *Client) Consume(ctx context.Context, sink func(model.Event), instruments []model.Instrument) error {
	filtered := make([]model.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.ContractType != model.ContractTypeUnimplemented && streamable(inst.ContractType) {
			filtered = append(filtered, inst)
		}
	}

	for i, group := range chunk(filtered) {
		sess := newSession(group)
		cfg := supervisor.Config{
			URL:              streamURL,
			Name:             chunkName(i),
			InitialBackoff:   100 * time.Millisecond,
			HeartbeatTimeout: 35 * time.Second,
		}
		sup, err := supervisor.New(cfg, sess, sink, c.log)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeStreamConnectionFailed, "delta: construct supervisor")
		}
		go func() {
			if runErr := sup.Run(ctx); runErr != nil && ctx.Err() == nil && c.log != nil {
				c.log.Error(ctx, "delta supervisor exited", "error", runErr)
			}
		}()
	}
	return nil
}

func chunkName(i int) string {
	return "delta/chunk-" + strconv.Itoa(i)
}
