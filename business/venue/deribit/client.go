package deribit

import (
	"context"
	"fmt"
	"time"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/circuitbreaker"
	"github.com/mdagg/mdagg/internal/httpclient"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/ratelimit"
	"github.com/mdagg/mdagg/internal/supervisor"

	deribitnorm "github.com/mdagg/mdagg/business/normalize/deribit"
)

const (
	currenciesURL = "https://www.deribit.com/api/v2/public/get_currencies"
	instrumentsURL = "https://www.deribit.com/api/v2/public/get_instruments"
)

// streamable is the venue-support filter applied before subscribing
// (spec.md §4.3): Deribit drops anything not in {Future, PerpetualFuture,
// CallOption, PutOption, Spot}. Spot has no storage shell (engine.BuildShell
// skips it) so it is filtered again at Consume time, but discover() still
// reports it per all_instruments_raw()'s contract.
func streamable(ct model.ContractType) bool {
	switch ct {
	case model.ContractTypeFuture, model.ContractTypePerpetualFuture, model.ContractTypeCallOption, model.ContractTypePutOption, model.ContractTypeSpot:
		return true
	default:
		return false
	}
}

// Client is the Deribit venue client.
type Client struct {
	http    httpclient.Client
	limiter *ratelimit.Limiter
	log     logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[*httpclient.Response]
}

// New constructs a Deribit client. The limiter paces the per-currency
// get_instruments fan-out (SPEC_FULL.md §B); the breaker protects the whole
// discovery pass against a flapping catalog API.
func New(http httpclient.Client, limiter *ratelimit.Limiter, log logger.LoggerInterface) *Client {
	return &Client{
		http:    http,
		limiter: limiter,
		log:     log,
		cb:      circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("deribit-catalog"), log),
	}
}

// Discover lists currencies, then lists active instruments per currency,
// flattens, and normalizes (spec.md §4.3, §6).
func (c *Client) Discover(ctx context.Context) ([]model.Instrument, error) {
	var currencies deribitnorm.CurrenciesWrapper
	resp, err := c.cb.Execute(ctx, func() (*httpclient.Response, error) {
		return c.http.NewRequest().SetResult(&currencies).Get(ctx, currenciesURL)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeCurrencyListFailed, "deribit: get_currencies")
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeCurrencyListFailed, apperror.WithStatusCode(resp.StatusCode))
	}

	var instruments []model.Instrument
	for _, rec := range currencies.Result {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return nil, apperror.Wrap(werr, apperror.CodeInstrumentListError, "deribit: rate limiter wait")
			}
		}

		var wrapper deribitnorm.InstrumentsWrapper
		url := fmt.Sprintf("%s?currency=%s&expired=false", instrumentsURL, rec.Currency)
		resp, err := c.cb.Execute(ctx, func() (*httpclient.Response, error) {
			return c.http.NewRequest().SetResult(&wrapper).Get(ctx, url)
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInstrumentListError, fmt.Sprintf("deribit: get_instruments currency=%s", rec.Currency))
		}
		if resp.IsError() {
			return nil, apperror.New(apperror.CodeInstrumentListError, apperror.WithStatusCode(resp.StatusCode), apperror.WithContext(rec.Currency))
		}

		for _, inst := range wrapper.Result {
			instruments = append(instruments, deribitnorm.Normalize(inst))
		}
	}
	return instruments, nil
}

// Consume spawns the single Stream Supervisor that carries every channel
// for this client (spec.md §4.3).
func (c *Client) Consume(ctx context.Context, sink func(model.Event), instruments []model.Instrument) error {
	filtered := make([]model.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.ContractType != model.ContractTypeUnimplemented && streamable(inst.ContractType) && inst.ContractType != model.ContractTypeSpot {
			filtered = append(filtered, inst)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	sess := newSession(filtered)
	cfg := supervisor.Config{
		URL:              streamURL,
		Name:             "deribit",
		InitialBackoff:   100 * time.Millisecond,
		HeartbeatTimeout: 35 * time.Second,
	}
	sup, err := supervisor.New(cfg, sess, sink, c.log)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStreamConnectionFailed, "deribit: construct supervisor")
	}
	go func() {
		if runErr := sup.Run(ctx); runErr != nil && ctx.Err() == nil && c.log != nil {
			c.log.Error(ctx, "deribit supervisor exited", "error", runErr)
		}
	}()
	return nil
}
