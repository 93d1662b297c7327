// Package aggregator implements the top-level orchestrator (spec.md §4.5):
// it owns one client per selected exchange, the shared broadcast sink, and
// the fingerprint-based common-instrument computation.
package aggregator

import (
	"context"
	"sort"

	"github.com/mdagg/mdagg/business/venue/venue"
	"github.com/mdagg/mdagg/internal/broadcast"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/model"
)

// Aggregator orchestrates venue clients against a shared broadcast sink.
type Aggregator struct {
	exchanges  []model.Exchange
	currencies map[model.Currency]struct{}
	clients    map[model.Exchange]venue.Client
	sink       *broadcast.Sink
	log        logger.LoggerInterface
}

// New constructs an Aggregator. clients must contain exactly one entry per
// exchange in exchanges. sinkCapacity is the broadcast channel's fixed
// bounded capacity (250,000 is the reference value, spec.md §4.5).
func New(exchanges []model.Exchange, currencies []model.Currency, clients map[model.Exchange]venue.Client, sinkCapacity int, log logger.LoggerInterface) *Aggregator {
	currencySet := make(map[model.Currency]struct{}, len(currencies))
	for _, c := range currencies {
		currencySet[c] = struct{}{}
	}
	return &Aggregator{
		exchanges:  exchanges,
		currencies: currencySet,
		clients:    clients,
		sink:       broadcast.NewSink(sinkCapacity),
		log:        log,
	}
}

// Sink exposes the broadcast sink so callers can attach OnDrop hooks before
// streaming starts.
func (a *Aggregator) Sink() *broadcast.Sink { return a.sink }

// AllInstrumentsRaw calls every client's Discover, filters by the selected
// currency set, and returns one slice per exchange (spec.md §4.5).
func (a *Aggregator) AllInstrumentsRaw(ctx context.Context) (map[model.Exchange][]model.Instrument, error) {
	out := make(map[model.Exchange][]model.Instrument, len(a.exchanges))
	for _, ex := range a.exchanges {
		client, ok := a.clients[ex]
		if !ok {
			continue
		}
		instruments, err := client.Discover(ctx)
		if err != nil {
			return nil, err
		}
		filtered := make([]model.Instrument, 0, len(instruments))
		for _, inst := range instruments {
			if _, keep := a.currencies[inst.Base]; keep {
				filtered = append(filtered, inst)
			}
		}
		out[ex] = filtered
	}
	return out, nil
}

// AllInstruments flattens AllInstrumentsRaw's map into one sequence.
func (a *Aggregator) AllInstruments(ctx context.Context) ([]model.Instrument, error) {
	raw, err := a.AllInstrumentsRaw(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Instrument
	for _, ex := range a.exchanges {
		out = append(out, raw[ex]...)
	}
	return out, nil
}

// CommonInstruments groups all instruments by fingerprint and retains only
// groups that have exactly one instrument from every selected exchange
// (spec.md §4.5, invariant 4): a bare size match isn't enough, since two
// same-exchange listings sharing a fingerprint would pad a group to size N
// without the instrument actually being present on every exchange.
func (a *Aggregator) CommonInstruments(ctx context.Context) ([]model.Instrument, error) {
	instruments, err := a.AllInstruments(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]model.Instrument)
	var order []string
	for _, inst := range instruments {
		fp := inst.Fingerprint()
		if _, seen := groups[fp]; !seen {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], inst)
	}

	n := len(a.exchanges)
	var out []model.Instrument
	sort.Strings(order)
	for _, fp := range order {
		group := groups[fp]
		if len(group) != n {
			continue
		}
		byExchange := make(map[model.Exchange]int, n)
		for _, inst := range group {
			byExchange[inst.Exchange]++
		}
		if len(byExchange) != n {
			continue // skewed toward one exchange, not present on every exchange
		}
		out = append(out, group...)
	}
	return out, nil
}

// Consume calls every client's Consume(sink, instruments) for the
// instruments belonging to that client's exchange, then returns a new
// subscriber handle on the shared sink (spec.md §4.5).
func (a *Aggregator) Consume(ctx context.Context, instruments []model.Instrument) (*broadcast.Subscriber, error) {
	byExchange := make(map[model.Exchange][]model.Instrument)
	for _, inst := range instruments {
		byExchange[inst.Exchange] = append(byExchange[inst.Exchange], inst)
	}

	for ex, client := range a.clients {
		subset := byExchange[ex]
		if len(subset) == 0 {
			if a.log != nil {
				a.log.Debug(ctx, "no instruments selected for exchange, skipping consume", "exchange", ex)
			}
			continue
		}
		if err := client.Consume(ctx, a.sink.Publish, subset); err != nil {
			return nil, err
		}
	}
	return a.sink.Subscribe(), nil
}
