package aggregator

import (
	"context"
	"testing"

	"github.com/mdagg/mdagg/business/venue/venue"
	"github.com/mdagg/mdagg/internal/model"
)

type fakeClient struct {
	instruments []model.Instrument
	consumed    []model.Instrument
}

func (f *fakeClient) Discover(ctx context.Context) ([]model.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeClient) Consume(ctx context.Context, sink func(model.Event), instruments []model.Instrument) error {
	f.consumed = instruments
	return nil
}

func btc(ex model.Exchange, symbol string, expiration int64) model.Instrument {
	return model.Instrument{
		Symbol: symbol, Base: model.CurrencyBTC, Exchange: ex,
		ContractType: model.ContractTypeFuture, ExpirationDateMs: model.Int64Ptr(expiration),
	}
}

// TestCommonInstrumentsRequiresPresenceOnEveryExchange mirrors spec.md
// §4.5: a fingerprint group only survives if its size equals the exchange
// count.
func TestCommonInstrumentsRequiresPresenceOnEveryExchange(t *testing.T) {
	delta := &fakeClient{instruments: []model.Instrument{btc(model.ExchangeDelta, "BTC-FUT-1", 1000), btc(model.ExchangeDelta, "ONLY-ON-DELTA", 2000)}}
	deribit := &fakeClient{instruments: []model.Instrument{btc(model.ExchangeDeribit, "BTC-FUT-1-D", 1000)}}

	a := New(
		[]model.Exchange{model.ExchangeDelta, model.ExchangeDeribit},
		[]model.Currency{model.CurrencyBTC},
		map[model.Exchange]venue.Client{model.ExchangeDelta: delta, model.ExchangeDeribit: deribit},
		16,
		nil,
	)

	common, err := a.CommonInstruments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(common) != 2 {
		t.Fatalf("expected the 2 instruments sharing fingerprint (expiration=1000), got %d: %+v", len(common), common)
	}
	for _, inst := range common {
		if inst.Symbol == "ONLY-ON-DELTA" {
			t.Fatalf("expected delta-only instrument to be excluded from common set")
		}
	}
}

// TestCommonInstrumentsRejectsGroupSkewedToOneExchange mirrors spec.md
// §4.5 invariant 4: a fingerprint group whose size equals the exchange
// count but that bundles two same-exchange listings (instead of one per
// exchange) must not be treated as common.
func TestCommonInstrumentsRejectsGroupSkewedToOneExchange(t *testing.T) {
	delta := &fakeClient{instruments: []model.Instrument{
		btc(model.ExchangeDelta, "BTC-FUT-1-A", 1000),
		btc(model.ExchangeDelta, "BTC-FUT-1-B", 1000),
	}}
	deribit := &fakeClient{instruments: []model.Instrument{}}

	a := New(
		[]model.Exchange{model.ExchangeDelta, model.ExchangeDeribit},
		[]model.Currency{model.CurrencyBTC},
		map[model.Exchange]venue.Client{model.ExchangeDelta: delta, model.ExchangeDeribit: deribit},
		16,
		nil,
	)

	common, err := a.CommonInstruments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(common) != 0 {
		t.Fatalf("expected no common instruments (group has 2 from delta, 0 from deribit), got %+v", common)
	}
}

func TestAllInstrumentsRawFiltersByCurrency(t *testing.T) {
	delta := &fakeClient{instruments: []model.Instrument{
		{Symbol: "b", Base: model.CurrencyBTC, Exchange: model.ExchangeDelta},
		{Symbol: "e", Base: model.CurrencyETH, Exchange: model.ExchangeDelta},
	}}
	a := New([]model.Exchange{model.ExchangeDelta}, []model.Currency{model.CurrencyBTC}, map[model.Exchange]venue.Client{model.ExchangeDelta: delta}, 16, nil)

	raw, err := a.AllInstrumentsRaw(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw[model.ExchangeDelta]) != 1 || raw[model.ExchangeDelta][0].Symbol != "b" {
		t.Fatalf("expected only BTC instrument retained, got %+v", raw[model.ExchangeDelta])
	}
}

func TestConsumeRoutesInstrumentsToOwningClient(t *testing.T) {
	delta := &fakeClient{}
	deribit := &fakeClient{}
	a := New(
		[]model.Exchange{model.ExchangeDelta, model.ExchangeDeribit},
		[]model.Currency{model.CurrencyBTC},
		map[model.Exchange]venue.Client{model.ExchangeDelta: delta, model.ExchangeDeribit: deribit},
		16,
		nil,
	)

	instruments := []model.Instrument{
		{Symbol: "d", Exchange: model.ExchangeDelta},
		{Symbol: "r", Exchange: model.ExchangeDeribit},
	}
	sub, err := a.Consume(context.Background(), instruments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub == nil {
		t.Fatalf("expected a subscriber handle")
	}
	if len(delta.consumed) != 1 || delta.consumed[0].Symbol != "d" {
		t.Fatalf("expected delta client to receive only its own instrument, got %+v", delta.consumed)
	}
	if len(deribit.consumed) != 1 || deribit.consumed[0].Symbol != "r" {
		t.Fatalf("expected deribit client to receive only its own instrument, got %+v", deribit.consumed)
	}
}
