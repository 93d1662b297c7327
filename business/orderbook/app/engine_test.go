package app

import (
	"testing"

	"github.com/mdagg/mdagg/business/orderbook/domain"
	"github.com/mdagg/mdagg/internal/model"
)

func perpEvent(exchange model.Exchange, currency model.Currency, levels ...model.OrderbookUpdateLevel) model.Event {
	contractType := model.ContractTypePerpetualFuture
	var bids, asks []model.OrderbookUpdateLevel
	for _, l := range levels {
		if l.Action == model.UpdateDelete || true {
			asks = append(asks, l)
		}
	}
	return model.Event{
		Exchange:     exchange,
		Symbol:       "BTC-PERPETUAL",
		Currency:     &currency,
		ContractType: &contractType,
		Payload: &model.EventPayload{
			Kind:      model.EventPayloadOrderbookUpdate,
			Orderbook: &model.OrderbookUpdate{Asks: asks, Bids: bids},
		},
	}
}

// TestLevelLifecycleOnPerpetual mirrors spec.md §8 scenario 4.
func TestLevelLifecycleOnPerpetual(t *testing.T) {
	e := NewEngine(nil)
	inst := model.Instrument{Exchange: model.ExchangeDeribit, Base: model.CurrencyBTC, ContractType: model.ContractTypePerpetualFuture, Symbol: "BTC-PERPETUAL"}
	e.BuildShell([]model.Instrument{inst})

	e.Process(perpEvent(model.ExchangeDeribit, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateNew, Price: 100.0, Amount: 1.0}))
	e.Process(perpEvent(model.ExchangeDeribit, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateChange, Price: 100.0, Amount: 2.5}))
	e.Process(perpEvent(model.ExchangeDeribit, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateNew, Price: 101.0, Amount: 4.0}))
	e.Process(perpEvent(model.ExchangeDeribit, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateDelete, Price: 100.0}))

	key := domain.Key{Exchange: model.ExchangeDeribit, Currency: model.CurrencyBTC}
	slots, ok := e.Storage().Lookup(key)
	if !ok {
		t.Fatalf("expected shell for (Deribit, BTC)")
	}
	book := slots[2].Perpetual
	levels := book.Asks.Levels()
	if len(levels) != 1 {
		t.Fatalf("expected exactly one remaining ask level, got %d: %+v", len(levels), levels)
	}
	if levels[0].Price.String() != "101" {
		t.Fatalf("expected remaining level at 101, got %s", levels[0].Price.String())
	}
	if levels[0].Amount.String() != "4" {
		t.Fatalf("expected amount 4, got %s", levels[0].Amount.String())
	}
}

func TestProcessIsTotalOverUnknownCell(t *testing.T) {
	e := NewEngine(nil)
	// No shell built at all — process must not panic and must not mutate.
	e.Process(perpEvent(model.ExchangeDelta, model.CurrencyETH, model.OrderbookUpdateLevel{Action: model.UpdateNew, Price: 1, Amount: 1}))
}

func TestNewThenChangeThenDeleteLeavesNoEntry(t *testing.T) {
	e := NewEngine(nil)
	inst := model.Instrument{Exchange: model.ExchangeDelta, Base: model.CurrencyBTC, ContractType: model.ContractTypePerpetualFuture, Symbol: "p"}
	e.BuildShell([]model.Instrument{inst})

	e.Process(perpEvent(model.ExchangeDelta, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateNew, Price: 5, Amount: 1}))
	e.Process(perpEvent(model.ExchangeDelta, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateChange, Price: 5, Amount: 2}))
	e.Process(perpEvent(model.ExchangeDelta, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateDelete, Price: 5}))

	slots, _ := e.Storage().Lookup(domain.Key{Exchange: model.ExchangeDelta, Currency: model.CurrencyBTC})
	if slots[2].Perpetual.Asks.Len() != 0 {
		t.Fatalf("expected no entry at price 5 after delete")
	}
}

func TestRepeatedIdenticalNewIsIdempotent(t *testing.T) {
	e := NewEngine(nil)
	inst := model.Instrument{Exchange: model.ExchangeDelta, Base: model.CurrencyBTC, ContractType: model.ContractTypePerpetualFuture, Symbol: "p"}
	e.BuildShell([]model.Instrument{inst})

	for i := 0; i < 5; i++ {
		e.Process(perpEvent(model.ExchangeDelta, model.CurrencyBTC, model.OrderbookUpdateLevel{Action: model.UpdateNew, Price: 7, Amount: 3}))
	}
	slots, _ := e.Storage().Lookup(domain.Key{Exchange: model.ExchangeDelta, Currency: model.CurrencyBTC})
	levels := slots[2].Perpetual.Asks.Levels()
	if len(levels) != 1 || levels[0].Amount.String() != "3" {
		t.Fatalf("expected single idempotent level, got %+v", levels)
	}
}

func TestMissingExpirationIsSilentNoOp(t *testing.T) {
	e := NewEngine(nil)
	future := model.ContractTypeFuture
	currency := model.CurrencyBTC
	ev := model.Event{
		Exchange:     model.ExchangeDelta,
		Currency:     &currency,
		ContractType: &future,
		Expiration:   nil, // missing
		Payload: &model.EventPayload{
			Kind:      model.EventPayloadOrderbookUpdate,
			Orderbook: &model.OrderbookUpdate{Asks: []model.OrderbookUpdateLevel{{Action: model.UpdateNew, Price: 1, Amount: 1}}},
		},
	}
	inst := model.Instrument{Exchange: model.ExchangeDelta, Base: model.CurrencyBTC, ContractType: model.ContractTypeFuture, ExpirationDateMs: model.Int64Ptr(1000)}
	e.BuildShell([]model.Instrument{inst})
	e.Process(ev) // must not panic
}
