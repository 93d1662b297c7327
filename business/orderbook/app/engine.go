// Package app implements the Order-Book Storage Engine: shell construction
// from the discovered instrument set, and Process, the incremental applier
// that mutates price ladders by New/Change/Delete semantics (spec.md §4.6).
//
// Storage is owned by a single consuming task and is never shared (§5), so
// Engine carries no internal locking — callers must not call Process
// concurrently from multiple goroutines.
package app

import (
	"context"

	"github.com/mdagg/mdagg/business/orderbook/domain"
	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/model"
)

// Engine owns the storage index and applies canonical events to it.
type Engine struct {
	storage *domain.Storage
	log     logger.LoggerInterface
}

// NewEngine returns an Engine with an empty storage index.
func NewEngine(log logger.LoggerInterface) *Engine {
	return &Engine{storage: domain.NewStorage(), log: log}
}

// Storage exposes the underlying index for read access (term-structure and
// strike-ladder traversal by downstream consumers).
func (e *Engine) Storage() *domain.Storage { return e.storage }

// BuildShell constructs the storage map from the full instrument list at
// start-up. Non-streamed contract types are skipped; instruments missing
// the expiration/strike fields their class requires are shelved at the slot
// level only (the canonical model's invariant — §3 — guarantees this does
// not happen for well-formed normalizer output, but BuildShell tolerates it
// rather than panicking).
func (e *Engine) BuildShell(instruments []model.Instrument) {
	for _, inst := range instruments {
		key := domain.Key{Exchange: inst.Exchange, Currency: inst.Base}
		slots := e.storage.Cell(key)

		switch inst.ContractType {
		case model.ContractTypeFuture:
			e.shelveFuture(slots, inst)
		case model.ContractTypeCallOption, model.ContractTypePutOption:
			e.shelveOption(slots, inst)
		case model.ContractTypePerpetualFuture:
			e.shelvePerpetual(slots, inst)
		default:
			// Spot, combo types, and Unimplemented are not streamed;
			// no storage slot exists for them.
		}
	}
}

func (e *Engine) shelveFuture(slots *domain.Slots, inst model.Instrument) {
	cto := slots[domain.SlotFuture]
	if cto == nil {
		cto = &domain.ContractTypeOrderbook{Kind: domain.KindFuture, Futures: make(map[int64]*domain.StorageOrderbook)}
		slots[domain.SlotFuture] = cto
	}
	if inst.ExpirationDateMs == nil {
		return
	}
	exp := *inst.ExpirationDateMs
	if _, ok := cto.Futures[exp]; !ok {
		cto.Futures[exp] = domain.NewStorageOrderbook(inst.Symbol)
	}
}

func (e *Engine) shelveOption(slots *domain.Slots, inst model.Instrument) {
	cto := slots[domain.SlotOption]
	if cto == nil {
		cto = &domain.ContractTypeOrderbook{Kind: domain.KindOption, Options: make(map[int64]map[uint64]*domain.StorageOptionOrderbook)}
		slots[domain.SlotOption] = cto
	}
	if inst.ExpirationDateMs == nil || inst.Strike == nil {
		return
	}
	exp, strike := *inst.ExpirationDateMs, *inst.Strike
	byStrike, ok := cto.Options[exp]
	if !ok {
		byStrike = make(map[uint64]*domain.StorageOptionOrderbook)
		cto.Options[exp] = byStrike
	}
	if _, ok := byStrike[strike]; !ok {
		byStrike[strike] = domain.NewStorageOptionOrderbook(inst.Symbol)
	}
}

func (e *Engine) shelvePerpetual(slots *domain.Slots, inst model.Instrument) {
	if slots[domain.SlotPerpetual] == nil {
		slots[domain.SlotPerpetual] = &domain.ContractTypeOrderbook{
			Kind:      domain.KindPerpetual,
			Perpetual: domain.NewStorageOrderbook(inst.Symbol),
		}
	}
}

// Process applies one canonical Event to the storage index. It is total
// over the event space: any event that does not resolve to a pre-allocated
// cell — missing currency/contract-type decoration, an unknown (exchange,
// currency), a missing expiration, or a missing strike — returns without
// mutation (spec.md §8 invariant 6).
func (e *Engine) Process(ev model.Event) {
	if ev.Currency == nil || ev.ContractType == nil || ev.Payload == nil || ev.Payload.Kind != model.EventPayloadOrderbookUpdate || ev.Payload.Orderbook == nil {
		return
	}

	key := domain.Key{Exchange: ev.Exchange, Currency: *ev.Currency}
	slots, ok := e.storage.Lookup(key)
	if !ok {
		e.selectionMiss(ev, "no shell for (exchange, currency)")
		return
	}

	update := ev.Payload.Orderbook

	switch *ev.ContractType {
	case model.ContractTypeFuture:
		book, ok := e.lookupFuture(slots, ev)
		if !ok {
			return
		}
		applyUpdate(book, update)
	case model.ContractTypeCallOption:
		book, ok := e.lookupOptionLeg(slots, ev, true)
		if !ok {
			return
		}
		applyUpdate(book, update)
	case model.ContractTypePutOption:
		book, ok := e.lookupOptionLeg(slots, ev, false)
		if !ok {
			return
		}
		applyUpdate(book, update)
	case model.ContractTypePerpetualFuture:
		cto := slots[domain.SlotPerpetual]
		if cto == nil || cto.Perpetual == nil {
			e.selectionMiss(ev, "no perpetual shell")
			return
		}
		applyUpdate(cto.Perpetual, update)
	default:
		// Other contract types are a documented no-op (spec.md §4.6).
	}
}

func (e *Engine) lookupFuture(slots *domain.Slots, ev model.Event) (*domain.StorageOrderbook, bool) {
	cto := slots[domain.SlotFuture]
	if cto == nil || ev.Expiration == nil {
		e.selectionMiss(ev, "no future shell or missing expiration")
		return nil, false
	}
	book, ok := cto.Futures[*ev.Expiration]
	if !ok {
		e.selectionMiss(ev, "expiration absent from future shell")
		return nil, false
	}
	return book, true
}

func (e *Engine) lookupOptionLeg(slots *domain.Slots, ev model.Event, call bool) (*domain.StorageOrderbook, bool) {
	cto := slots[domain.SlotOption]
	if cto == nil || ev.Expiration == nil || ev.Strike == nil {
		e.selectionMiss(ev, "no option shell or missing expiration/strike")
		return nil, false
	}
	byStrike, ok := cto.Options[*ev.Expiration]
	if !ok {
		e.selectionMiss(ev, "expiration absent from option shell")
		return nil, false
	}
	pair, ok := byStrike[*ev.Strike]
	if !ok {
		e.selectionMiss(ev, "strike absent from option shell")
		return nil, false
	}
	if call {
		return pair.Calls, true
	}
	return pair.Puts, true
}

func (e *Engine) selectionMiss(ev model.Event, reason string) {
	if e.log == nil {
		return
	}
	err := apperror.New(apperror.CodeStorageSelectionMiss, apperror.WithContext(reason))
	e.log.Debug(context.Background(), "storage selection miss, dropping event", "error", err, "exchange", ev.Exchange, "symbol", ev.Symbol)
}

// applyUpdate mutates book in place per the per-level action. A level whose
// price fails the total-order conversion (NaN/Inf) is rejected silently —
// it cannot be a valid ladder key.
func applyUpdate(book *domain.StorageOrderbook, update *model.OrderbookUpdate) {
	book.Timestamp = update.TimestampMs
	applySide(book.Bids, update.Bids)
	applySide(book.Asks, update.Asks)
}

func applySide(ladder *domain.PriceLadder, levels []model.OrderbookUpdateLevel) {
	for _, lvl := range levels {
		price, ok := domain.DecimalFromFloat(lvl.Price)
		if !ok {
			continue
		}
		switch lvl.Action {
		case model.UpdateNew, model.UpdateChange:
			amount, ok := domain.DecimalFromFloat(lvl.Amount)
			if !ok {
				continue
			}
			ladder.Set(price, amount)
		case model.UpdateDelete:
			ladder.Delete(price)
		}
	}
}
