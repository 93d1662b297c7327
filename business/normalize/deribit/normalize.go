package deribit

import (
	"fmt"
	"math"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/model"
)

// Normalize converts one Deribit instrument record into a canonical
// Instrument, applying the classification table from spec.md §4.2.
func Normalize(inst Instrument) model.Instrument {
	contractType := classify(inst)

	canonical := model.Instrument{
		Symbol:       inst.InstrumentName,
		Base:         model.ParseCurrency(inst.BaseCurrency),
		Quote:        model.ParseCurrency(inst.QuoteCurrency),
		Exchange:     model.ExchangeDeribit,
		ContractType: contractType,
	}

	if contractType == model.ContractTypeFuture || contractType == model.ContractTypeCallOption || contractType == model.ContractTypePutOption {
		datetimeMs := int64(inst.ExpirationTimestamp)
		canonical.ExpirationDatetimeMs = model.Int64Ptr(datetimeMs)
		canonical.ExpirationDateMs = model.Int64Ptr(model.TruncateToUTCDate(datetimeMs))
	}

	if inst.Strike != nil {
		canonical.Strike = model.Uint64Ptr(uint64(math.Floor(*inst.Strike)))
	}

	return canonical
}

// classify applies spec.md §4.2's Deribit classification rules:
//
//	kind=future ∧ settlement_period=perpetual → PerpetualFuture
//	kind=future ∧ otherwise                   → Future
//	kind=option ∧ option_type=call            → CallOption
//	kind=option ∧ option_type=put             → PutOption
//	kind ∈ {future_combo, option_combo} or unmatched → Unimplemented
func classify(inst Instrument) model.ContractType {
	switch inst.Kind {
	case "future":
		if inst.SettlementPeriod == "perpetual" {
			return model.ContractTypePerpetualFuture
		}
		return model.ContractTypeFuture
	case "option":
		if inst.OptionType == nil {
			return model.ContractTypeUnimplemented
		}
		switch *inst.OptionType {
		case "call":
			return model.ContractTypeCallOption
		case "put":
			return model.ContractTypePutOption
		default:
			return model.ContractTypeUnimplemented
		}
	default:
		return model.ContractTypeUnimplemented
	}
}

// NormalizeOrderbook converts a Deribit book.* payload into a canonical
// OrderbookUpdate. The envelope's Snapshot/Change kind is not inspected —
// per-level actions map 1:1 to the canonical action enum regardless of
// envelope kind (SPEC_FULL.md §D.3).
func NormalizeOrderbook(ob Orderbook) (model.OrderbookUpdate, error) {
	bids, err := normalizeLevels(ob.Bids)
	if err != nil {
		return model.OrderbookUpdate{}, err
	}
	asks, err := normalizeLevels(ob.Asks)
	if err != nil {
		return model.OrderbookUpdate{}, err
	}
	return model.OrderbookUpdate{
		TimestampMs: int64(ob.Timestamp),
		Bids:        bids,
		Asks:        asks,
	}, nil
}

func normalizeLevels(levels []OrderbookLevel) ([]model.OrderbookUpdateLevel, error) {
	out := make([]model.OrderbookUpdateLevel, 0, len(levels))
	for _, lvl := range levels {
		action, err := mapAction(lvl.Action)
		if err != nil {
			return nil, err
		}
		out = append(out, model.OrderbookUpdateLevel{Action: action, Price: lvl.Price, Amount: lvl.Amount})
	}
	return out, nil
}

func mapAction(a OrderbookAction) (model.UpdateType, error) {
	switch a {
	case ActionNew:
		return model.UpdateNew, nil
	case ActionChange:
		return model.UpdateChange, nil
	case ActionDelete:
		return model.UpdateDelete, nil
	default:
		return 0, apperror.New(apperror.CodeMalformedFrame,
			apperror.WithContext(fmt.Sprintf("deribit: unrecognized orderbook level action %q", a)))
	}
}
