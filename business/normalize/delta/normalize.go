package delta

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/model"
)

// contractTypes maps Delta's wire contract_type strings to the canonical
// enumeration, per spec.md §4.2's table.
var contractTypes = map[string]model.ContractType{
	"futures":           model.ContractTypeFuture,
	"perpetual_futures":  model.ContractTypePerpetualFuture,
	"call_options":       model.ContractTypeCallOption,
	"put_options":        model.ContractTypePutOption,
	"move_options":       model.ContractTypeMoveOption,
	"spot":               model.ContractTypeSpot,
}

// Normalize converts one Delta product record into a canonical Instrument.
func Normalize(p Product) (model.Instrument, error) {
	contractType, ok := contractTypes[p.ContractType]
	if !ok {
		contractType = model.ContractTypeUnimplemented
	}

	inst := model.Instrument{
		Symbol:       p.Symbol,
		Base:         model.ParseCurrency(p.UnderlyingAsset.Symbol),
		Quote:        model.ParseCurrency(p.QuotingAsset.Symbol),
		Exchange:     model.ExchangeDelta,
		ContractType: contractType,
	}

	if p.SettlementTime != nil {
		t, err := time.Parse(time.RFC3339, *p.SettlementTime)
		if err != nil {
			return model.Instrument{}, apperror.Wrap(err, apperror.CodeNormalizationFailed,
				fmt.Sprintf("delta: invalid settlement_time %q for symbol %s", *p.SettlementTime, p.Symbol))
		}
		datetimeMs := t.UTC().UnixMilli()
		inst.ExpirationDatetimeMs = model.Int64Ptr(datetimeMs)
		inst.ExpirationDateMs = model.Int64Ptr(model.TruncateToUTCDate(datetimeMs))
	}

	if p.StrikePrice != nil {
		strike, err := strconv.ParseUint(*p.StrikePrice, 10, 64)
		if err != nil {
			return model.Instrument{}, apperror.Wrap(err, apperror.CodeNormalizationFailed,
				fmt.Sprintf("delta: invalid strike_price %q for symbol %s", *p.StrikePrice, p.Symbol))
		}
		inst.Strike = model.Uint64Ptr(strike)
	}

	return inst, nil
}

// NormalizeOrderbook converts a Delta l2_orderbook snapshot into a canonical
// OrderbookUpdate. Delta streams snapshots only, so every level is tagged
// New — the storage layer treats New as overwrite-or-insert, which is
// exactly snapshot semantics (§4.6's documented current design; it does not
// clear stale levels absent from a fresh snapshot, per SPEC_FULL.md §D.1).
func NormalizeOrderbook(ob Orderbook) (model.OrderbookUpdate, error) {
	bids, err := normalizeLevels(ob.Buy)
	if err != nil {
		return model.OrderbookUpdate{}, err
	}
	asks, err := normalizeLevels(ob.Sell)
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
		price, err := strconv.ParseFloat(lvl.LimitPrice, 64)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeMalformedFrame,
				fmt.Sprintf("delta: invalid limit_price %q", lvl.LimitPrice))
		}
		out = append(out, model.OrderbookUpdateLevel{
			Action: model.UpdateNew,
			Price:  price,
			Amount: float64(lvl.Size),
		})
	}
	return out, nil
}
