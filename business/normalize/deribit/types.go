// Package deribit normalizes Deribit's catalog and order-book wire records
// into the canonical model. Grounded on
// original_source/data-streamer/src/exchanges/deribit/model.rs — that draft
// leaves the OrderbookUpdateLevel/Instrument conversions as todo!() stubs,
// so the mapping rules below come from spec.md §4.2, which is the
// authoritative, completed target.
package deribit

// CurrenciesWrapper is the get_currencies response shape.
type CurrenciesWrapper struct {
	Result []CurrencyRecord `json:"result"`
}

// CurrencyRecord is one entry of get_currencies.
type CurrencyRecord struct {
	Currency string `json:"currency"`
}

// InstrumentsWrapper is the get_instruments response shape.
type InstrumentsWrapper struct {
	Result []Instrument `json:"result"`
}

// Instrument is one venue instrument record.
type Instrument struct {
	BaseCurrency        string   `json:"base_currency"`
	CounterCurrency     string   `json:"counter_currency"`
	CreationTimestamp   uint64   `json:"creation_timestamp"`
	ExpirationTimestamp uint64   `json:"expiration_timestamp"`
	FutureType          *string  `json:"future_type"`
	InstrumentID        uint64   `json:"instrument_id"`
	InstrumentName      string   `json:"instrument_name"`
	IsActive            bool     `json:"is_active"`
	Kind                string   `json:"kind"`
	OptionType          *string  `json:"option_type"`
	PriceIndex          string   `json:"price_index"`
	QuoteCurrency       string   `json:"quote_currency"`
	SettlementPeriod    string   `json:"settlement_period"`
	Strike              *float64 `json:"strike"`
}

// OrderbookAction is the per-level action Deribit sends.
type OrderbookAction string

const (
	ActionNew    OrderbookAction = "new"
	ActionChange OrderbookAction = "change"
	ActionDelete OrderbookAction = "delete"
)

// OrderbookLevel is the wire tuple [action, price, amount].
type OrderbookLevel struct {
	Action OrderbookAction
	Price  float64
	Amount float64
}

// EnvelopeKind distinguishes a Snapshot vs incremental Change message at the
// envelope level. Per spec.md §4.2/§9(3) and SPEC_FULL.md §D.3 this is
// carried through for completeness but is not used to clear the book side —
// per-level actions are applied uniformly regardless of envelope kind.
type EnvelopeKind string

const (
	EnvelopeChange   EnvelopeKind = "change"
	EnvelopeSnapshot EnvelopeKind = "snapshot"
)

// Orderbook is the params.data payload of a book.* subscription message.
type Orderbook struct {
	Asks           []OrderbookLevel `json:"asks"`
	Bids           []OrderbookLevel `json:"bids"`
	ChangeID       int64            `json:"change_id"`
	InstrumentName string           `json:"instrument_name"`
	PrevChangeID   *int64           `json:"prev_change_id"`
	Timestamp      uint64           `json:"timestamp"`
	Kind           EnvelopeKind     `json:"type"`
}

// OrderbookDataWrapper is the full subscription notification envelope:
// {method: "subscription", params: {channel, data}}.
type OrderbookDataWrapper struct {
	Method string                     `json:"method"`
	Params OrderbookDataWrapperParams `json:"params"`
}

// OrderbookDataWrapperParams is the params object of a subscription
// notification.
type OrderbookDataWrapperParams struct {
	Channel string    `json:"channel"`
	Data    Orderbook `json:"data"`
}

// HeartbeatNotification is the {method:"heartbeat", params:{type}} message.
type HeartbeatNotification struct {
	Method string `json:"method"`
	Params struct {
		Type string `json:"type"`
	} `json:"params"`
}
