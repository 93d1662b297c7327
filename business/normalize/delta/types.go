// Package delta normalizes Delta Exchange's catalog and order-book wire
// records into the canonical model. It is grounded on
// original_source/data-streamer/src/exchanges/delta/model.rs, reimplemented
// against the canonical types in internal/model rather than translated
// line-for-line.
package delta

// ProductWrapper is the top-level catalog response shape:
// GET https://api.delta.exchange/v2/products.
type ProductWrapper struct {
	Success bool      `json:"success"`
	Result  []Product `json:"result"`
}

// Product is one venue product record.
type Product struct {
	ID              uint64          `json:"id"`
	Symbol          string          `json:"symbol"`
	StrikePrice     *string         `json:"strike_price"`
	ContractType    string          `json:"contract_type"`
	SettlementTime  *string         `json:"settlement_time"`
	LaunchTime      *string         `json:"launch_time"`
	UnderlyingAsset ProductAsset    `json:"underlying_asset"`
	QuotingAsset    ProductAsset    `json:"quoting_asset"`
}

// ProductAsset is the {symbol} shape shared by underlying_asset and
// quoting_asset.
type ProductAsset struct {
	Symbol string `json:"symbol"`
}

// Orderbook is an l2_orderbook stream message. Delta only emits full
// snapshots; every level is tagged New by the normalizer.
type Orderbook struct {
	Buy       []OrderbookLevel `json:"buy"`
	Sell      []OrderbookLevel `json:"sell"`
	Symbol    string           `json:"symbol"`
	Kind      string           `json:"type"`
	Timestamp uint64           `json:"timestamp"`
}

// OrderbookLevel is one price level. Size is a wire integer; depth is
// carried by the venue but has no canonical-model home (confirmed dropped
// per SPEC_FULL.md §C).
type OrderbookLevel struct {
	Depth      string `json:"depth"`
	LimitPrice string `json:"limit_price"`
	Size       uint64 `json:"size"`
}

// Heartbeat is the heartbeat stream message.
type Heartbeat struct {
	TsOrigin  uint64 `json:"ts_origin"`
	TsPublish uint64 `json:"ts_publish"`
	Kind      string `json:"type"`
}
