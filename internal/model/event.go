package model

// OrderbookUpdateLevel is a single price-level mutation: an action plus the
// price and amount it applies to. Price and amount are carried as plain
// float64 here (the wire/normalized representation); the storage engine
// converts to its total-ordered decimal key on ingestion.
type OrderbookUpdateLevel struct {
	Action UpdateType
	Price  float64
	Amount float64
}

// OrderbookUpdate is a batch of level mutations for one instrument, as
// produced by a single venue message. Bids and asks are carried in the
// order the venue produced them; book ordering is reconstructed by the
// storage engine, not here.
type OrderbookUpdate struct {
	TimestampMs int64
	Bids        []OrderbookUpdateLevel
	Asks        []OrderbookUpdateLevel
}

// EventPayloadKind discriminates EventPayload's tagged union. Only
// OrderbookUpdate exists today; the type reserves room for future variants
// (trade, heartbeat-echoed, subscription-ack) without changing Event's
// shape.
type EventPayloadKind int

const (
	EventPayloadNone EventPayloadKind = iota
	EventPayloadOrderbookUpdate
)

// EventPayload is Event's tagged union body.
type EventPayload struct {
	Kind      EventPayloadKind
	Orderbook *OrderbookUpdate
}

// Event is the canonical unit published to the broadcast sink.
type Event struct {
	Exchange Exchange
	Symbol   string

	Currency     *Currency
	ContractType *ContractType
	Expiration   *int64
	Strike       *uint64

	Payload *EventPayload
}

// NewOrderbookEvent builds an Event carrying an order-book update,
// decorated with the (currency, contract_type, expiration, strike) the
// venue client resolved from its per-session symbol index.
func NewOrderbookEvent(exchange Exchange, symbol string, currency Currency, contractType ContractType, expiration *int64, strike *uint64, update OrderbookUpdate) Event {
	return Event{
		Exchange:     exchange,
		Symbol:       symbol,
		Currency:     &currency,
		ContractType: &contractType,
		Expiration:   expiration,
		Strike:       strike,
		Payload: &EventPayload{
			Kind:      EventPayloadOrderbookUpdate,
			Orderbook: &update,
		},
	}
}
