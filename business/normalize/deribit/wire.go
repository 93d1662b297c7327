package deribit

import (
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes the wire tuple ["change", 100.5, 2.0] into an
// OrderbookLevel. Deribit sends level updates as positional arrays, not
// objects.
func (l *OrderbookLevel) UnmarshalJSON(data []byte) error {
	var raw [3]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deribit: decoding orderbook level tuple: %w", err)
	}

	action, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("deribit: orderbook level action is not a string: %v", raw[0])
	}
	price, ok := raw[1].(float64)
	if !ok {
		return fmt.Errorf("deribit: orderbook level price is not a number: %v", raw[1])
	}
	amount, ok := raw[2].(float64)
	if !ok {
		return fmt.Errorf("deribit: orderbook level amount is not a number: %v", raw[2])
	}

	l.Action = OrderbookAction(action)
	l.Price = price
	l.Amount = amount
	return nil
}

// MarshalJSON re-encodes an OrderbookLevel as the wire tuple shape, the
// inverse of UnmarshalJSON. Nothing in this repository calls it.
func (l OrderbookLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{string(l.Action), l.Price, l.Amount})
}
