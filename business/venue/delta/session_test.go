package delta

import (
	"encoding/json"
	"testing"

	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/supervisor"
)

func TestChunkSplitsAtTwentySymbols(t *testing.T) {
	instruments := make([]model.Instrument, 41)
	for i := range instruments {
		instruments[i] = model.Instrument{Symbol: "s"}
	}
	chunks := chunk(instruments)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 41 instruments, got %d", len(chunks))
	}
	if len(chunks[0]) != 20 || len(chunks[1]) != 20 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestSubscribeFrameListsAllSessionSymbols(t *testing.T) {
	s := newSession([]model.Instrument{{Symbol: "BTCUSDT"}, {Symbol: "ETHUSDT"}})
	frames, err := s.SubscribeFrame()
	if err != nil || len(frames) != 1 {
		t.Fatalf("unexpected frames/err: %v %v", frames, err)
	}
	var env subscribeEnvelope
	if err := json.Unmarshal(frames[0], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != "subscribe" || env.Payload.Channels[0].Name != "l2_orderbook" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(env.Payload.Channels[0].Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(env.Payload.Channels[0].Symbols))
	}
}

func TestHandleFrameDecoratesBookEventFromIndex(t *testing.T) {
	inst := model.Instrument{Symbol: "BTCUSDT", Base: model.CurrencyBTC, Exchange: model.ExchangeDelta, ContractType: model.ContractTypePerpetualFuture}
	s := newSession([]model.Instrument{inst})

	raw := []byte(`{"type":"l2_orderbook","symbol":"BTCUSDT","buy":[{"limit_price":"100.5","size":2,"depth":"1"}],"sell":[],"timestamp":1000}`)
	outcome, err := s.HandleFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != supervisor.FrameBook || outcome.Event == nil {
		t.Fatalf("expected book frame, got %+v", outcome)
	}
	if *outcome.Event.Currency != model.CurrencyBTC {
		t.Fatalf("expected decorated currency BTC, got %v", *outcome.Event.Currency)
	}
	if len(outcome.Event.Payload.Orderbook.Bids) != 1 {
		t.Fatalf("expected 1 bid level, got %d", len(outcome.Event.Payload.Orderbook.Bids))
	}
}

func TestHandleFrameHeartbeatAndUnknownDiscriminant(t *testing.T) {
	s := newSession(nil)

	outcome, err := s.HandleFrame([]byte(`{"type":"heartbeat"}`))
	if err != nil || outcome.Kind != supervisor.FrameHeartbeat {
		t.Fatalf("expected heartbeat frame, got %+v %v", outcome, err)
	}

	if _, err := s.HandleFrame([]byte(`{"type":"something_else"}`)); err == nil {
		t.Fatalf("expected error for unknown discriminant")
	}
}
