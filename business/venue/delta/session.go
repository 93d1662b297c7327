// Package delta implements the Delta Exchange venue client: catalog
// discovery over HTTPS and l2_orderbook streaming via the Stream
// Supervisor (spec.md §4.3, §6).
package delta

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mdagg/mdagg/business/normalize/delta"
	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/supervisor"
)

const (
	streamURL  = "wss://socket.delta.exchange"
	maxSymbols = 20
)

// subscribeEnvelope is the outbound l2_orderbook subscribe frame.
type subscribeEnvelope struct {
	Type    string  `json:"type"`
	Payload payload `json:"payload"`
}

type payload struct {
	Channels []channel `json:"channels"`
}

type channel struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

type enableHeartbeat struct {
	Type string `json:"type"`
}

// discriminantEnvelope is the loose decode used to steer full decoding
// (spec.md §4.4 step 4).
type discriminantEnvelope struct {
	Type string `json:"type"`
}

// session implements supervisor.Session for one chunk (≤20 symbols) of
// Delta instruments. It carries the symbol → Instrument index needed to
// decorate inbound book frames, which name only the venue symbol.
type session struct {
	symbols []string
	index   map[string]model.Instrument
}

func newSession(instruments []model.Instrument) *session {
	s := &session{index: make(map[string]model.Instrument, len(instruments))}
	for _, inst := range instruments {
		s.symbols = append(s.symbols, inst.Symbol)
		s.index[inst.Symbol] = inst
	}
	return s
}

func (s *session) SubscribeFrame() ([][]byte, error) {
	frame := subscribeEnvelope{
		Type: "subscribe",
		Payload: payload{
			Channels: []channel{{Name: "l2_orderbook", Symbols: s.symbols}},
		},
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStreamSendFailed, "marshal delta subscribe frame")
	}
	return [][]byte{raw}, nil
}

func (s *session) HeartbeatEnableFrame() ([][]byte, error) {
	raw, err := json.Marshal(enableHeartbeat{Type: "enable_heartbeat"})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStreamSendFailed, "marshal delta enable_heartbeat frame")
	}
	return [][]byte{raw}, nil
}

func (s *session) HandleFrame(raw []byte) (supervisor.Outcome, error) {
	var disc discriminantEnvelope
	if err := json.Unmarshal(raw, &disc); err != nil {
		return supervisor.Outcome{}, apperror.Wrap(err, apperror.CodeMalformedFrame, "decode delta envelope")
	}

	switch disc.Type {
	case "l2_orderbook":
		return s.handleOrderbook(raw)
	case "heartbeat":
		return supervisor.Outcome{Kind: supervisor.FrameHeartbeat}, nil
	case "subscriptions":
		return supervisor.Outcome{Kind: supervisor.FrameSubscriptionAck}, nil
	default:
		return supervisor.Outcome{}, apperror.New(apperror.CodeUnknownDiscriminant, apperror.WithContext(disc.Type))
	}
}

func (s *session) handleOrderbook(raw []byte) (supervisor.Outcome, error) {
	var ob delta.Orderbook
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&ob); err != nil {
		return supervisor.Outcome{}, apperror.Wrap(err, apperror.CodeMalformedFrame, "decode delta l2_orderbook")
	}

	inst, ok := s.index[ob.Symbol]
	if !ok {
		return supervisor.Outcome{}, apperror.New(apperror.CodeMalformedFrame, apperror.WithContext(fmt.Sprintf("unknown symbol %q", ob.Symbol)))
	}

	update, err := delta.NormalizeOrderbook(ob)
	if err != nil {
		return supervisor.Outcome{}, err
	}

	currency := inst.Base
	contractType := inst.ContractType
	ev := model.Event{
		Exchange:     model.ExchangeDelta,
		Symbol:       inst.Symbol,
		Currency:     &currency,
		ContractType: &contractType,
		Expiration:   inst.ExpirationDateMs,
		Strike:       inst.Strike,
		Payload: &model.EventPayload{
			Kind:      model.EventPayloadOrderbookUpdate,
			Orderbook: &update,
		},
	}
	return supervisor.Outcome{Kind: supervisor.FrameBook, Event: &ev}, nil
}

// chunk splits instruments into groups of at most maxSymbols, matching
// Delta's per-subscribe-payload symbol ceiling (spec.md §4.3).
func chunk(instruments []model.Instrument) [][]model.Instrument {
	var chunks [][]model.Instrument
	for len(instruments) > 0 {
		n := maxSymbols
		if n > len(instruments) {
			n = len(instruments)
		}
		chunks = append(chunks, instruments[:n])
		instruments = instruments[n:]
	}
	return chunks
}
