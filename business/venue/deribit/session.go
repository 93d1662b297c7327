// Package deribit implements the Deribit venue client: catalog discovery
// (currencies then per-currency instruments) and JSON-RPC streaming via the
// Stream Supervisor (spec.md §4.3, §6).
package deribit

import (
	"encoding/json"
	"fmt"

	"github.com/mdagg/mdagg/business/normalize/deribit"
	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/model"
	"github.com/mdagg/mdagg/internal/supervisor"
)

const streamURL = "wss://www.deribit.com/ws/api/v2"

type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id,omitempty"`
	Params  any    `json:"params"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

type heartbeatParams struct {
	Interval int `json:"interval"`
}

// methodEnvelope is the loose decode used to steer full decoding (spec.md
// §4.4 step 4, §6's JSON-RPC discriminant).
type methodEnvelope struct {
	Method string `json:"method"`
}

// session implements supervisor.Session for the single Deribit connection
// that carries every subscribed channel (spec.md §4.3: "a single session
// per client carries all channels").
type session struct {
	index map[string]model.Instrument // instrument_name -> Instrument
}

func newSession(instruments []model.Instrument) *session {
	s := &session{index: make(map[string]model.Instrument, len(instruments))}
	for _, inst := range instruments {
		s.index[inst.Symbol] = inst
	}
	return s
}

func (s *session) SubscribeFrame() ([][]byte, error) {
	channels := make([]string, 0, len(s.index))
	for symbol := range s.index {
		channels = append(channels, fmt.Sprintf("book.%s.100ms", symbol))
	}
	raw, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", Method: "public/subscribe", ID: 1, Params: subscribeParams{Channels: channels}})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStreamSendFailed, "marshal deribit subscribe frame")
	}
	return [][]byte{raw}, nil
}

func (s *session) HeartbeatEnableFrame() ([][]byte, error) {
	raw, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", Method: "public/set_heartbeat", Params: heartbeatParams{Interval: 30}})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStreamSendFailed, "marshal deribit set_heartbeat frame")
	}
	return [][]byte{raw}, nil
}

var testFrame = func() []byte {
	raw, _ := json.Marshal(rpcEnvelope{JSONRPC: "2.0", Method: "public/test", Params: struct{}{}})
	return raw
}()

func (s *session) HandleFrame(raw []byte) (supervisor.Outcome, error) {
	var env methodEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return supervisor.Outcome{}, apperror.Wrap(err, apperror.CodeMalformedFrame, "decode deribit envelope")
	}

	switch env.Method {
	case "subscription":
		return s.handleSubscription(raw)
	case "heartbeat":
		return supervisor.Outcome{Kind: supervisor.FrameHeartbeat, HeartbeatReply: testFrame}, nil
	default:
		return supervisor.Outcome{}, apperror.New(apperror.CodeUnknownDiscriminant, apperror.WithContext(env.Method))
	}
}

func (s *session) handleSubscription(raw []byte) (supervisor.Outcome, error) {
	var wrapper deribit.OrderbookDataWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return supervisor.Outcome{}, apperror.Wrap(err, apperror.CodeMalformedFrame, "decode deribit subscription notification")
	}
	ob := wrapper.Params.Data

	inst, ok := s.index[ob.InstrumentName]
	if !ok {
		return supervisor.Outcome{}, apperror.New(apperror.CodeMalformedFrame, apperror.WithContext(fmt.Sprintf("unknown instrument %q", ob.InstrumentName)))
	}

	update, err := deribit.NormalizeOrderbook(ob)
	if err != nil {
		return supervisor.Outcome{}, err
	}

	currency := inst.Base
	contractType := inst.ContractType
	ev := model.Event{
		Exchange:     model.ExchangeDeribit,
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
