package supervisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mdagg/mdagg/internal/model"
)

// mockWSServer mirrors internal/wsconn's own test harness: accept one
// WebSocket connection and hand it to handler.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// fakeSession always subscribes cleanly and reports one FrameBook per
// inbound frame, never a heartbeat.
type fakeSession struct{}

func (fakeSession) SubscribeFrame() ([][]byte, error)       { return [][]byte{[]byte("sub")}, nil }
func (fakeSession) HeartbeatEnableFrame() ([][]byte, error) { return nil, nil }
func (fakeSession) HandleFrame(raw []byte) (Outcome, error) {
	ev := model.Event{Symbol: string(raw)}
	return Outcome{Kind: FrameBook, Event: &ev}, nil
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Fatalf("expected default initial backoff 100ms, got %s", cfg.InitialBackoff)
	}
	if cfg.HeartbeatTimeout != 35*time.Second {
		t.Fatalf("expected default heartbeat timeout 35s, got %s", cfg.HeartbeatTimeout)
	}

	cfg2 := Config{InitialBackoff: time.Second, HeartbeatTimeout: time.Minute}.withDefaults()
	if cfg2.InitialBackoff != time.Second || cfg2.HeartbeatTimeout != time.Minute {
		t.Fatalf("expected explicit values preserved, got %+v", cfg2)
	}
}

func TestStateOrdinalCoversEveryState(t *testing.T) {
	want := map[State]int64{
		StateConnecting: 0, StateSubscribing: 1, StateHeartbeatEnabling: 2,
		StateRunning: 3, StateReconnecting: 4, StateClosed: 5,
	}
	for st, ord := range want {
		if got := stateOrdinal(st); got != ord {
			t.Fatalf("stateOrdinal(%s) = %d, want %d", st, got, ord)
		}
	}
}

// TestRunDeliversBookEventsAndStopsOnCancel exercises the full Connecting
// -> Subscribing -> HeartbeatEnabling -> Running path against a real
// WebSocket server and confirms decoded events reach the sink.
func TestRunDeliversBookEventsAndStopsOnCancel(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		_, _, _ = conn.Read(ctx) // subscribe frame
		_ = conn.Write(ctx, websocket.MessageText, []byte("BTC-1"))
		time.Sleep(50 * time.Millisecond)
	})
	defer server.Close()

	var received atomic.Int32
	sink := func(ev model.Event) { received.Add(1) }

	sup, err := New(Config{URL: wsURL(server), Name: "test"}, fakeSession{}, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = sup.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected Run to stop on context deadline, got %v", err)
	}
	if received.Load() == 0 {
		t.Fatalf("expected at least one book event delivered to sink")
	}
}

// TestRunReconnectsOnDialFailure confirms a session that can never connect
// still returns promptly once its context is cancelled, rather than
// wedging the reconnect loop.
func TestRunReconnectsOnDialFailure(t *testing.T) {
	sup, err := New(Config{URL: "ws://127.0.0.1:1", Name: "test", InitialBackoff: 10 * time.Millisecond}, fakeSession{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = sup.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected Run to stop on context deadline, got %v", err)
	}
}

// heartbeatTimeoutSession never sends a book frame; every inbound frame
// is reported as a heartbeat, letting the test control elapsed time via
// the server's write cadence.
type heartbeatTimeoutSession struct{}

func (heartbeatTimeoutSession) SubscribeFrame() ([][]byte, error)       { return nil, nil }
func (heartbeatTimeoutSession) HeartbeatEnableFrame() ([][]byte, error) { return nil, nil }
func (heartbeatTimeoutSession) HandleFrame(raw []byte) (Outcome, error) {
	return Outcome{Kind: FrameHeartbeat}, nil
}

// TestRunReconnectsWhenHeartbeatGapExceedsTimeout mirrors spec.md §4.4
// step 5: a heartbeat gap strictly greater than HeartbeatTimeout tears
// the session down, which manifests as a reconnect before our deadline.
// It asserts this by counting how many times the server accepted a new
// connection.
func TestRunReconnectsWhenHeartbeatGapExceedsTimeout(t *testing.T) {
	var accepts atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		accepts.Add(1)
		ctx := context.Background()
		_ = conn.Write(ctx, websocket.MessageText, []byte("hb-1"))
		time.Sleep(40 * time.Millisecond)
		_ = conn.Write(ctx, websocket.MessageText, []byte("hb-2"))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), Name: "test", HeartbeatTimeout: 30 * time.Millisecond, InitialBackoff: 10 * time.Millisecond}
	sup, err := New(cfg, heartbeatTimeoutSession{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_ = sup.Run(ctx)

	if accepts.Load() < 2 {
		t.Fatalf("expected at least 2 connection attempts (teardown+reconnect on heartbeat gap), got %d", accepts.Load())
	}
}

// malformedSession reports every inbound frame as undecodable, mirroring
// delta/deribit's session.go returning CodeMalformedFrame/
// CodeUnknownDiscriminant from HandleFrame.
type malformedSession struct{}

func (malformedSession) SubscribeFrame() ([][]byte, error)       { return nil, nil }
func (malformedSession) HeartbeatEnableFrame() ([][]byte, error) { return nil, nil }
func (malformedSession) HandleFrame(raw []byte) (Outcome, error) {
	return Outcome{}, errMalformed
}

var errMalformed = errors.New("malformed frame")

// TestRunReconnectsOnMalformedFrame confirms a decode error breaks Running
// and reconnects (spec.md §4.4 step 4 / §7) rather than looping forever on
// the same connection reading frames it can never decode. It asserts this
// by counting how many times the server accepted a new connection: the bug
// this guards against leaves that count at 1 forever.
func TestRunReconnectsOnMalformedFrame(t *testing.T) {
	var accepts atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		accepts.Add(1)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := conn.Write(ctx, websocket.MessageText, []byte("garbage")); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), Name: "test", InitialBackoff: 5 * time.Millisecond}
	sup, err := New(cfg, malformedSession{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_ = sup.Run(ctx)

	if accepts.Load() < 2 {
		t.Fatalf("expected at least 2 connection attempts (teardown+reconnect on decode error), got %d", accepts.Load())
	}
}
