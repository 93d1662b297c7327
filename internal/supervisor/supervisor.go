// Package supervisor implements the venue-agnostic Stream Supervisor
// (spec.md §4.4): the Connecting → Subscribing → HeartbeatEnabling →
// Running ⇄ Reconnecting state machine shared by every exchange client.
//
// Grounded on internal/wsconn.Client's shape (a long-lived connection
// object with OTEL metrics, a tracer, and state-change notification) but
// deliberately diverging from its ConnectWithRetry backoff: wsconn jitters
// and caps the delay, which spec.md §8's literal reconnect-delay sequence
// (100, 200, 400, 800... ms, uncapped, no jitter) does not allow. Framing
// is abstracted behind Session so this one state machine serves both Delta
// and Deribit.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/logger"
	"github.com/mdagg/mdagg/internal/model"
)

const (
	tracerName = "github.com/mdagg/mdagg/internal/supervisor"
	meterName  = "github.com/mdagg/mdagg/internal/supervisor"
)

// State is one phase of the supervisor's state machine.
type State string

const (
	StateConnecting        State = "connecting"
	StateSubscribing       State = "subscribing"
	StateHeartbeatEnabling State = "heartbeat_enabling"
	StateRunning           State = "running"
	StateReconnecting      State = "reconnecting"
	StateClosed            State = "closed"
)

// FrameKind discriminates what a Session decoded an inbound frame as.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameBook
	FrameHeartbeat
	FrameSubscriptionAck
)

// Outcome is a Session's decoding of one inbound WebSocket frame.
type Outcome struct {
	Kind           FrameKind
	Event          *model.Event
	HeartbeatReply []byte // non-nil => supervisor writes this frame back immediately
}

// Session abstracts venue-specific framing so Supervisor can drive the
// Connecting/Subscribing/HeartbeatEnabling/Running state machine without
// knowing Delta's or Deribit's wire format.
type Session interface {
	// SubscribeFrame returns the frame(s) to send once connected, entering
	// Subscribing.
	SubscribeFrame() ([][]byte, error)
	// HeartbeatEnableFrame returns the frame(s), if any, that arm server-side
	// heartbeats before entering Running. A nil/empty return skips the step.
	HeartbeatEnableFrame() ([][]byte, error)
	// HandleFrame decodes one raw inbound frame.
	HandleFrame(raw []byte) (Outcome, error)
}

// Config parameterizes one Supervisor instance.
type Config struct {
	URL string
	// Name identifies this session in logs, traces, and metrics
	// (e.g. "delta/chunk-0", "deribit").
	Name string
	// InitialBackoff is the delay before the first reconnect attempt, and
	// the value the delay resets to after a session parses at least one
	// frame (spec.md §8 scenario 5). Defaults to 100ms.
	InitialBackoff time.Duration
	// HeartbeatTimeout is the maximum allowed gap between heartbeat frames
	// while Running before the supervisor tears the session down and
	// reconnects. Defaults to 35s (spec.md §4.4 step 5).
	HeartbeatTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 35 * time.Second
	}
	return c
}

type metrics struct {
	state          metric.Int64Gauge
	reconnects     metric.Int64Counter
	framesParsed   metric.Int64Counter
	framesDropped  metric.Int64Counter
	heartbeatsSeen metric.Int64Counter
}

// Supervisor drives one Session's connection lifecycle, including
// reconnection with the spec's exact jitter-free exponential backoff.
type Supervisor struct {
	cfg     Config
	session Session
	sink    func(model.Event)
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *metrics
}

// New returns a Supervisor that dials cfg.URL, drives session through the
// state machine, and forwards every decoded book event to sink.
func New(cfg Config, session Session, sink func(model.Event), log logger.LoggerInterface) (*Supervisor, error) {
	s := &Supervisor{cfg: cfg.withDefaults(), session: session, sink: sink, log: log, tracer: otel.Tracer(tracerName)}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("supervisor: init metrics: %w", err)
	}
	return s, nil
}

func (s *Supervisor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	m := &metrics{}
	if m.state, err = meter.Int64Gauge("stream_supervisor_state", metric.WithDescription("supervisor state (0=connecting,1=subscribing,2=heartbeat_enabling,3=running,4=reconnecting,5=closed)")); err != nil {
		return err
	}
	if m.reconnects, err = meter.Int64Counter("stream_supervisor_reconnects_total", metric.WithDescription("total reconnect attempts")); err != nil {
		return err
	}
	if m.framesParsed, err = meter.Int64Counter("stream_supervisor_frames_parsed_total", metric.WithDescription("total inbound book frames successfully decoded")); err != nil {
		return err
	}
	if m.framesDropped, err = meter.Int64Counter("stream_supervisor_frames_dropped_total", metric.WithDescription("total inbound frames that failed to decode")); err != nil {
		return err
	}
	if m.heartbeatsSeen, err = meter.Int64Counter("stream_supervisor_heartbeats_total", metric.WithDescription("total heartbeat frames observed")); err != nil {
		return err
	}
	s.metrics = m
	return nil
}

func stateOrdinal(st State) int64 {
	switch st {
	case StateConnecting:
		return 0
	case StateSubscribing:
		return 1
	case StateHeartbeatEnabling:
		return 2
	case StateRunning:
		return 3
	case StateReconnecting:
		return 4
	default:
		return 5
	}
}

func (s *Supervisor) recordState(ctx context.Context, st State) {
	attrs := metric.WithAttributes(attribute.String("session", s.cfg.Name))
	s.metrics.state.Record(ctx, stateOrdinal(st), attrs)
}

// Run drives the reconnect loop until ctx is cancelled. Each iteration runs
// one session to completion, then sleeps for the backoff delay before
// reconnecting. The delay is InitialBackoff * 2^(attempt-1) with attempt resetting
// to zero whenever the immediately preceding session parsed at least one
// frame — no jitter, matching spec.md §8 scenario 5 exactly.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		parsedAny, err := s.runSessionOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && s.log != nil {
			s.log.Warn(ctx, "session ended", "session", s.cfg.Name, "error", err)
		}

		if parsedAny {
			attempt = 0
		}
		attempt++
		delay := s.cfg.InitialBackoff * time.Duration(1<<uint(attempt-1))

		s.recordState(ctx, StateReconnecting)
		s.metrics.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("session", s.cfg.Name)))
		if s.log != nil {
			s.log.Info(ctx, "reconnecting", "session", s.cfg.Name, "attempt", attempt, "delay", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runSessionOnce drives one connection from Connecting through whatever
// state it breaks at, returning whether it parsed at least one frame.
func (s *Supervisor) runSessionOnce(ctx context.Context) (parsedAny bool, err error) {
	ctx, span := s.tracer.Start(ctx, "supervisor.session", trace.WithAttributes(attribute.String("session", s.cfg.Name)))
	defer span.End()

	s.recordState(ctx, StateConnecting)
	conn, _, dialErr := websocket.Dial(ctx, s.cfg.URL, nil)
	if dialErr != nil {
		return false, apperror.Wrap(dialErr, apperror.CodeStreamConnectionFailed, "dial")
	}
	defer conn.CloseNow()

	s.recordState(ctx, StateSubscribing)
	frames, subErr := s.session.SubscribeFrame()
	if subErr != nil {
		return false, apperror.Wrap(subErr, apperror.CodeStreamSendFailed, "build subscribe frame")
	}
	for _, f := range frames {
		if werr := conn.Write(ctx, websocket.MessageText, f); werr != nil {
			return false, apperror.Wrap(werr, apperror.CodeStreamSendFailed, "write subscribe frame")
		}
	}

	s.recordState(ctx, StateHeartbeatEnabling)
	hbFrames, hbErr := s.session.HeartbeatEnableFrame()
	if hbErr != nil {
		return false, apperror.Wrap(hbErr, apperror.CodeStreamSendFailed, "build heartbeat-enable frame")
	}
	for _, f := range hbFrames {
		if werr := conn.Write(ctx, websocket.MessageText, f); werr != nil {
			return false, apperror.Wrap(werr, apperror.CodeStreamSendFailed, "write heartbeat-enable frame")
		}
	}

	s.recordState(ctx, StateRunning)
	lastHeartbeat := time.Now()
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.cfg.HeartbeatTimeout)
		_, raw, readErr := conn.Read(readCtx)
		cancel()
		if readErr != nil {
			if ctx.Err() != nil {
				return parsedAny, ctx.Err()
			}
			return parsedAny, apperror.Wrap(readErr, apperror.CodeStreamConnectionFailed, "read frame")
		}

		outcome, decodeErr := s.session.HandleFrame(raw)
		if decodeErr != nil {
			s.metrics.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("session", s.cfg.Name)))
			if s.log != nil {
				s.log.Warn(ctx, "malformed or unknown frame, breaking Running to reconnect", "session", s.cfg.Name, "error", decodeErr)
			}
			return parsedAny, decodeErr
		}
		parsedAny = true

		switch outcome.Kind {
		case FrameBook:
			s.metrics.framesParsed.Add(ctx, 1, metric.WithAttributes(attribute.String("session", s.cfg.Name)))
			if outcome.Event != nil && s.sink != nil {
				s.sink(*outcome.Event)
			}
		case FrameHeartbeat:
			s.metrics.heartbeatsSeen.Add(ctx, 1, metric.WithAttributes(attribute.String("session", s.cfg.Name)))
			elapsed := time.Since(lastHeartbeat)
			lastHeartbeat = time.Now()
			if elapsed > s.cfg.HeartbeatTimeout {
				return parsedAny, apperror.New(apperror.CodeHeartbeatTimeout, apperror.WithContext(fmt.Sprintf("elapsed %s exceeds %s", elapsed, s.cfg.HeartbeatTimeout)))
			}
			if outcome.HeartbeatReply != nil {
				if werr := conn.Write(ctx, websocket.MessageText, outcome.HeartbeatReply); werr != nil {
					return parsedAny, apperror.Wrap(werr, apperror.CodeStreamSendFailed, "write heartbeat reply")
				}
			}
		case FrameSubscriptionAck:
			// Informational; no state transition required once Running.
		default:
			s.metrics.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("session", s.cfg.Name)))
		}
	}
}
