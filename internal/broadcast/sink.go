// Package broadcast implements the lossy, bounded, multi-producer
// multi-consumer in-process channel used as the aggregator's fan-out sink.
//
// There is no ecosystem library in the retrieved corpus for this exact
// shape (a fixed-capacity ring buffer where a slow subscriber observes a
// lag count rather than backpressure, the way Rust's tokio::sync::broadcast
// behaves — see original_source/data-streamer/src/model.rs). The closest
// pack analogue is SamKhachatryan-arbitrage.trade's use of go-redis pub/sub,
// which is a cross-process broker and would add an operational dependency
// (a running Redis instance) the spec never calls for — the sink here is
// explicitly in-process (§5). So this is hand-rolled, grounded on the
// reference repo's wsconn non-blocking-send-and-count-drops idiom
// (internal/wsconn.go's readLoop) rather than adapted from a single file.
package broadcast

import (
	"context"
	"sync"

	"github.com/mdagg/mdagg/internal/model"
)

// Sink is a fixed-capacity ring buffer of events. Publish never blocks: once
// the buffer is full, the oldest entry is overwritten and any subscriber
// still positioned there will observe a lag on its next Receive.
type Sink struct {
	mu   sync.Mutex
	cond *sync.Cond

	capacity uint64
	buf      []model.Event

	// head is the sequence number of the next event to be published
	// (equivalently, the count of events ever published).
	head uint64

	closed bool

	onDrop func(n uint64) // optional metrics hook, called with subscriber's lag count
}

// NewSink builds a Sink with the given fixed capacity. Per spec.md §4.5,
// 250,000 is the reference capacity.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Sink{capacity: uint64(capacity), buf: make([]model.Event, capacity)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// OnDrop installs a callback invoked whenever a subscriber's Receive call
// discovers it was lapped, receiving the number of events it missed. No
// caller in this repository installs one; business/aggregator exposes its
// sink through Aggregator.Sink so a caller can.
func (s *Sink) OnDrop(fn func(n uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

// Publish appends an event, overwriting the oldest buffered entry if the
// sink is at capacity. It never blocks and never fails: a send with no
// subscribers or into a full buffer is exactly the designed lossy-overflow
// path, not an error.
func (s *Sink) Publish(e model.Event) {
	s.mu.Lock()
	s.buf[s.head%s.capacity] = e
	s.head++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Close wakes every blocked subscriber. After Close, Receive still returns
// any events the subscriber has not yet read, then returns ErrClosed
// without blocking. Streams in this system run until process
// termination (§5 — no cooperative cancellation), so Close exists mainly
// for tests.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Subscribe returns a new subscriber handle positioned at the sink's
// current head: it observes only events published from this point forward,
// matching §4.5's "consume returns a new subscriber handle on the sink".
func (s *Sink) Subscribe() *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Subscriber{sink: s, cursor: s.head}
}

// Subscriber is one consumer's position within a Sink.
type Subscriber struct {
	sink   *Sink
	cursor uint64
}

// Receive blocks until an event is available, ctx is done, or the sink is
// closed. lag reports how many events were skipped because this subscriber
// fell behind the ring buffer's capacity before this call — zero when the
// subscriber is caught up.
func (s *Subscriber) Receive(ctx context.Context) (event model.Event, lag uint64, err error) {
	sink := s.sink
	sink.mu.Lock()

	// Wake the condvar wait if ctx is cancelled, since sync.Cond has no
	// native context support.
	stop := context.AfterFunc(ctx, func() {
		sink.mu.Lock()
		sink.cond.Broadcast()
		sink.mu.Unlock()
	})
	defer stop()

	for s.cursor == sink.head && !sink.closed && ctx.Err() == nil {
		sink.cond.Wait()
	}

	if ctx.Err() != nil {
		sink.mu.Unlock()
		return model.Event{}, 0, ctx.Err()
	}
	if sink.closed && s.cursor == sink.head {
		sink.mu.Unlock()
		return model.Event{}, 0, ErrClosed
	}

	oldestAvailable := uint64(0)
	if sink.head > sink.capacity {
		oldestAvailable = sink.head - sink.capacity
	}
	if s.cursor < oldestAvailable {
		lag = oldestAvailable - s.cursor
		s.cursor = oldestAvailable
		if sink.onDrop != nil {
			sink.onDrop(lag)
		}
	}

	event = sink.buf[s.cursor%sink.capacity]
	s.cursor++
	sink.mu.Unlock()
	return event, lag, nil
}

// sinkError is the string error type behind ErrClosed, which Receive returns
// once the sink has been closed and the subscriber has drained every event
// published before Close.
type sinkError string

func (e sinkError) Error() string { return string(e) }

// ErrClosed is returned by Receive once the sink is closed and fully
// drained for this subscriber.
const ErrClosed = sinkError("broadcast: sink closed")
