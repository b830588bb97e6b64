package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/logging"
)

// Options configures a Dispatcher.
type Options struct {
	Logger logging.Logger
}

type delivery func(ctx context.Context, sink Sink) error

// Dispatcher forwards the output of one run to a Sink through two
// independently ordered queues: one for tokens and messages, one for
// progress. Each queue is drained by its own goroutine, so a slow progress
// consumer never delays the answer and vice versa. Within a queue, delivery
// order equals emission order.
//
// Dispatcher implements core.ProgressEmitter.
type Dispatcher struct {
	ctx       context.Context
	sessionID string
	sink      Sink
	logger    logging.Logger

	chat     *queue[delivery]
	progress *queue[delivery]

	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher starts the delivery goroutines. Close must be called to
// release them.
func NewDispatcher(ctx context.Context, sessionID string, sink Sink, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if sink == nil {
		sink = Discard{}
	}

	d := &Dispatcher{
		ctx:       context.WithoutCancel(ctx),
		sessionID: sessionID,
		sink:      sink,
		logger:    opts.Logger,
		chat:      newQueue[delivery](),
		progress:  newQueue[delivery](),
	}

	d.wg.Add(2)
	go d.drain("chat", d.chat)
	go d.drain("progress", d.progress)

	return d
}

// Emit queues a progress notification. It never blocks.
func (d *Dispatcher) Emit(p core.Progress) {
	d.enqueue(d.progress, func(ctx context.Context, s Sink) error {
		return s.Progress(ctx, p)
	})
}

// Token queues a text delta. It never blocks.
func (d *Dispatcher) Token(text string) {
	if text == "" {
		return
	}
	d.enqueue(d.chat, func(ctx context.Context, s Sink) error {
		return s.Token(ctx, d.sessionID, text)
	})
}

// Message queues a complete message behind any pending tokens.
func (d *Dispatcher) Message(msg core.Message) {
	d.enqueue(d.chat, func(ctx context.Context, s Sink) error {
		return s.Message(ctx, d.sessionID, msg)
	})
}

// Close stops accepting new items, delivers everything already queued and
// waits for both goroutines to finish. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.chat.close()
		d.progress.close()
	})
	d.wg.Wait()
}

// Dropped returns how many items were emitted after Close.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Pending returns the number of queued, undelivered items.
func (d *Dispatcher) Pending() int { return d.chat.len() + d.progress.len() }

// Failed returns how many deliveries the sink rejected.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

func (d *Dispatcher) enqueue(q *queue[delivery], fn delivery) {
	if !q.push(fn) {
		d.dropped.Add(1)
		d.logger.Debug("stream.dispatch.dropped", "session", d.sessionID)
	}
}

func (d *Dispatcher) drain(name string, q *queue[delivery]) {
	defer d.wg.Done()

	for {
		fn, ok := q.pop()
		if !ok {
			return
		}

		if err := fn(d.ctx, d.sink); err != nil {
			d.failed.Add(1)
			d.logger.Warn("stream.dispatch.failed", "session", d.sessionID, "queue", name, "error", err.Error())
		}
	}
}

var _ core.ProgressEmitter = (*Dispatcher)(nil)
