package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/internal/metrics"
)

// ErrClosed is returned by Async.Deliver after Close.
var ErrClosed = errors.New("sink: closed")

type item struct {
	destination string
	body        []byte
}

// Async queues messages in an unbounded FIFO and hands them to next from a
// single worker, so Deliver never blocks on the wrapped sink.
type Async struct {
	next    Sink
	timeout time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. Each delivery to next is bounded by timeout
// when it is positive.
func NewAsync(next Sink, timeout time.Duration) *Async {
	a := &Async{next: next, timeout: timeout, q: queue.New(), done: make(chan struct{})}
	a.cond = sync.NewCond(&a.mu)
	go a.run()
	return a
}

func (a *Async) Name() string { return "async" }

// Deliver enqueues a copy of body.
func (a *Async) Deliver(_ context.Context, destination string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.q.Add(item{destination: destination, body: append([]byte(nil), body...)})
	a.cond.Signal()
	return nil
}

// Len returns the number of queued messages.
func (a *Async) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.q.Length()
}

// Close stops accepting messages and waits for the queue to drain or ctx
// to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.cond.Broadcast()
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		a.mu.Lock()
		for a.q.Length() == 0 && !a.closed {
			a.cond.Wait()
		}
		if a.q.Length() == 0 {
			a.mu.Unlock()
			return
		}
		it := a.q.Remove().(item)
		a.mu.Unlock()
		a.deliver(it)
	}
}

func (a *Async) deliver(it item) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	err := a.next.Deliver(ctx, it.destination, it.body)
	metrics.ObserveDelivery(a.next.Name(), time.Since(start), err)
	if err != nil {
		logx.Log.Warn().Err(err).Str("sink", a.next.Name()).Str("destination", it.destination).Msg("delivery failed")
	}
}
