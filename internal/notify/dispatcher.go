// Package notify delivers engine events. The engine only ever enqueues;
// delivery happens on the dispatcher's goroutine and a full queue drops.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

const DefaultBuffer = 1024

// Sink is one delivery transport.
type Sink interface {
	Deliver(ctx context.Context, event models.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, event models.Event) error

func (f SinkFunc) Deliver(ctx context.Context, event models.Event) error { return f(ctx, event) }

// Dispatcher implements engine.Notifier.
type Dispatcher struct {
	queue   chan models.Event
	sinks   []Sink
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewDispatcher creates a dispatcher with a queue of buffer events.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		queue: make(chan models.Event, buffer),
		sinks:   sinks,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Notify never blocks.
func (d *Dispatcher) Notify(event models.Event) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.queue <- event:
	default:
		n := d.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			log.WithFields(log.Fields{
				"kind":       event.Kind,
				"tournament": event.TournamentID,
				"dropped":    n,
			}).Warn("[NOTIFY] Queue full, dropping event")
		}
	}
}

// Dropped reports how many events were discarded on overflow.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is done or Close is called, then
// drains what is left. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.stopped)
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		case <-d.done:
			d.drain(ctx)
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event models.Event) {
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"kind":        event.Kind,
				"tournament":  event.TournamentID,
				"participant": event.ParticipantID,
			}).Warn("[NOTIFY] Delivery failed")
		}
	}
}

// Close stops accepting events. Run drains the queue and returns.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// Shutdown closes the dispatcher and waits until Run has delivered the
// remaining queue or ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Close()
	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		log.WithField("queued", len(d.queue)).Warn("[NOTIFY] Shutdown before queue drained")
		return ctx.Err()
	}
}
