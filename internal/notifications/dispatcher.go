package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/labstore-backend/pkg/logger"
	"github.com/angelmondragon/labstore-backend/pkg/metrics"
)

const (
	defaultQueueSize      = 64
	defaultWorkers        = 2
	defaultDeliverTimeout = 15 * time.Second
)

type outcomeRecorder interface {
	IncNotification(outcome string)
}

// DispatcherOptions tunes the queue. Zero values use the defaults.
type DispatcherOptions struct {
	QueueSize      int
	Workers        int
	DeliverTimeout time.Duration
	Metrics        outcomeRecorder
	Logger         *logger.Logger
}

// AsyncDispatcher fans events out to a sink through a bounded queue drained
// by a fixed worker pool. A full queue drops the event.
type AsyncDispatcher struct {
	sink    Sink
	queue   chan Event
	workers int
	timeout time.Duration
	metrics outcomeRecorder
	logg    *logger.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	group   *errgroup.Group
}

// NewAsyncDispatcher builds a dispatcher; call Start to begin delivery.
func NewAsyncDispatcher(sink Sink, opts DispatcherOptions) (*AsyncDispatcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := opts.DeliverTimeout
	if timeout <= 0 {
		timeout = defaultDeliverTimeout
	}
	return &AsyncDispatcher{
		sink:    sink,
		queue:   make(chan Event, size),
		workers: workers,
		timeout: timeout,
		metrics: opts.Metrics,
		logg:    opts.Logger,
	}, nil
}

// Start launches the workers. They stop when ctx is canceled or after Close
// has drained the queue.
func (d *AsyncDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		group.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	d.group = group
}

// Enqueue never blocks.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, event Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.record(metrics.OutcomeDropped)
		d.logg.Warn(d.eventContext(ctx, event), "notification.dropped_closed")
		return false
	}
	select {
	case d.queue <- event:
		d.record(metrics.OutcomeQueued)
		return true
	default:
		d.record(metrics.OutcomeDropped)
		d.logg.Warn(d.eventContext(ctx, event), "notification.dropped_queue_full")
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *AsyncDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	group := d.group
	d.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

func (d *AsyncDispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, event)
		}
	}
}

func (d *AsyncDispatcher) deliver(ctx context.Context, event Event) {
	deliverCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logCtx := d.eventContext(ctx, event)
	if err := d.sink.Deliver(deliverCtx, event); err != nil {
		d.record(metrics.OutcomeFailed)
		d.logg.Error(logCtx, "notification.delivery_failed", err)
		return
	}
	d.record(metrics.OutcomeDelivered)
	d.logg.Info(logCtx, "notification.delivered")
}

func (d *AsyncDispatcher) eventContext(ctx context.Context, event Event) context.Context {
	return d.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID.String(),
		"event_type": event.Type,
		"key":        event.Key,
		"sink":       d.sink.Name(),
	})
}

func (d *AsyncDispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.IncNotification(outcome)
	}
}
