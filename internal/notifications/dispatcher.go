package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/turnoslabs/turnosbot/internal/observability/metrics"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

type dispatchQueue interface {
	ClaimBatch(ctx context.Context, limit int) ([]Entry, error)
	Release(ctx context.Context, id uuid.UUID) error
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type messageSender interface {
	Send(ctx context.Context, recipient, text string) error
}

// Dispatcher polls the queue and delivers pending notifications. Failed
// deliveries are released back to the queue and retried on a later cycle;
// there is no attempt cap, delivery is retried until it succeeds or the
// entry is deleted by an operator.
type Dispatcher struct {
	queue     dispatchQueue
	sender    messageSender
	logger    *logging.Logger
	metrics   *metrics.BotMetrics
	interval  time.Duration
	batchSize int
	retention time.Duration
}

func NewDispatcher(queue dispatchQueue, sender messageSender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		queue:     queue,
		sender:    sender,
		logger:    logger,
		interval:  1 * time.Minute,
		batchSize: 25,
		retention: 7 * 24 * time.Hour,
	}
}

func (d *Dispatcher) WithInterval(dur time.Duration) *Dispatcher {
	if dur > 0 {
		d.interval = dur
	}
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

// WithRetention controls how long delivered entries are kept before
// garbage collection.
func (d *Dispatcher) WithRetention(dur time.Duration) *Dispatcher {
	if dur > 0 {
		d.retention = dur
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.BotMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Run blocks until ctx is cancelled, draining the queue once per interval.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	if d.queue == nil || d.sender == nil {
		return
	}
	entries, err := d.queue.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("notification claim failed", "error", err)
		return
	}
	for _, e := range entries {
		if err := d.sender.Send(ctx, e.Recipient, e.Message); err != nil {
			d.logger.Error("notification delivery failed", "error", err, "notification_id", e.ID, "kind", e.Kind)
			d.metrics.ObserveNotification(e.Kind, "failed")
			if err := d.queue.Release(ctx, e.ID); err != nil {
				d.logger.Error("notification release failed", "error", err, "notification_id", e.ID)
			}
			continue
		}
		d.metrics.ObserveNotification(e.Kind, "sent")
		d.logger.Info("notification delivered", "notification_id", e.ID, "kind", e.Kind)
	}
	if removed, err := d.queue.DeleteSentBefore(ctx, time.Now().Add(-d.retention)); err != nil {
		d.logger.Error("notification gc failed", "error", err)
	} else if removed > 0 {
		d.logger.Info("notification gc", "removed", removed)
	}
}
