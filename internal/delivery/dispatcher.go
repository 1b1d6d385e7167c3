package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/metrics"
	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/utmify"
)

// Sender forwards one event downstream.
type Sender interface {
	Send(ctx context.Context, job *models.DeliveryJob) (utmify.Result, error)
}

type Options struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	Backoff       time.Duration
	Lease         time.Duration
	SweepInterval time.Duration
}

const maxBackoff = time.Hour

// Dispatcher forwards stored events to utmify in the background. The events
// table is the outbox: Push is only a hint, and a periodic sweep picks up
// anything that was dropped, failed, or left over from a previous run.
type Dispatcher struct {
	db      *sql.DB
	sender  Sender
	metrics *metrics.Metrics
	opts    Options
	log     *logrus.Entry
	now     func() time.Time

	ch   chan int64
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewDispatcher(db *sql.DB, sender Sender, m *metrics.Metrics, opts Options) *Dispatcher {
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}
	d := &Dispatcher{
		db:      db,
		sender:  sender,
		metrics: m,
		opts:    opts,
		log:     logrus.WithField("component", "delivery"),
		now:     func() time.Time { return time.Now().UTC() },
		ch:      make(chan int64, opts.QueueSize),
		stop:    make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.wg.Add(1)
	go d.sweepLoop()
	return d
}

// Push queues an event id without blocking. A full queue drops the id; the
// event stays pending and the next sweep retries it.
func (d *Dispatcher) Push(eventID int64) {
	select {
	case d.ch <- eventID:
	default:
		d.metrics.QueueDropped()
	}
}

// Shutdown stops the sweep and waits for workers to finish their current
// delivery. Queued ids stay pending in the store.
func (d *Dispatcher) Shutdown() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case id := <-d.ch:
			d.Deliver(context.Background(), id)
		}
	}
}

func (d *Dispatcher) sweepLoop() {
	defer d.wg.Done()
	d.Sweep(context.Background())

	ticker := time.NewTicker(d.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Sweep(context.Background())
		case <-d.stop:
			return
		}
	}
}

// Sweep queues every due event and returns how many were found.
func (d *Dispatcher) Sweep(ctx context.Context) int {
	ids, err := models.DueEventIDs(ctx, d.db, d.now(), d.opts.MaxAttempts, d.opts.QueueSize)
	if err != nil {
		d.log.WithError(err).Warn("sweep failed")
		return 0
	}
	for _, id := range ids {
		d.Push(id)
	}
	if len(ids) > 0 {
		d.log.WithField("count", len(ids)).Debug("sweep queued events")
	}
	return len(ids)
}

// Deliver claims the event and makes one delivery attempt. Every outcome is
// recorded on the event row; nothing is returned to the caller.
func (d *Dispatcher) Deliver(ctx context.Context, id int64) {
	log := d.log.WithField("event_id", id)

	claimed, err := models.ClaimEvent(ctx, d.db, id, d.now(), d.opts.Lease, d.opts.MaxAttempts)
	if err != nil {
		log.WithError(err).Warn("claim failed")
		return
	}
	if !claimed {
		return
	}

	job, err := models.LoadDeliveryJob(ctx, d.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		log.WithError(err).Warn("load job failed")
		return
	}
	if job.BotToken == "" {
		d.metrics.Delivered("abandoned", 0)
		if err := models.AbandonEvent(ctx, d.db, id, "missing bot credentials", d.opts.MaxAttempts); err != nil {
			log.WithError(err).Warn("record abandon failed")
		}
		return
	}

	start := time.Now()
	res, sendErr := d.sender.Send(ctx, job)
	elapsed := time.Since(start).Seconds()

	if sendErr == nil {
		d.metrics.Delivered("success", elapsed)
		if err := models.MarkDelivered(ctx, d.db, id, res.Body); err != nil {
			log.WithError(err).Warn("record success failed")
		}
		return
	}

	d.metrics.Delivered("failed", elapsed)
	attempt := job.Event.DeliveryAttempts
	retryAt := d.now().Add(d.backoff(attempt))
	log.WithFields(logrus.Fields{"attempt": attempt, "retry_at": retryAt}).WithError(sendErr).Warn("delivery failed")
	if err := models.MarkFailed(ctx, d.db, id, failureText(res, sendErr), retryAt); err != nil {
		log.WithError(err).Warn("record failure failed")
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	b := d.opts.Backoff
	for i := 1; i < attempt && b < maxBackoff; i++ {
		b *= 2
	}
	if b > maxBackoff {
		b = maxBackoff
	}
	return b
}

func failureText(res utmify.Result, err error) string {
	if res.StatusCode == 0 {
		return err.Error()
	}
	return fmt.Sprintf("HTTP %d: %s", res.StatusCode, res.Body)
}
