package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/authhub/internal/actorctx"
	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/geocoder89/authhub/internal/notifications"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/queue/redisqueue"
)

type Queue interface {
	Dequeue(ctx context.Context, wait time.Duration) (jobs.Job, error)
	Retry(ctx context.Context, j jobs.Job, delay time.Duration) error
	DeadLetter(ctx context.Context, j jobs.Job) error
	PromoteDue(ctx context.Context, now time.Time, limit int) (int, error)
	Depth(ctx context.Context) (redisqueue.Depth, error)
	Ping(ctx context.Context) error
}

type Config struct {
	WorkerID        string
	Concurrency     int
	PollWait        time.Duration // BLPOP timeout
	PromoteInterval time.Duration
	JobTimeout      time.Duration
	ShutdownGrace   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.PollWait <= 0 {
		c.PollWait = 2 * time.Second
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 15 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	return c
}

// Worker drains the email queue and hands each job to the notifier.
type Worker struct {
	cfg      Config
	queue    Queue
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	stats    *observability.JobMetrics
	backoff  func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, q Queue, notifier notifications.Notifier, log *slog.Logger, prom *observability.Prom) *Worker {
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg.withDefaults(),
		queue:    q,
		notifier: notifier,
		log:      log.With("worker_id", cfg.WorkerID),
		prom:     prom,
		stats:    observability.NewJobMetrics(),
		backoff:  ExponentialBackoff,
	}
}

func (w *Worker) Stats() observability.JobMetricsSnapshot {
	return w.stats.Snapshot()
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) isReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run blocks until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	// jobs keep running on their own context so a shutdown does not cut an
	// SMTP conversation in half
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promoteLoop(ctx)
	}()

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, jobCtx, slot)
		}(i)
	}

	w.setReady(true)
	w.log.Info("worker started", "concurrency", w.cfg.Concurrency)

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelJobs()
		<-done
		return errors.New("shutdown grace period exceeded")
	}
}

func (w *Worker) loop(ctx, jobCtx context.Context, slot int) {
	for ctx.Err() == nil {
		_, err := w.ProcessOne(ctx, jobCtx)

		if err != nil && ctx.Err() == nil {
			w.log.Error("process job", "slot", slot, "err", err)

			// avoid spinning on a broken connection
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_, err := w.queue.PromoteDue(ctx, now, 100)

			if err != nil && ctx.Err() == nil {
				w.log.Warn("promote delayed jobs", "err", err)
			}

			if w.prom != nil {
				d, err := w.queue.Depth(ctx)
				if err == nil {
					w.prom.QueueDepth.Set(float64(d.Ready + d.Delayed))
				}
			}
		}
	}
}

// ProcessOne takes at most one job off the queue. It reports whether a job was
// dequeued; a failed job is not an error, it is retried or dead-lettered.
func (w *Worker) ProcessOne(ctx, jobCtx context.Context) (bool, error) {
	j, err := w.queue.Dequeue(ctx, w.cfg.PollWait)

	if err != nil {
		if errors.Is(err, redisqueue.ErrEmpty) {
			return false, nil
		}

		if errors.Is(err, jobs.ErrInvalidJobStatus) || errors.Is(err, jobs.ErrInvalidJobPayload) {
			w.log.Error("dropping undecodable job", "job_id", j.ID, "err", err)
			w.stats.IncFailed()
			return true, nil
		}

		if ctx.Err() != nil {
			return false, nil
		}

		return false, err
	}

	w.stats.IncDequeued()
	j.Status = jobs.JobProcessing

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()

	err = w.execute(jobCtx, j)

	elapsed := time.Since(start)
	w.stats.ObserveDuration(elapsed)

	if err != nil {
		w.handleFailure(jobCtx, j, err, elapsed)
		return true, nil
	}

	j.Status = jobs.JobSucceeded

	w.stats.IncDone()
	w.prom.ObserveJob(string(j.Type), "done", elapsed)
	w.log.Info("job done", "job_id", j.ID, "job_type", j.Type, "status", j.Status, "attempt", j.Attempts+1)

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	payload, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	switch p := payload.(type) {
	case jobs.SendOtpEmailPayload:
		ctx = actorctx.WithRequestID(ctx, p.RequestID)
		return w.notifier.SendOtpEmail(ctx, p.Email, p.Code)
	case jobs.SendResetLinkPayload:
		ctx = actorctx.WithRequestID(ctx, p.RequestID)
		return w.notifier.SendResetLink(ctx, p.Email, p.URL)
	default:
		return fmt.Errorf("%w: %T", jobs.ErrPayloadTypeMismatch, payload)
	}
}

func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error, elapsed time.Duration) {
	j.Attempts++
	msg := cause.Error()
	j.LastError = &msg

	// payload problems will not fix themselves
	permanent := errors.Is(cause, jobs.ErrInvalidJobPayload) ||
		errors.Is(cause, jobs.ErrInvalidJobType) ||
		errors.Is(cause, jobs.ErrPayloadTypeMismatch)

	if permanent || j.Exhausted() {
		j.Status = jobs.JobFailed
		err := w.queue.DeadLetter(ctx, j)

		if err != nil {
			w.log.Error("dead-letter job", "job_id", j.ID, "err", err)
		}

		w.stats.IncDeadLettered()
		w.stats.IncFailed()
		w.prom.ObserveJob(string(j.Type), "failed", elapsed)
		w.log.Error("job failed permanently", "job_id", j.ID, "job_type", j.Type, "status", j.Status, "attempts", j.Attempts, "err", cause)
		return
	}

	delay := w.backoff(j.Attempts - 1)
	j.Status = jobs.JobPending

	err := w.queue.Retry(ctx, j, delay)

	if err != nil {
		w.log.Error("schedule retry", "job_id", j.ID, "err", err)
		w.stats.IncFailed()
		return
	}

	w.stats.IncRetried()
	w.prom.ObserveJob(string(j.Type), "retry", elapsed)
	w.log.Warn("job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts, "delay", delay, "err", cause)
}
