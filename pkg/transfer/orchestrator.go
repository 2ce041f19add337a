package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Logger is the output surface the orchestrator needs. internal/logging
// satisfies it.
type Logger interface {
	Info(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})   {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Orchestrator runs copy items through a fixed pool of workers.
//
// Items are dispatched in input order. A retryable failure puts the item
// back at the tail of the queue, so one bad item cannot starve the rest;
// a fatal failure, or an exhausted retry budget, classifies it failed.
// Per-item failures never abort the run. Cancelling the context stops
// dispatch but lets in-flight copies finish; whatever was never
// terminally classified comes back in Report.Pending.
type Orchestrator struct {
	Copier      Copier
	Concurrency int
	// MaxRetries bounds re-attempts after a retryable failure, so an
	// item is attempted at most MaxRetries+1 times.
	MaxRetries int
	// CopyTimeout bounds a single invocation; expiry counts as a
	// retryable failure. 0 means no timeout.
	CopyTimeout time.Duration
	// NewBackoff builds the per-item delay schedule between retries.
	// nil uses an exponential backoff.
	NewBackoff func() backoff.BackOff
	Logger     Logger
	Stats      *Stats
}

type queued struct {
	item     Item
	attempts int
	readyAt  time.Time
	bo       backoff.BackOff
}

type attempt struct {
	q   *queued
	err error
	dur time.Duration
}

func (o *Orchestrator) logger() Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

func (o *Orchestrator) newBackoff() backoff.BackOff {
	if o.NewBackoff != nil {
		return o.NewBackoff()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// Run copies items and returns the report. It only returns once no copy
// is in flight, even when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, items []Item) Report {
	report := Report{RunID: uuid.NewString()}
	if len(items) == 0 {
		return report
	}
	start := time.Now()

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	pending := make([]*queued, len(items))
	for i, item := range items {
		pending[i] = &queued{item: item}
	}

	jobs := make(chan *queued)
	results := make(chan attempt)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, jobs, results)
		}()
	}

	if o.Stats != nil {
		o.Stats.Start(len(items))
		defer o.Stats.Stop()
	}

	inFlight := 0
	cancelled := false
	for {
		if inFlight == 0 && (cancelled || len(pending) == 0) {
			break
		}

		// Dispatch only when the head of the queue is ready; requeued
		// items sit at the tail with a backoff delay, fresh items are
		// always ready.
		var dispatch chan *queued
		var headReady <-chan time.Time
		var next *queued
		if !cancelled && len(pending) > 0 {
			if delay := time.Until(pending[0].readyAt); delay > 0 {
				headReady = time.After(delay)
			} else {
				next = pending[0]
				dispatch = jobs
			}
		}

		var done <-chan struct{}
		if !cancelled {
			done = ctx.Done()
		}

		select {
		case dispatch <- next:
			next.attempts++
			pending = pending[1:]
			inFlight++
		case <-headReady:
		case res := <-results:
			inFlight--
			if o.Stats != nil {
				o.Stats.Observe(res.dur)
			}
			pending = o.classify(res, pending, &report, cancelled)
		case <-done:
			cancelled = true
			o.logger().Warnf("stop requested: no new copies will start, %d in flight", inFlight)
		}
	}
	close(jobs)
	wg.Wait()

	for _, q := range pending {
		report.Pending = append(report.Pending, q.item)
	}
	report.Elapsed = time.Since(start)
	return report
}

func (o *Orchestrator) classify(res attempt, pending []*queued, report *Report, cancelled bool) []*queued {
	q := res.q
	switch {
	case res.err == nil:
		report.Succeeded = append(report.Succeeded, Result{
			Item:     q.item,
			Class:    Succeeded,
			Attempts: q.attempts,
			Duration: res.dur,
		})
		o.logger().Info("copied %s (attempt %d, %s)", q.item.LFN, q.attempts, res.dur.Round(time.Millisecond))
		if o.Stats != nil {
			o.Stats.Complete(q.item, true)
		}

	case IsFatal(res.err) || q.attempts > o.MaxRetries:
		report.Failed = append(report.Failed, Result{
			Item:     q.item,
			Class:    FailedFatal,
			Attempts: q.attempts,
			Err:      res.err,
			Duration: res.dur,
		})
		o.logger().Errorf("failed %s after %d attempt(s): %v", q.item.LFN, q.attempts, res.err)
		if o.Stats != nil {
			o.Stats.Complete(q.item, false)
		}

	case cancelled:
		// Retryable, but the run is stopping: hand the item back as
		// resumable work instead of burning its budget.
		return append(pending, q)

	default:
		if q.bo == nil {
			q.bo = o.newBackoff()
		}
		delay := q.bo.NextBackOff()
		if delay == backoff.Stop {
			delay = 0
		}
		q.readyAt = time.Now().Add(delay)
		o.logger().Warnf("retrying %s (attempt %d failed: %v)", q.item.LFN, q.attempts, res.err)
		return append(pending, q)
	}
	return pending
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan *queued, results chan<- attempt) {
	for q := range jobs {
		// A dispatched copy runs to completion even when the run is
		// cancelled; only the per-call timeout bounds it.
		copyCtx := context.WithoutCancel(ctx)
		cancel := context.CancelFunc(func() {})
		if o.CopyTimeout > 0 {
			copyCtx, cancel = context.WithTimeout(copyCtx, o.CopyTimeout)
		}

		start := time.Now()
		err := o.Copier.Copy(copyCtx, q.item)
		cancel()

		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = Retryable(fmt.Errorf("copy timed out after %s: %w", o.CopyTimeout, err))
		}
		results <- attempt{q: q, err: err, dur: time.Since(start)}
	}
}
