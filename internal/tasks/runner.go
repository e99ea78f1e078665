// Package tasks executes the durable queue of fire-and-forget server
// operations: deleting finished transfers and fetching debtor info
// documents.
//
// Every task is idempotent on redelivery. A task leaves the queue only when
// its work is confirmed done, or when it has failed MaxAttempts times.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/creditors/internal/debtorinfo"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/transport"
)

// Defaults.
const (
	DefaultBatchSize   = 10
	DefaultRetryDelay  = time.Hour
	DefaultMaxAttempts = 5
)

// Runner executes due tasks.
type Runner struct {
	store  *store.Store
	client transport.Client
	logger *slog.Logger
	now    func() time.Time

	batchSize   int
	retryDelay  time.Duration
	maxAttempts int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the time source deciding which tasks are due.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithBatchSize sets how many tasks are fetched and run concurrently.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRetryDelay sets how far a failed task is pushed back.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Runner) { r.retryDelay = d }
}

// WithMaxAttempts sets how many failures a task survives.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// New creates a Runner.
func New(s *store.Store, c transport.Client, opts ...Option) *Runner {
	r := &Runner{
		store:       s,
		client:      c,
		logger:      slog.Default(),
		now:         time.Now,
		batchSize:   DefaultBatchSize,
		retryDelay:  DefaultRetryDelay,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecuteReady runs the user's due tasks batch by batch until a partial
// batch shows the queue is drained. It returns the number of tasks taken
// off the queue.
//
// Task failures are absorbed by rescheduling; only storage errors and
// cancellation are returned.
func (r *Runner) ExecuteReady(ctx context.Context, userID int64) (int, error) {
	done := 0
	for {
		batch, err := r.store.ListDueTasks(ctx, userID, r.now(), r.batchSize)
		if err != nil {
			return done, fmt.Errorf("execute ready tasks: %w", err)
		}
		results := make([]bool, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, task := range batch {
			i, task := i, task
			g.Go(func() error {
				finished, err := r.execute(gctx, task)
				results[i] = finished
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return done, err
		}
		for _, finished := range results {
			if finished {
				done++
			}
		}
		if len(batch) < r.batchSize {
			return done, nil
		}
	}
}

// execute runs one task and settles it in the queue. It reports whether
// the task left the queue.
func (r *Runner) execute(ctx context.Context, task records.Task) (bool, error) {
	var err error
	switch task.Type {
	case records.TaskDeleteTransfer:
		err = r.deleteTransfer(ctx, task)
	case records.TaskFetchDebtorInfo:
		err = r.fetchDebtorInfo(ctx, task)
	default:
		r.logger.Warn("dropping unknown task", "task_id", task.TaskID, "task_type", task.Type)
		return true, r.store.DeleteTask(ctx, task)
	}
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if fault.KindOf(err) == fault.KindUnknown {
		// Storage failure; the task stays as it is.
		return false, err
	}
	return r.retry(ctx, task, err)
}

func (r *Runner) retry(ctx context.Context, task records.Task, cause error) (bool, error) {
	if task.Attempts+1 >= r.maxAttempts {
		r.logger.Warn("giving up on task",
			"task_id", task.TaskID, "task_type", task.Type, "attempts", task.Attempts+1,
			"transfer_uri", task.TransferURI, "iri", task.IRI, "account_uri", task.AccountURI,
			"error", cause)
		return true, r.store.DeleteTask(ctx, task)
	}
	at := r.now().Add(r.retryDelay)
	r.logger.Debug("rescheduling task",
		"task_id", task.TaskID, "task_type", task.Type, "at", at, "error", cause)
	if _, err := r.store.RescheduleTask(ctx, task, at); err != nil && !fault.Is(err, fault.KindRecordDoesNotExist) {
		return false, err
	}
	return false, nil
}

// deleteTransfer removes a finished transfer from the server and from the
// replica. A transfer that is already gone, or that the server refuses to
// show, counts as deleted.
func (r *Runner) deleteTransfer(ctx context.Context, task records.Task) error {
	_, err := r.client.Delete(ctx, task.TransferURI)
	if err != nil {
		status := fault.StatusOf(err)
		if fault.KindOf(err) != fault.KindHTTP || (status != http.StatusNotFound && status != http.StatusForbidden) {
			return err
		}
	}
	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteObject(ctx, task.UserID, task.TransferURI); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, task)
	})
}

// fetchDebtorInfo downloads a debtor info document and keeps it for the
// action that asked for it.
func (r *Runner) fetchDebtorInfo(ctx context.Context, task records.Task) error {
	doc, err := debtorinfo.Fetch(ctx, r.client, task.IRI, r.now())
	if err != nil {
		return err
	}
	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutDocument(ctx, doc); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, task)
	})
}

// ScheduleDeleteTransfer queues the deletion of a transfer at the given
// time. Scheduling an already queued deletion is a no-op.
func ScheduleDeleteTransfer(ctx context.Context, tx *store.Tx, userID int64, transferURI string, at time.Time) error {
	_, _, err := tx.PutTask(ctx, records.Task{
		UserID:       userID,
		Type:         records.TaskDeleteTransfer,
		ScheduledFor: at,
		TransferURI:  transferURI,
	})
	return err
}

// ScheduleFetchDebtorInfo queues the download of a debtor info document
// needed by an account.
func ScheduleFetchDebtorInfo(ctx context.Context, tx *store.Tx, userID int64, iri, accountURI string, at time.Time) error {
	_, _, err := tx.PutTask(ctx, records.Task{
		UserID:       userID,
		Type:         records.TaskFetchDebtorInfo,
		ScheduledFor: at,
		IRI:          iri,
		AccountURI:   accountURI,
	})
	return err
}
