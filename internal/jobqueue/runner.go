package jobqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/jobmetrics"
	"github.com/vrischmann/servare/internal/model"
)

// DefaultMaxAttempts is the number of failed attempts a job tolerates
// before the Runner marks it failed instead of retrying it again.
const DefaultMaxAttempts = 5

// DefaultManageJobsLimit and DefaultRunJobsLimit bound how much work a
// single tick considers, so one slow tick can't starve the next.
const (
	DefaultManageJobsLimit = 500
	DefaultRunJobsLimit    = 50
)

// Runner is the Job Runner: on each tick it runs a Manage phase
// (enqueuing due work) followed by a Run phase (claiming and
// executing a batch of pending jobs).
type Runner struct {
	Store    *Store
	Feeds    *feedstore.Store
	Registry *Registry
	Logger   *slog.Logger
	Metrics  jobmetrics.Collector

	Interval        time.Duration
	ManageJobsLimit int
	RunJobsLimit    int
	MaxAttempts     int
}

// NewRunner builds a Runner with the package defaults for limits and
// max attempts; callers may override the fields directly afterward.
func NewRunner(store *Store, feeds *feedstore.Store, registry *Registry, logger *slog.Logger, interval time.Duration) *Runner {
	return &Runner{
		Store:           store,
		Feeds:           feeds,
		Registry:        registry,
		Logger:          logger,
		Interval:        interval,
		ManageJobsLimit: DefaultManageJobsLimit,
		RunJobsLimit:    DefaultRunJobsLimit,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

// Run ticks until shutdown is closed or ctx is canceled, matching the
// rungroup.Group task signature. The first tick runs immediately,
// before the first interval elapses.
func (r *Runner) Run(ctx context.Context, shutdown <-chan struct{}) error {
	r.tick(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if err := r.manage(ctx); err != nil {
		r.Logger.Error("manage phase failed", "error", err)
	}
	if err := r.runOnce(ctx); err != nil {
		r.Logger.Error("run phase failed", "error", err)
	}
}

// manage scans feeds and enqueues the jobs due against them:
// RefreshFeed unconditionally (Enqueue's fingerprint dedup makes this
// idempotent no matter how often manage runs), and FetchFavicon only
// while a feed's favicon state is still unknown.
func (r *Runner) manage(ctx context.Context) error {
	feeds, err := r.Feeds.ListFeedsForRefresh(ctx, r.Feeds.DB())
	if err != nil {
		return err
	}
	if len(feeds) > r.ManageJobsLimit {
		feeds = feeds[:r.ManageJobsLimit]
	}

	for _, f := range feeds {
		if _, _, err := r.Store.Enqueue(ctx, NewRefreshFeedPayload(f.UserID, f.ID, f.URL)); err != nil {
			r.Logger.Error("enqueue refresh_feed failed", "feed_id", f.ID, "error", err)
		}
		if f.HasFavicon == model.FaviconUnknown && f.SiteLink != "" {
			if _, _, err := r.Store.Enqueue(ctx, NewFetchFaviconPayload(f.UserID, f.ID, f.SiteLink)); err != nil {
				r.Logger.Error("enqueue fetch_favicon failed", "feed_id", f.ID, "error", err)
			}
		}
	}
	return nil
}

// runOnce claims a batch of pending jobs and executes each within the
// claiming transaction. A job whose attempts already reached
// MaxAttempts is marked failed without running its handler again;
// otherwise the handler runs and a failure always increments the
// attempt count, so a terminally-failed row's stored attempts equals
// MaxAttempts. A handler failure never aborts the whole batch.
func (r *Runner) runOnce(ctx context.Context) error {
	tx, jobs, err := r.Store.ClaimBatch(ctx, r.RunJobsLimit)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, j := range jobs {
		tag := string(j.Payload.Tag)
		if r.Metrics != nil {
			r.Metrics.RecordClaimed(tag)
		}

		// A job that has already exhausted its attempts is marked
		// failed without being handed to a handler again.
		if j.Attempts >= r.MaxAttempts {
			if err := r.Store.MarkFailed(ctx, tx, j.ID); err != nil {
				return err
			}
			if r.Metrics != nil {
				r.Metrics.RecordFailed(tag)
			}
			continue
		}

		handler, ok := r.Registry.HandlerFor(j.Payload.Tag)
		if !ok {
			r.Logger.Error("no handler registered for job tag", "tag", j.Payload.Tag, "job_id", j.ID)
			continue
		}

		if r.Metrics != nil {
			r.Metrics.RecordAttempt(tag, j.Attempts+1)
		}

		if err := handler.Handle(ctx, tx, j.Payload); err != nil {
			r.Logger.Error("job handler failed", "job_id", j.ID, "tag", j.Payload.Tag, "attempts", j.Attempts, "error", err)
			if err := r.Store.IncrementAttempts(ctx, tx, j.ID); err != nil {
				return err
			}
			continue
		}

		if err := r.Store.Delete(ctx, tx, j.ID); err != nil {
			return err
		}
		if r.Metrics != nil {
			r.Metrics.RecordSucceeded(tag)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
