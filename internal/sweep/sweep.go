// Package sweep retires conversations past the retention window and
// repairs malformed records. Runs are idempotent and safe to trigger from
// the cron scheduler, the admin endpoint, and opportunistic list renders
// all at once.
package sweep

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"noticeboard/pkg/convo"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/store"
)

var sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "noticeboard_sweep_runs_total",
	Help: "Completed retention sweep runs.",
})

// Options configures the sweeper.
type Options struct {
	Enabled bool
	Cron    string
	Period  time.Duration
	DryRun  bool
	// LeaseDir holds the cooperative lease file; empty disables leasing
	// (single-process deployments and tests).
	LeaseDir string
}

// Result summarizes one sweep run.
type Result struct {
	Scanned   int  `json:"scanned"`
	Expired   int  `json:"expired"`
	Malformed int  `json:"malformed"`
	Purged    int  `json:"purged"`
	Skipped   bool `json:"skipped,omitempty"`
	DryRun    bool `json:"dry_run,omitempty"`
}

var (
	storedMu   sync.Mutex
	storedOpts *Options
)

// SetOptions stores the sweep options so RunImmediate (admin trigger,
// tests) can run without re-plumbing config.
func SetOptions(opts Options) {
	storedMu.Lock()
	storedOpts = &opts
	storedMu.Unlock()
}

// RunImmediate triggers a single run using the stored options.
func RunImmediate() (Result, error) {
	storedMu.Lock()
	opts := storedOpts
	storedMu.Unlock()
	if opts == nil {
		return Result{}, fmt.Errorf("no sweep options registered")
	}
	return RunOnce(time.Now(), *opts)
}

// Start launches the cron scheduler when enabled; the returned cancel
// stops it. An empty cron defaults to daily at 02:00.
func Start(ctx context.Context, opts Options) (context.CancelFunc, error) {
	SetOptions(opts)
	if !opts.Enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}
	cronExpr := opts.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", opts.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", opts.Cron)
	}
	if opts.LeaseDir != "" {
		if err := os.MkdirAll(opts.LeaseDir, 0o700); err != nil {
			return nil, err
		}
	}
	logger.Info("sweep_enabled", "cron", cronExpr, "period", opts.Period.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, opts, cronExpr)
	return cancel, nil
}

func runScheduler(ctx context.Context, opts Options, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-time.After(time.Until(next)):
			if _, err := RunOnce(time.Now(), opts); err != nil {
				logger.Error("sweep_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce scans every conversation and purges expired and malformed ones.
// A conversation expires when its last activity is strictly older than the
// retention period. Partial failures leave records the next run retries.
func RunOnce(now time.Time, opts Options) (Result, error) {
	var res Result
	res.DryRun = opts.DryRun

	var lease *FileLease
	owner := fmt.Sprintf("sweep-%d", os.Getpid())
	if opts.LeaseDir != "" {
		lease = NewFileLease(opts.LeaseDir)
		ok, err := lease.Acquire(owner, 5*time.Minute)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Skipped = true
			logger.Info("sweep_skipped_lease_held")
			return res, nil
		}
		defer func() { _ = lease.Release(owner) }()
	}

	period := opts.Period
	if period <= 0 {
		period = 10 * 24 * time.Hour
	}
	horizon := now.UTC().UnixNano() - period.Nanoseconds()

	convs, err := store.ListConversations()
	if err != nil {
		return res, fmt.Errorf("list conversations: %w", err)
	}
	for _, c := range convs {
		res.Scanned++
		activity := c.UpdatedTS
		if activity == 0 {
			activity = c.CreatedTS
		}
		expired := activity < horizon
		malformed := convo.Validate(c) != nil
		if !expired && !malformed {
			continue
		}
		if expired {
			res.Expired++
		} else {
			res.Malformed++
		}
		if opts.DryRun {
			logger.Info("sweep_would_purge", "conversation", c.ID, "expired", expired, "malformed", malformed)
			continue
		}
		if err := convo.HardDelete(c.ID); err != nil {
			// retryable on the next run; keep going
			logger.Error("sweep_purge_failed", "conversation", c.ID, "error", err)
			continue
		}
		res.Purged++
	}
	sweepRuns.Inc()
	logger.Info("sweep_run_done", "scanned", res.Scanned, "expired", res.Expired, "malformed", res.Malformed, "purged", res.Purged, "dry_run", res.DryRun)
	return res, nil
}
