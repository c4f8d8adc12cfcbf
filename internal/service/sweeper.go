package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/repository"
)

var (
	sweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_sweeper_runs_total",
		Help: "Number of retention sweeps executed",
	})

	sweeperItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_sweeper_items_removed_total",
		Help: "Number of expired items removed by the sweeper",
	})

	sweeperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lostfound_sweeper_errors_total",
		Help: "Number of errors encountered while sweeping",
	})

	sweeperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lostfound_sweeper_duration_seconds",
		Help:    "Duration of retention sweeps in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// sweepTimeout bounds a single scheduled sweep.
const sweepTimeout = 5 * time.Minute

// Lease grants exclusive right to sweep across API instances.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context), ok bool, err error)
}

// ImageReleaser releases the image behind a reference.
type ImageReleaser interface {
	Release(ctx context.Context, ref string) error
}

// SweeperConfig holds configuration for the retention sweeper.
type SweeperConfig struct {
	Retention   time.Duration // unclaimed items older than this are removed
	Interval    time.Duration // time between sweeps
	BatchSize   int
	Concurrency int

	// Lease is optional; without it only in-process overlap is prevented.
	Lease Lease
	// OnRemoved is called once after a sweep that removed at least one item.
	OnRemoved func(ctx context.Context)
}

// SweepResult is the outcome of one sweep.
type SweepResult struct {
	Scanned       int
	Removed       int
	Skipped       int // claimed or deleted by someone else meanwhile
	Failed        int
	ImageFailures int
	ExpiringSoon  int64 // unclaimed items that will expire before the next sweep
	LeaseBusy     bool  // another instance is sweeping; nothing was done
	Duration      time.Duration
}

// Sweeper periodically removes unclaimed items past the retention window together with their images.
type Sweeper struct {
	repo   repository.ItemRepository
	images ImageReleaser
	cfg    SweeperConfig
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex // serializes RunOnce

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSweeper creates a new retention sweeper.
func NewSweeper(repo repository.ItemRepository, images ImageReleaser, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Sweeper{
		repo:   repo,
		images: images,
		cfg:    cfg,
		logger: logger.With("component", "sweeper"),
		now:    clock,
	}
}

// Start runs a sweep immediately and then every interval until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("sweeper started",
		"interval", s.cfg.Interval.String(),
		"retention", s.cfg.Retention.String(),
	)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.logger.Info("sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	s.scheduled(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduled(ctx)
		}
	}
}

func (s *Sweeper) scheduled(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("sweep aborted, retrying next cycle", "error", err)
	}
}

// RunOnce performs one sweep. A failure to list candidates aborts the sweep;
// per-item failures are counted and the sweep continues.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	if s.cfg.Lease != nil {
		release, ok, err := s.cfg.Lease.Acquire(ctx)
		switch {
		case err != nil:
			// Expiry deletes are conditional, so sweeping without the lease is safe.
			sweeperErrorsTotal.Inc()
			s.logger.Warn("sweep lease unavailable, sweeping without it", "error", err)
		case !ok:
			s.logger.Debug("sweep skipped, lease held elsewhere")
			result.LeaseBusy = true
			return result, nil
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	sweeperRunsTotal.Inc()
	defer func() {
		result.Duration = time.Since(start)
		sweeperDurationSeconds.Observe(result.Duration.Seconds())
	}()

	cutoff := s.now().Add(-s.cfg.Retention)

	for {
		batch, err := s.repo.ListExpired(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			sweeperErrorsTotal.Inc()
			return result, fmt.Errorf("list expired items: %w", err)
		}
		result.Scanned += len(batch)

		removed := s.sweepBatch(ctx, batch, cutoff, result)

		// Items that keep failing come back in the next batch; stop once a batch makes no progress.
		if len(batch) < s.cfg.BatchSize || removed == 0 {
			break
		}
	}

	if result.Removed > 0 && s.cfg.OnRemoved != nil {
		s.cfg.OnRemoved(ctx)
	}

	expiring, err := s.repo.CountExpiring(ctx, cutoff, cutoff.Add(s.cfg.Interval))
	if err != nil {
		sweeperErrorsTotal.Inc()
		s.logger.Warn("failed to count items expiring soon", "error", err)
	} else {
		result.ExpiringSoon = expiring
	}

	s.logger.Info("sweep finished",
		"scanned", result.Scanned,
		"removed", result.Removed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"image_failures", result.ImageFailures,
		"expiring_before_next_sweep", result.ExpiringSoon,
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// sweepBatch removes the batch with bounded parallelism and returns how many were removed.
func (s *Sweeper) sweepBatch(ctx context.Context, batch []model.Item, cutoff time.Time, result *SweepResult) int {
	var (
		mu      sync.Mutex
		removed int
		g       errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for i := range batch {
		item := &batch[i]
		g.Go(func() error {
			outcome := s.sweepItem(ctx, item, cutoff)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeRemoved:
				removed++
				result.Removed++
			case outcomeRemovedImageFailed:
				removed++
				result.Removed++
				result.ImageFailures++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	sweeperItemsRemovedTotal.Add(float64(removed))
	return removed
}

type sweepOutcome int

const (
	outcomeRemoved sweepOutcome = iota
	outcomeRemovedImageFailed
	outcomeSkipped
	outcomeFailed
)

func (s *Sweeper) sweepItem(ctx context.Context, item *model.Item, cutoff time.Time) sweepOutcome {
	if _, err := Next(item.State(), TriggerSweep); err != nil {
		return outcomeSkipped
	}

	removed, err := s.repo.DeleteExpired(ctx, item.ID, cutoff)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Debug("item no longer eligible for expiry", "item_id", item.ID)
		return outcomeSkipped
	}
	if err != nil {
		sweeperErrorsTotal.Inc()
		s.logger.Error("failed to remove expired item", "item_id", item.ID, "error", err)
		return outcomeFailed
	}

	if err := s.images.Release(ctx, removed.ImageRef); err != nil {
		sweeperErrorsTotal.Inc()
		s.logger.Error("failed to release image of expired item",
			"item_id", removed.ID, "ref", removed.ImageRef, "error", err)
		return outcomeRemovedImageFailed
	}
	return outcomeRemoved
}
