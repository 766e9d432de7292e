package usecase

import (
	"context"
	"sync"
	"time"

	"UrbanPull/internal/domain/models"
	drepo "UrbanPull/internal/domain/repository"
	mid "UrbanPull/internal/middleware"
	"UrbanPull/pkg/logger"
)

// IndicatorCollector polls a watchlist of descriptors on a fixed interval.
type IndicatorCollector struct {
	source    drepo.IndicatorSource
	watchlist []*models.Indicator
	interval  time.Duration
	pipe      *mid.RealtimePipeline
	proc      *SnapshotProcessor
	bcast     drepo.Broadcaster
	metrics   drepo.Metrics
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIndicatorCollector creates a collector. bcast may be nil.
func NewIndicatorCollector(
	source drepo.IndicatorSource,
	watchlist []*models.Indicator,
	interval time.Duration,
	pipe *mid.RealtimePipeline,
	proc *SnapshotProcessor,
	bcast drepo.Broadcaster,
	metrics drepo.Metrics,
	log *logger.Logger,
) *IndicatorCollector {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IndicatorCollector{
		source:    source,
		watchlist: watchlist,
		interval:  interval,
		pipe:      pipe,
		proc:      proc,
		bcast:     bcast,
		metrics:   metrics,
		log:       log.With(logger.String("component", "collector")),
	}
}

// Start runs one collection immediately and then one per interval until
// Shutdown or ctx cancellation.
func (c *IndicatorCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	ctx, c.cancel = context.WithCancel(ctx)

	if c.pipe != nil {
		c.pipe.Start(ctx)
	}

	c.wg.Add(1)
	go c.loop(ctx)
	c.log.Info("collector started",
		logger.Int("descriptors", len(c.watchlist)),
		logger.Duration("interval_ms", c.interval),
	)
	return nil
}

func (c *IndicatorCollector) loop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.CollectOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce fetches every watchlist descriptor, hands the batch downstream
// and broadcasts each snapshot. Per-descriptor failures are logged and skipped.
func (c *IndicatorCollector) CollectOnce(ctx context.Context) []*models.IndicatorSnapshot {
	start := time.Now()
	snaps := make([]*models.IndicatorSnapshot, 0, len(c.watchlist))
	for _, ind := range c.watchlist {
		if ctx.Err() != nil {
			break
		}
		fetchStart := time.Now()
		snap, err := c.source.FetchFresh(ctx, ind)
		if err != nil {
			c.metrics.RecordError("collect_fetch")
			c.log.Error("collect descriptor failed",
				logger.String("series", models.SeriesKey(ind)),
				logger.Error(err),
			)
			continue
		}
		c.metrics.RecordFetch(snap.Indicator, time.Since(fetchStart).Seconds())
		snaps = append(snaps, snap)
	}

	if len(snaps) > 0 {
		var err error
		switch {
		case c.pipe != nil:
			err = c.pipe.ProcessBatch(ctx, snaps)
		case c.proc != nil:
			err = c.proc.ProcessBatch(ctx, snaps)
		}
		if err != nil {
			c.log.Warn("collected batch not delivered", logger.Int("snapshots", len(snaps)), logger.Error(err))
		}
	}

	if c.bcast != nil {
		for _, s := range snaps {
			c.bcast.Broadcast(s)
		}
	}

	c.metrics.RecordLatency("collect", time.Since(start).Seconds())
	c.log.Debug("collection finished",
		logger.Int("fetched", len(snaps)),
		logger.Int("watchlist", len(c.watchlist)),
	)
	return snaps
}

// Shutdown stops the loop and the pipeline.
func (c *IndicatorCollector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return nil
}
