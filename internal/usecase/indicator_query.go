package usecase

import (
	"context"
	"errors"
	"time"

	"UrbanPull/internal/domain/models"
	drepo "UrbanPull/internal/domain/repository"
	mid "UrbanPull/internal/middleware"
	"UrbanPull/pkg/logger"
)

// ErrHistoryUnavailable is returned by History when no queryable storage is wired.
var ErrHistoryUnavailable = errors.New("snapshot history unavailable: no storage configured")

// IndicatorQuery serves on-demand descriptor lookups.
type IndicatorQuery struct {
	source  drepo.IndicatorSource
	store   drepo.Storage
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewIndicatorQuery creates the query use case. store and pipe may be nil:
// without store History is unavailable, without pipe results are not persisted.
func NewIndicatorQuery(source drepo.IndicatorSource, store drepo.Storage, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *logger.Logger) *IndicatorQuery {
	if log == nil {
		log = logger.Nop()
	}
	return &IndicatorQuery{source: source, store: store, pipe: pipe, metrics: metrics, log: log}
}

// Get executes ind. refresh bypasses the response cache.
func (q *IndicatorQuery) Get(ctx context.Context, ind *models.Indicator, refresh bool) (*models.IndicatorSnapshot, error) {
	start := time.Now()
	var (
		snap *models.IndicatorSnapshot
		err  error
	)
	if refresh {
		snap, err = q.source.FetchFresh(ctx, ind)
	} else {
		snap, err = q.source.Fetch(ctx, ind)
	}
	if err != nil {
		q.metrics.RecordError("query_fetch")
		return nil, err
	}
	q.metrics.RecordFetch(snap.Indicator, time.Since(start).Seconds())

	if q.pipe != nil {
		// Persistence failures are buffered by the pipeline; the caller still gets the data.
		if perr := q.pipe.Process(ctx, snap); perr != nil {
			q.log.Warn("persist snapshot failed",
				logger.String("series", snap.SeriesKey()),
				logger.Error(perr),
			)
		}
	}
	return snap, nil
}

// History lists stored snapshots of ind, newest first.
func (q *IndicatorQuery) History(ctx context.Context, ind *models.Indicator, from, to time.Time, limit int) ([]*models.IndicatorSnapshot, error) {
	if err := ind.Validate(); err != nil {
		return nil, err
	}
	if q.store == nil {
		return nil, ErrHistoryUnavailable
	}
	start := time.Now()
	snaps, err := q.store.Query(ctx, ind, from, to, limit)
	if err != nil {
		q.metrics.RecordError("query_history")
		return nil, err
	}
	q.metrics.RecordLatency("query_history", time.Since(start).Seconds())
	return snaps, nil
}

// Health reports storage health when storage is wired.
func (q *IndicatorQuery) Health(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	return q.store.Health(ctx)
}
