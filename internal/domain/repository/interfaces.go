package repository

import (
	"context"
	"time"

	"UrbanPull/internal/domain/models"
)

// IndicatorSource executes indicator requests against the upstream API.
type IndicatorSource interface {
	Fetch(ctx context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error)
	FetchFresh(ctx context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error)
}

type Publisher interface {
	Publish(ctx context.Context, s *models.IndicatorSnapshot) error
	PublishBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.IndicatorSnapshot) error
	StoreBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error
	Query(ctx context.Context, ind *models.Indicator, from, to time.Time, limit int) ([]*models.IndicatorSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// Broadcaster fans snapshots out to live subscribers.
type Broadcaster interface {
	Broadcast(s *models.IndicatorSnapshot)
}

type Metrics interface {
	RecordSnapshotSent(backend, indicator string)
	RecordError(kind string)
	RecordFetch(indicator string, seconds float64)
	RecordLatency(op string, seconds float64)
}
