package usecase

import (
	"context"
	"fmt"
	"time"

	"UrbanPull/internal/domain/models"
	drepo "UrbanPull/internal/domain/repository"
)

// Backend names accepted by SnapshotProcessor.
const (
	BackendKafka   = "kafka"
	BackendStorage = "storage"
)

// SnapshotProcessor routes snapshots to the configured backend.
type SnapshotProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

// NewSnapshotProcessor creates a new SnapshotProcessor. Only the dependency
// matching backend has to be non-nil.
func NewSnapshotProcessor(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, backend string) *SnapshotProcessor {
	return &SnapshotProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Backend returns the configured backend name.
func (p *SnapshotProcessor) Backend() string { return p.backend }

// Process sends one snapshot to the backend.
func (p *SnapshotProcessor) Process(ctx context.Context, s *models.IndicatorSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}

	start := time.Now()
	var err error
	switch {
	case p.backend == BackendKafka && p.pub != nil:
		err = p.pub.Publish(ctx, s)
	case p.backend == BackendStorage && p.store != nil:
		err = p.store.Store(ctx, s)
	default:
		err = fmt.Errorf("backend %q not configured", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process snapshot: %w", err)
	}

	p.metrics.RecordSnapshotSent(p.backend, s.Indicator)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch sends multiple snapshots in one backend call.
func (p *SnapshotProcessor) ProcessBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch {
	case p.backend == BackendKafka && p.pub != nil:
		err = p.pub.PublishBatch(ctx, snaps)
	case p.backend == BackendStorage && p.store != nil:
		err = p.store.StoreBatch(ctx, snaps)
	default:
		err = fmt.Errorf("backend %q not configured", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, s := range snaps {
		p.metrics.RecordSnapshotSent(p.backend, s.Indicator)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
