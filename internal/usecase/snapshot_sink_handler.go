package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"UrbanPull/internal/domain/models"
	domrepo "UrbanPull/internal/domain/repository"
	mid "UrbanPull/internal/middleware"
	pkgkafka "UrbanPull/pkg/kafka"
)

// SnapshotSinkHandler consumes published snapshots and writes them to storage.
type SnapshotSinkHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewSnapshotSinkHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *SnapshotSinkHandler {
	return &SnapshotSinkHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *SnapshotSinkHandler) Topic() string { return h.topic }

func (h *SnapshotSinkHandler) Handle(ctx context.Context, b []byte) error {
	var s models.IndicatorSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("sink_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if err := mid.ValidateSnapshot(&s); err != nil {
		h.metrics.RecordError("sink_validate")
		return err
	}
	h.metrics.RecordLatency("sink_lag", time.Since(s.FetchedAt).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("sink_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("sink_store")
		return err
	}
	h.metrics.RecordSnapshotSent("sink", s.Indicator)
	return nil
}

var _ pkgkafka.MessageHandler = (*SnapshotSinkHandler)(nil)
