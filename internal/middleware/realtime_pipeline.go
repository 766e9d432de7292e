package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"UrbanPull/internal/domain/models"
	domrepo "UrbanPull/internal/domain/repository"
)

var (
	ErrNilSnapshot   = errors.New("snapshot is nil")
	ErrEmptyPayload  = errors.New("snapshot payload is empty")
	ErrNoFetchTime   = errors.New("snapshot fetch time is zero")
	ErrMissingSeries = errors.New("snapshot has no indicator")
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.IndicatorSnapshot) error
	ProcessBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error
}

// RealtimePipeline sits between fetchers and the snapshot processor.
// It validates, throttles per series, and buffers snapshots while the
// downstream backend is unavailable.
type RealtimePipeline struct {
	proc        Proc
	metrics     domrepo.Metrics
	minInterval time.Duration
	bufCh       chan *models.IndicatorSnapshot
	stopCh      chan struct{}
	done        chan struct{}
	started     bool
	mu          sync.Mutex
	lastSeen    map[string]time.Time // per-series last accepted fetch time
	maxBackoff  time.Duration
}

type PipelineOption func(*RealtimePipeline)

// WithMinInterval drops snapshots of a series arriving sooner than d after
// the previously accepted one.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		p.minInterval = d
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.IndicatorSnapshot, n)
		}
	}
}

// WithMaxBackoff caps the retry delay of the flush loop.
func WithMaxBackoff(d time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if d > 0 {
			p.maxBackoff = d
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:       proc,
		metrics:    metrics,
		bufCh:      make(chan *models.IndicatorSnapshot, 256),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
		maxBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered snapshots.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flushLoop(ctx)
}

func (p *RealtimePipeline) flushLoop(ctx context.Context) {
	defer close(p.done)
	const minBackoff = 50 * time.Millisecond
	backoff := minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case s := <-p.bufCh:
			if err := p.proc.Process(ctx, s); err != nil {
				p.metrics.RecordError("pipeline_flush")
				backoff *= 2
				if backoff > p.maxBackoff {
					backoff = p.maxBackoff
				}
				p.requeue(s)
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				case <-ctx.Done():
					return
				}
				continue
			}
			backoff = minBackoff
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		}
	}
}

// Stop stops the background flushing and waits for the loop to exit.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Buffered reports how many snapshots wait for a retry.
func (p *RealtimePipeline) Buffered() int {
	return len(p.bufCh)
}

// Process validates, throttles, and forwards one snapshot. On downstream
// failure the snapshot is buffered for retry and the error is returned.
func (p *RealtimePipeline) Process(ctx context.Context, s *models.IndicatorSnapshot) error {
	start := time.Now()
	if err := ValidateSnapshot(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.requeue(s)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch forwards the valid, unthrottled snapshots in one call.
// Invalid snapshots are skipped and counted.
func (p *RealtimePipeline) ProcessBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error {
	start := time.Now()
	accepted := make([]*models.IndicatorSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if err := ValidateSnapshot(s); err != nil {
			p.metrics.RecordError("pipeline_validate")
			continue
		}
		if !p.allow(s) {
			p.metrics.RecordError("pipeline_throttle")
			continue
		}
		accepted = append(accepted, s)
	}
	if len(accepted) == 0 {
		return nil
	}

	if err := p.proc.ProcessBatch(ctx, accepted); err != nil {
		p.metrics.RecordError("pipeline_process_batch")
		for _, s := range accepted {
			p.requeue(s)
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process_batch", time.Since(start).Seconds())
	return nil
}

func (p *RealtimePipeline) requeue(s *models.IndicatorSnapshot) {
	select {
	case p.bufCh <- s:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// ValidateSnapshot checks a snapshot is storable: descriptor fields, payload, fetch time.
func ValidateSnapshot(s *models.IndicatorSnapshot) error {
	switch {
	case s == nil:
		return ErrNilSnapshot
	case s.Indicator == "":
		return ErrMissingSeries
	case len(s.Payload) == 0:
		return ErrEmptyPayload
	case s.FetchedAt.IsZero():
		return ErrNoFetchTime
	}
	return nil
}

func (p *RealtimePipeline) allow(s *models.IndicatorSnapshot) bool {
	if p.minInterval <= 0 {
		return true
	}
	key := s.SeriesKey()

	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[key]
	if ok && s.FetchedAt.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[key] = s.FetchedAt
	return true
}
