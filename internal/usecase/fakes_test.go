package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"UrbanPull/internal/domain/models"
)

type fakeSource struct {
	mu     sync.Mutex
	fail   map[string]bool
	calls  []string
	fresh  int
	cached int
}

func (f *fakeSource) fetch(ind *models.Indicator) (*models.IndicatorSnapshot, error) {
	if err := ind.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ind.Indicator)
	if f.fail[ind.Indicator] {
		return nil, errors.New("upstream 503")
	}
	level, _ := ind.AdminLevelValue()
	return &models.IndicatorSnapshot{
		ID:         ind.Indicator + "-" + time.Now().String(),
		Indicator:  ind.Indicator,
		AdminLevel: level,
		Taxonomy:   ind.Taxonomy,
		Period:     ind.Period,
		Payload:    json.RawMessage(`{"ok":true}`),
		FetchedAt:  time.Now().UTC(),
		Source:     "fake",
	}, nil
}

func (f *fakeSource) Fetch(_ context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
	f.mu.Lock()
	f.cached++
	f.mu.Unlock()
	return f.fetch(ind)
}

func (f *fakeSource) FetchFresh(_ context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
	f.mu.Lock()
	f.fresh++
	f.mu.Unlock()
	return f.fetch(ind)
}

type memStorage struct {
	mu    sync.Mutex
	snaps []*models.IndicatorSnapshot
	err   error
}

func (m *memStorage) Init(context.Context) error { return nil }

func (m *memStorage) Store(ctx context.Context, s *models.IndicatorSnapshot) error {
	return m.StoreBatch(ctx, []*models.IndicatorSnapshot{s})
}

func (m *memStorage) StoreBatch(_ context.Context, snaps []*models.IndicatorSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, snaps...)
	return nil
}

func (m *memStorage) Query(_ context.Context, ind *models.Indicator, _, _ time.Time, limit int) ([]*models.IndicatorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.SeriesKey(ind)
	var out []*models.IndicatorSnapshot
	for i := len(m.snaps) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.snaps[i].SeriesKey() == key {
			out = append(out, m.snaps[i])
		}
	}
	return out, nil
}

func (m *memStorage) Health(context.Context) error { return nil }
func (m *memStorage) Close() error                 { return nil }

func (m *memStorage) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

type recPublisher struct {
	mu   sync.Mutex
	sent []*models.IndicatorSnapshot
}

func (p *recPublisher) Publish(ctx context.Context, s *models.IndicatorSnapshot) error {
	return p.PublishBatch(ctx, []*models.IndicatorSnapshot{s})
}

func (p *recPublisher) PublishBatch(_ context.Context, snaps []*models.IndicatorSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, snaps...)
	return nil
}

func (p *recPublisher) Close() error { return nil }

type recMetrics struct {
	mu     sync.Mutex
	sent   map[string]int
	errors map[string]int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{sent: map[string]int{}, errors: map[string]int{}}
}

func (m *recMetrics) RecordSnapshotSent(backend, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend]++
}

func (m *recMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recMetrics) RecordFetch(string, float64)   {}
func (m *recMetrics) RecordLatency(string, float64) {}

type recBroadcaster struct {
	mu  sync.Mutex
	got []string
}

func (b *recBroadcaster) Broadcast(s *models.IndicatorSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, s.Indicator)
}

func descriptor(code string, level models.AdminLevel) *models.Indicator {
	ind := &models.Indicator{Indicator: code}
	ind.SetAdminLevel(level)
	return ind
}
