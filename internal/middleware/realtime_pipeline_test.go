package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordSnapshotSent(string, string) {}
func (m *nopMetrics) RecordFetch(string, float64)       {}
func (m *nopMetrics) RecordLatency(string, float64)     {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *nopMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeProc struct {
	mu      sync.Mutex
	failFor int
	got     []*models.IndicatorSnapshot
}

func (f *fakeProc) Process(_ context.Context, s *models.IndicatorSnapshot) error {
	return f.ProcessBatch(context.Background(), []*models.IndicatorSnapshot{s})
}

func (f *fakeProc) ProcessBatch(_ context.Context, snaps []*models.IndicatorSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor > 0 {
		f.failFor--
		return errors.New("backend down")
	}
	f.got = append(f.got, snaps...)
	return nil
}

func (f *fakeProc) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func snap(indicator string, at time.Time) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		ID:         indicator + at.String(),
		Indicator:  indicator,
		AdminLevel: models.AdminLevelCity,
		Payload:    json.RawMessage(`{}`),
		FetchedAt:  at,
	}
}

func TestValidateSnapshot(t *testing.T) {
	now := time.Now()
	assert.ErrorIs(t, ValidateSnapshot(nil), ErrNilSnapshot)
	assert.ErrorIs(t, ValidateSnapshot(&models.IndicatorSnapshot{FetchedAt: now}), ErrMissingSeries)
	assert.ErrorIs(t, ValidateSnapshot(&models.IndicatorSnapshot{Indicator: "s_p", FetchedAt: now}), ErrEmptyPayload)
	assert.ErrorIs(t, ValidateSnapshot(&models.IndicatorSnapshot{Indicator: "s_p", Payload: []byte(`1`)}), ErrNoFetchTime)
	assert.NoError(t, ValidateSnapshot(snap("s_p", now)))
}

func TestPipelineThrottlesPerSeries(t *testing.T) {
	proc := &fakeProc{}
	m := &nopMetrics{}
	p := NewRealtimePipeline(proc, m, WithMinInterval(time.Minute))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, p.Process(ctx, snap("s_p", now)))
	require.NoError(t, p.Process(ctx, snap("s_p", now.Add(time.Second))))
	require.NoError(t, p.Process(ctx, snap("o_pu", now.Add(time.Second))))
	require.NoError(t, p.Process(ctx, snap("s_p", now.Add(2*time.Minute))))

	assert.Equal(t, 3, proc.received())
	assert.Equal(t, 1, m.count("pipeline_throttle"))
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &fakeProc{failFor: 1}
	m := &nopMetrics{}
	p := NewRealtimePipeline(proc, m, WithMaxBackoff(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.ProcessBatch(ctx, []*models.IndicatorSnapshot{snap("s_p", time.Now()), snap("o_pu", time.Now()), nil})
	require.Error(t, err)
	assert.Equal(t, 2, p.Buffered())
	assert.Equal(t, 1, m.count("pipeline_validate"))

	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool { return proc.received() == 2 }, time.Second, 5*time.Millisecond)
}
