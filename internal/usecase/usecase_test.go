package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"
	mid "UrbanPull/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotProcessorRoutesByBackend(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	snap, err := src.Fetch(ctx, descriptor(models.IndicatorSaleRentPercent, models.AdminLevelCity))
	require.NoError(t, err)

	store := &memStorage{}
	pub := &recPublisher{}
	m := newRecMetrics()

	require.NoError(t, NewSnapshotProcessor(pub, store, m, BackendStorage).Process(ctx, snap))
	require.NoError(t, NewSnapshotProcessor(pub, store, m, BackendKafka).ProcessBatch(ctx, []*models.IndicatorSnapshot{snap, snap}))

	assert.Equal(t, 1, store.len())
	assert.Len(t, pub.sent, 2)
	assert.Equal(t, 1, m.sent[BackendStorage])
	assert.Equal(t, 2, m.sent[BackendKafka])

	err = NewSnapshotProcessor(nil, nil, m, BackendKafka).Process(ctx, snap)
	assert.Error(t, err)
	assert.Equal(t, 1, m.errors["process"])
}

func TestIndicatorQueryGetPersistsThroughPipeline(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	store := &memStorage{}
	m := newRecMetrics()
	pipe := mid.NewRealtimePipeline(NewSnapshotProcessor(nil, store, m, BackendStorage), m)
	q := NewIndicatorQuery(src, store, pipe, m, nil)

	ind := descriptor(models.IndicatorInvestmentGrade, models.AdminLevelCountry)
	ind.Period = "2017Q2"

	snap, err := q.Get(ctx, ind, false)
	require.NoError(t, err)
	assert.Equal(t, models.AdminLevelCountry, snap.AdminLevel)
	assert.Equal(t, 1, src.cached)

	_, err = q.Get(ctx, ind, true)
	require.NoError(t, err)
	assert.Equal(t, 1, src.fresh)

	hist, err := q.History(ctx, ind, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestIndicatorQueryRejectsIncompleteDescriptor(t *testing.T) {
	q := NewIndicatorQuery(&fakeSource{}, &memStorage{}, nil, newRecMetrics(), nil)

	_, err := q.Get(context.Background(), &models.Indicator{Indicator: "s_p"}, false)
	assert.ErrorIs(t, err, models.ErrMissingMandatoryField)

	_, err = q.History(context.Background(), &models.Indicator{}, time.Time{}, time.Time{}, 1)
	var missing *models.MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"indicator", "admin_level"}, missing.Fields)
}

func TestIndicatorQueryHistoryWithoutStorage(t *testing.T) {
	q := NewIndicatorQuery(&fakeSource{}, nil, nil, newRecMetrics(), nil)
	_, err := q.History(context.Background(), descriptor("s_p", models.AdminLevelCity), time.Time{}, time.Time{}, 1)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestCollectorSkipsFailingDescriptors(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{fail: map[string]bool{"o_pu": true}}
	store := &memStorage{}
	m := newRecMetrics()
	b := &recBroadcaster{}
	proc := NewSnapshotProcessor(nil, store, m, BackendStorage)

	c := NewIndicatorCollector(src, []*models.Indicator{
		descriptor("s_p", models.AdminLevelCity),
		descriptor("o_pu", models.AdminLevelDistrict),
		descriptor("r_g", models.AdminLevelCountry),
	}, time.Hour, nil, proc, b, m, nil)

	snaps := c.CollectOnce(ctx)
	assert.Len(t, snaps, 2)
	assert.Equal(t, 2, store.len())
	assert.Equal(t, []string{"s_p", "r_g"}, b.got)
	assert.Equal(t, 1, m.errors["collect_fetch"])
	assert.Equal(t, 3, src.fresh)
}

func TestCollectorStartAndShutdown(t *testing.T) {
	src := &fakeSource{}
	store := &memStorage{}
	m := newRecMetrics()
	pipe := mid.NewRealtimePipeline(NewSnapshotProcessor(nil, store, m, BackendStorage), m)
	c := NewIndicatorCollector(src, []*models.Indicator{descriptor("s_p", models.AdminLevelCity)}, time.Hour, pipe, nil, nil, m, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return store.len() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
}

func TestSnapshotSinkHandler(t *testing.T) {
	store := &memStorage{}
	m := newRecMetrics()
	h := NewSnapshotSinkHandler("uda.snapshots", store, m)
	assert.Equal(t, "uda.snapshots", h.Topic())

	src := &fakeSource{}
	snap, err := src.Fetch(context.Background(), descriptor("s_p", models.AdminLevelCity))
	require.NoError(t, err)
	body, err := json.Marshal(snap)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), body))
	assert.Equal(t, 1, store.len())
	assert.Equal(t, 1, m.sent["sink"])

	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{"indicator":"s_p","fetched_at":"2024-01-01T00:00:00Z"}`)), mid.ErrEmptyPayload)
}
