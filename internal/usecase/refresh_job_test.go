package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"UrbanPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTaskRoundTripKeepsLevelZero(t *testing.T) {
	ind := descriptor(models.IndicatorInvestmentGrade, models.AdminLevelCountry)
	ind.Period = "2017Q2"

	raw, err := json.Marshal(NewRefreshTask(ind))
	require.NoError(t, err)
	assert.JSONEq(t, `{"indicator":"r_g","admin_level":0,"period":"2017Q2"}`, string(raw))

	var task RefreshTask
	require.NoError(t, json.Unmarshal(raw, &task))
	assert.Equal(t, ind.Params(), task.Descriptor().Params())
}

func TestRefreshJobFetchesFreshAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	m := newRecMetrics()
	bc := &recBroadcaster{}
	job := NewRefreshJob(NewIndicatorQuery(src, nil, nil, m, nil), bc, m, nil)
	assert.Equal(t, RefreshJobType, job.Type())

	raw, _ := json.Marshal(NewRefreshTask(descriptor(models.IndicatorSaleRentPercent, models.AdminLevelCity)))
	require.NoError(t, job.Handle(ctx, raw))
	assert.Equal(t, 1, src.fresh)
	assert.Equal(t, 0, src.cached)
	assert.Equal(t, []string{models.IndicatorSaleRentPercent}, bc.got)
}

func TestRefreshJobDropsInvalidTasks(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	m := newRecMetrics()
	job := NewRefreshJob(NewIndicatorQuery(src, nil, nil, m, nil), nil, m, nil)

	require.NoError(t, job.Handle(ctx, json.RawMessage(`{"indicator":"s_p"}`)))
	require.NoError(t, job.Handle(ctx, json.RawMessage(`not json`)))
	assert.Empty(t, src.calls)
	assert.Equal(t, 1, m.errors["refresh_invalid"])
	assert.Equal(t, 1, m.errors["refresh_decode"])
}

func TestRefreshJobReturnsUpstreamErrorsForRetry(t *testing.T) {
	src := &fakeSource{fail: map[string]bool{models.IndicatorSaleRentPercent: true}}
	m := newRecMetrics()
	job := NewRefreshJob(NewIndicatorQuery(src, nil, nil, m, nil), nil, m, nil)

	raw, _ := json.Marshal(NewRefreshTask(descriptor(models.IndicatorSaleRentPercent, models.AdminLevelCity)))
	assert.Error(t, job.Handle(context.Background(), raw))
}
