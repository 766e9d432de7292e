package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/usecase"
	xhttp "UrbanPull/pkg/http"
	xlogger "UrbanPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuery struct {
	got     *models.Indicator
	refresh bool
	limit   int
	err     error
}

func (f *fakeQuery) Get(_ context.Context, ind *models.Indicator, refresh bool) (*models.IndicatorSnapshot, error) {
	f.got, f.refresh = ind, refresh
	if f.err != nil {
		return nil, f.err
	}
	level, _ := ind.AdminLevelValue()
	return &models.IndicatorSnapshot{
		ID:         "snap-1",
		Indicator:  ind.Indicator,
		AdminLevel: level,
		Taxonomy:   ind.Taxonomy,
		Period:     ind.Period,
		Payload:    json.RawMessage(`{"value":1}`),
		FetchedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:     "uda",
	}, nil
}

func (f *fakeQuery) History(_ context.Context, ind *models.Indicator, _, _ time.Time, limit int) ([]*models.IndicatorSnapshot, error) {
	f.got, f.limit = ind, limit
	if f.err != nil {
		return nil, f.err
	}
	return []*models.IndicatorSnapshot{}, nil
}

func (f *fakeQuery) Health(context.Context) error { return f.err }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, q *fakeQuery, target string) (int, envelope) {
	t.Helper()
	e := echo.New()
	NewIndicatorsEchoHandler(xlogger.Nop(), q).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestIndicatorCountryLevelIsValid(t *testing.T) {
	q := &fakeQuery{}
	code, env := serve(t, q, "/api/indicator?indicator=r_g&admin_level=0&period=2017Q2")

	require.Equal(t, http.StatusOK, code)
	level, ok := q.got.AdminLevelValue()
	assert.True(t, ok)
	assert.Equal(t, models.AdminLevelCountry, level)
	assert.Equal(t, "2017Q2", q.got.Period)
	assert.False(t, q.refresh)

	var snap models.IndicatorSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "r_g", snap.Indicator)
}

func TestIndicatorMissingFields(t *testing.T) {
	q := &fakeQuery{}
	code, env := serve(t, q, "/api/indicator?period=2017Q2")

	require.Equal(t, http.StatusBadRequest, code)
	var errs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	fields := []string{}
	for _, e := range errs {
		assert.Equal(t, "ERR_REQUIRED", e.Code)
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"indicator", "admin_level"}, fields)
	assert.Nil(t, q.got)
}

func TestIndicatorCategoryAlias(t *testing.T) {
	q := &fakeQuery{}
	code, _ := serve(t, q, "/api/indicator?indicator=o_pu&admin_level=4&category=P&refresh=true")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "P", q.got.Taxonomy)
	assert.True(t, q.refresh)

	code, env := serve(t, &fakeQuery{}, "/api/indicator?indicator=o_pu&admin_level=4&taxonomy=P&category=Q")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_TAXONOMY_CONFLICT")
}

func TestIndicatorUpstreamFailure(t *testing.T) {
	code, env := serve(t, &fakeQuery{err: errors.New("boom")}, "/api/indicator?indicator=s_p&admin_level=3")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, string(env.Data), "ERR_UPSTREAM")
}

func TestHistory(t *testing.T) {
	q := &fakeQuery{}
	code, _ := serve(t, q, "/api/indicator/history?indicator=s_p&admin_level=3&from=2024-01-01")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, q.limit)

	code, _ = serve(t, &fakeQuery{}, "/api/indicator/history?indicator=s_p&admin_level=3&from=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := serve(t, &fakeQuery{err: usecase.ErrHistoryUnavailable}, "/api/indicator/history?indicator=s_p&admin_level=3")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(env.Data), "ERR_UNAVAILABLE")
}

func TestCatalog(t *testing.T) {
	code, env := serve(t, &fakeQuery{}, "/api/catalog")
	require.Equal(t, http.StatusOK, code)

	var body struct {
		Indicators  []models.IndicatorInfo `json:"indicators"`
		AdminLevels []json.RawMessage      `json:"admin_levels"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Indicators, 17)
	assert.Len(t, body.AdminLevels, 6)
}

type fakeQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (f *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.msgType, f.payload = msgType, payload
	return "job-1", f.err
}

func refresh(t *testing.T, q *fakeQueue, target string) (int, envelope) {
	t.Helper()
	e := echo.New()
	h := NewIndicatorsEchoHandler(xlogger.Nop(), &fakeQuery{})
	if q != nil {
		h.SetRefreshQueue(q)
	}
	h.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestRefreshQueuesTask(t *testing.T) {
	q := &fakeQueue{}
	code, env := refresh(t, q, "/api/indicator/refresh?indicator=r_g&admin_level=0")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, usecase.RefreshJobType, q.msgType)

	task, ok := q.payload.(usecase.RefreshTask)
	require.True(t, ok)
	require.NotNil(t, task.AdminLevel)
	assert.Equal(t, 0, *task.AdminLevel)
	assert.Contains(t, string(env.Data), "job-1")
}

func TestRefreshRejectsAndDegrades(t *testing.T) {
	q := &fakeQueue{}
	code, _ := refresh(t, q, "/api/indicator/refresh?indicator=r_g")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, q.msgType)

	code, _ = refresh(t, nil, "/api/indicator/refresh?indicator=r_g&admin_level=0")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = refresh(t, &fakeQueue{err: errors.New("redis down")}, "/api/indicator/refresh?indicator=r_g&admin_level=0")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
