package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "urbanpull.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func snapshot(id, indicator string, level models.AdminLevel, period string, at time.Time) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		ID:         id,
		Indicator:  indicator,
		AdminLevel: level,
		Period:     period,
		Payload:    json.RawMessage(`{"id":"` + id + `"}`),
		FetchedAt:  at,
		Source:     "uda",
	}
}

func TestSQLiteStoreAndQuery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.StoreBatch(ctx, []*models.IndicatorSnapshot{
		snapshot("a", "r_g", models.AdminLevelCountry, "2017Q2", base),
		snapshot("b", "r_g", models.AdminLevelCountry, "2017Q2", base.Add(time.Hour)),
		snapshot("c", "r_g", models.AdminLevelCountry, "2017Q3", base),
		snapshot("d", "r_g", models.AdminLevelCity, "2017Q2", base),
	}))

	ind := &models.Indicator{Indicator: "r_g", Period: "2017Q2"}
	ind.SetAdminLevel(models.AdminLevelCountry)

	got, err := s.Query(ctx, ind, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, models.AdminLevelCountry, got[0].AdminLevel)
	assert.JSONEq(t, `{"id":"b"}`, string(got[0].Payload))
	assert.True(t, got[0].FetchedAt.Equal(base.Add(time.Hour)))

	got, err = s.Query(ctx, ind, base.Add(30*time.Minute), time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSQLiteStoreUpsertsByID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := snapshot("x", "s_p", models.AdminLevelCity, "", at)
	require.NoError(t, s.Store(ctx, first))
	first.Payload = json.RawMessage(`{"v":2}`)
	require.NoError(t, s.Store(ctx, first))

	ind := &models.Indicator{Indicator: "s_p"}
	ind.SetAdminLevel(models.AdminLevelCity)
	got, err := s.Query(ctx, ind, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"v":2}`, string(got[0].Payload))
}

func TestSQLiteQueryRejectsIncompleteDescriptor(t *testing.T) {
	s := newStore(t)
	_, err := s.Query(context.Background(), &models.Indicator{Indicator: "s_p"}, time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, models.ErrMissingMandatoryField)
}
