package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesKey(t *testing.T) {
	ind := &Indicator{Indicator: "o_pu", Taxonomy: "P"}
	assert.Equal(t, "o_pu|-|P|", SeriesKey(ind))

	ind.SetAdminLevel(AdminLevelCountry)
	ind.Period = "2017Q2"
	assert.Equal(t, "o_pu|0|P|2017Q2", SeriesKey(ind))
}

func TestSnapshotDescriptorRoundTrip(t *testing.T) {
	raw := `{"id":"1","indicator":"r_g","admin_level":0,"period":"2017Q2","payload":{"v":1},"fetched_at":"2024-01-01T00:00:00Z","source":"uda"}`
	var s IndicatorSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, json.RawMessage(`{"v":1}`), s.Payload)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.FetchedAt)

	ind := s.Descriptor()
	assert.True(t, ind.Valid())
	assert.Equal(t, "r_g|0||2017Q2", s.SeriesKey())
	assert.Equal(t, "admin_level=0&indicator=r_g&period=2017Q2", ind.Params().Encode())
}
