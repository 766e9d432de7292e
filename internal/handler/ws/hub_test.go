package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsFilteredSnapshots(t *testing.T) {
	hub := NewHub(nil, time.Second)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/snapshots?indicator=r_g"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hub.Broadcast(&models.IndicatorSnapshot{ID: "1", Indicator: "s_p", Payload: json.RawMessage(`{}`), FetchedAt: at})
	hub.Broadcast(&models.IndicatorSnapshot{ID: "2", Indicator: "r_g", AdminLevel: models.AdminLevelCountry, Payload: json.RawMessage(`{"v":1}`), FetchedAt: at})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.IndicatorSnapshot
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, models.AdminLevelCountry, got.AdminLevel)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
