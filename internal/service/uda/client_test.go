package uda

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    "UrbanPull/internal/domain/models"
    "UrbanPull/pkg/cache"
    xhttp "UrbanPull/pkg/http"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, c cache.Service) *Client {
    t.Helper()
    cl, err := NewClient(Config{
        BaseURL:       srv.URL + "/api/v1/",
        IndicatorPath: "indicator",
        APIKey:        "secret",
        AuthHeader:    "Authorization",
        AuthScheme:    "Token",
        RetryAttempts: 3,
        RetryBackoff:  time.Millisecond,
        CacheTTL:      time.Minute,
    }, c, nil, nil)
    require.NoError(t, err)
    return cl
}

func descriptor(code string, level models.AdminLevel) *models.Indicator {
    ind := &models.Indicator{Indicator: code}
    ind.SetAdminLevel(level)
    return ind
}

func TestFetchRejectsInvalidDescriptorWithoutIO(t *testing.T) {
    var hits int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        atomic.AddInt32(&hits, 1)
    }))
    defer srv.Close()
    cl := newTestClient(t, srv, nil)

    _, err := cl.Fetch(context.Background(), &models.Indicator{Indicator: "s_p"})
    require.Error(t, err)
    assert.True(t, errors.Is(err, models.ErrMissingMandatoryField))

    _, err = cl.Fetch(context.Background(), nil)
    assert.ErrorIs(t, err, ErrNilDescriptor)
    assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFetchSendsParamsAndAuth(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "/api/v1/indicator", r.URL.Path)
        assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
        q := r.URL.Query()
        assert.Equal(t, "r_g", q.Get("indicator"))
        assert.Equal(t, "0", q.Get("admin_level"))
        assert.Equal(t, "2017Q2", q.Get("period"))
        _, hasTax := q["taxonomy"]
        assert.False(t, hasTax)
        _, hasCat := q["category"]
        assert.False(t, hasCat)
        _, _ = w.Write([]byte(`{"results":[{"value":3}]}`))
    }))
    defer srv.Close()
    cl := newTestClient(t, srv, nil)

    ind := descriptor(models.IndicatorInvestmentGrade, models.AdminLevelCountry)
    ind.Period = "2017Q2"
    snap, err := cl.Fetch(context.Background(), ind)
    require.NoError(t, err)

    assert.NotEmpty(t, snap.ID)
    assert.Equal(t, "r_g", snap.Indicator)
    assert.Equal(t, models.AdminLevelCountry, snap.AdminLevel)
    assert.Equal(t, "2017Q2", snap.Period)
    assert.Equal(t, Source, snap.Source)
    assert.JSONEq(t, `{"results":[{"value":3}]}`, string(snap.Payload))
}

func TestFetchRetriesServerErrors(t *testing.T) {
    var hits int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if atomic.AddInt32(&hits, 1) < 3 {
            w.WriteHeader(http.StatusBadGateway)
            return
        }
        _, _ = w.Write([]byte(`[]`))
    }))
    defer srv.Close()
    cl := newTestClient(t, srv, nil)

    _, err := cl.Fetch(context.Background(), descriptor(models.IndicatorSaleRentPercent, models.AdminLevelCity))
    require.NoError(t, err)
    assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
    var hits int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        atomic.AddInt32(&hits, 1)
        w.WriteHeader(http.StatusBadRequest)
        _, _ = w.Write([]byte(`{"detail":"unknown indicator"}`))
    }))
    defer srv.Close()
    cl := newTestClient(t, srv, nil)

    _, err := cl.Fetch(context.Background(), descriptor("zz", models.AdminLevelCity))
    require.Error(t, err)

    var se *xhttp.StatusError
    require.True(t, errors.As(err, &se))
    assert.Equal(t, http.StatusBadRequest, se.Code)
    assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchRejectsNonJSONPayload(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`<html>maintenance</html>`))
    }))
    defer srv.Close()
    cl := newTestClient(t, srv, nil)

    _, err := cl.Fetch(context.Background(), descriptor(models.IndicatorSaleRentPercent, models.AdminLevelCity))
    assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFetchServesFromCache(t *testing.T) {
    var hits int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        atomic.AddInt32(&hits, 1)
        _, _ = w.Write([]byte(`{"v":1}`))
    }))
    defer srv.Close()

    mc := cache.NewMemoryCache()
    defer mc.Close()
    cl := newTestClient(t, srv, mc)
    ctx := context.Background()
    ind := descriptor(models.IndicatorSaleRentPercent, models.AdminLevelDistrict)

    first, err := cl.Fetch(ctx, ind)
    require.NoError(t, err)
    second, err := cl.Fetch(ctx, ind)
    require.NoError(t, err)
    assert.Equal(t, first.ID, second.ID)
    assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

    fresh, err := cl.FetchFresh(ctx, ind)
    require.NoError(t, err)
    assert.NotEqual(t, first.ID, fresh.ID)
    assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
