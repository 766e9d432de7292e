package uda

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "strings"
    "time"

    "UrbanPull/internal/domain/models"
    "UrbanPull/internal/service/metrics"
    "UrbanPull/internal/service/ratelimit"
    "UrbanPull/pkg/cache"
    xhttp "UrbanPull/pkg/http"
    "UrbanPull/pkg/logger"

    "github.com/google/uuid"
)

// Source is recorded on every snapshot this client produces.
const Source = "uda"

var (
    ErrNilDescriptor  = errors.New("uda: nil indicator descriptor")
    ErrInvalidPayload = errors.New("uda: response is not valid JSON")
)

// Config holds the connection settings for the indicator endpoint.
type Config struct {
    BaseURL       string
    IndicatorPath string
    APIKey        string
    AuthHeader    string
    AuthScheme    string
    UserAgent     string
    Timeout       time.Duration
    RetryAttempts int
    RetryBackoff  time.Duration
    CacheTTL      time.Duration
    RateCapacity  float64
    RateRefill    float64
}

// Client executes indicator descriptors against the uDA API.
type Client struct {
    cfg      Config
    endpoint string
    limitKey string
    http     *xhttp.Client
    cache    cache.Service
    limiter  *ratelimit.Limiter
    log      *logger.Logger
    now      func() time.Time
}

// NewClient builds a client. c and lim may be nil to disable caching or rate limiting.
func NewClient(cfg Config, c cache.Service, lim *ratelimit.Limiter, log *logger.Logger) (*Client, error) {
    if cfg.BaseURL == "" {
        return nil, fmt.Errorf("uda: base url is required")
    }
    base, err := url.Parse(cfg.BaseURL)
    if err != nil {
        return nil, fmt.Errorf("uda: parse base url: %w", err)
    }
    if cfg.AuthHeader == "" {
        cfg.AuthHeader = "Authorization"
    }
    if cfg.RetryAttempts <= 0 {
        cfg.RetryAttempts = 1
    }
    if cfg.RetryBackoff <= 0 {
        cfg.RetryBackoff = 200 * time.Millisecond
    }
    if cfg.Timeout <= 0 {
        cfg.Timeout = 20 * time.Second
    }
    if log == nil {
        log = logger.Nop()
    }
    metrics.Register()

    opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
    if cfg.UserAgent != "" {
        opts = append(opts, xhttp.WithUserAgent(cfg.UserAgent))
    }

    return &Client{
        cfg:      cfg,
        endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.IndicatorPath, "/"),
        limitKey: base.Host,
        http:     xhttp.NewClient(opts...),
        cache:    c,
        limiter:  lim,
        log:      log.With(logger.String("component", "uda_client")),
        now:      time.Now,
    }, nil
}

// Fetch returns the snapshot for ind, serving from cache when possible.
// Invalid descriptors are rejected before any I/O.
func (c *Client) Fetch(ctx context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
    return c.fetch(ctx, ind, true)
}

// FetchFresh skips the cache read but still refreshes the cached entry.
func (c *Client) FetchFresh(ctx context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
    return c.fetch(ctx, ind, false)
}

func (c *Client) fetch(ctx context.Context, ind *models.Indicator, useCache bool) (*models.IndicatorSnapshot, error) {
    if ind == nil {
        return nil, ErrNilDescriptor
    }
    if err := ind.Validate(); err != nil {
        return nil, err
    }

    params := ind.Params()
    key := cacheKey(params)

    if useCache && c.cache != nil {
        var cached models.IndicatorSnapshot
        if err := c.cache.Get(ctx, key, &cached); err == nil {
            metrics.CacheLookups.WithLabelValues("hit").Inc()
            return &cached, nil
        } else if !errors.Is(err, cache.ErrCacheMiss) {
            c.log.Warn("cache read failed", logger.String("key", key), logger.Error(err))
        }
        metrics.CacheLookups.WithLabelValues("miss").Inc()
    }

    start := c.now()
    body, err := c.getWithRetry(ctx, params)
    metrics.UpstreamLatency.WithLabelValues(ind.Indicator).Observe(time.Since(start).Seconds())
    if err != nil {
        metrics.UpstreamErrors.WithLabelValues(ind.Indicator, reason(err)).Inc()
        return nil, err
    }
    if !json.Valid(body) {
        metrics.UpstreamErrors.WithLabelValues(ind.Indicator, "payload").Inc()
        return nil, ErrInvalidPayload
    }

    level, _ := ind.AdminLevelValue()
    snap := &models.IndicatorSnapshot{
        ID:         uuid.NewString(),
        Indicator:  ind.Indicator,
        AdminLevel: level,
        Taxonomy:   ind.Taxonomy,
        Period:     ind.Period,
        Payload:    json.RawMessage(body),
        FetchedAt:  c.now().UTC(),
        Source:     Source,
    }

    if c.cache != nil {
        if err := c.cache.Set(ctx, key, snap, c.cfg.CacheTTL); err != nil {
            c.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
        }
    }
    return snap, nil
}

func (c *Client) getWithRetry(ctx context.Context, params url.Values) ([]byte, error) {
    var err error
    for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
        var body []byte
        body, err = c.get(ctx, params)
        if err == nil {
            return body, nil
        }
        if !retryable(err) || attempt == c.cfg.RetryAttempts {
            break
        }
        c.log.Debug("retrying uda request",
            logger.Int("attempt", attempt),
            logger.Error(err),
        )
        select {
        case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
        case <-ctx.Done():
            return nil, ctx.Err()
        }
    }
    return nil, fmt.Errorf("uda get %s: %w", c.endpoint, err)
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
    if c.limiter != nil {
        if err := c.limiter.Wait(ctx, c.limitKey, c.cfg.RateCapacity, c.cfg.RateRefill); err != nil {
            return nil, err
        }
    }

    headers := map[string]string{"Accept": "application/json"}
    if c.cfg.APIKey != "" {
        headers[c.cfg.AuthHeader] = strings.TrimSpace(c.cfg.AuthScheme + " " + c.cfg.APIKey)
    }

    var body []byte
    err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
        Method:      xhttp.MethodGet,
        URL:         c.endpoint,
        Headers:     headers,
        QueryParams: params,
    }, &body)
    return body, err
}

func retryable(err error) bool {
    if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
        return false
    }
    var se *xhttp.StatusError
    if errors.As(err, &se) {
        return se.Temporary()
    }
    return true
}

func reason(err error) string {
    var se *xhttp.StatusError
    switch {
    case errors.As(err, &se):
        return fmt.Sprintf("%dxx", se.Code/100)
    case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
        return "canceled"
    default:
        return "transport"
    }
}

func cacheKey(params url.Values) string {
    // Encode sorts keys, so equal descriptors share an entry.
    return cache.GenerateKeyWithParams("uda", "indicator", cache.HashKey(params.Encode()))
}
