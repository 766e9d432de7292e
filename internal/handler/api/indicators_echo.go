package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/usecase"
	xhttp "UrbanPull/pkg/http"
	xlogger "UrbanPull/pkg/logger"
	"UrbanPull/pkg/queue"
	"UrbanPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// statusClientClosed is nginx's status for a client that went away mid-request.
const statusClientClosed = 499

// IndicatorQuerier is the use case behind the indicator endpoints.
type IndicatorQuerier interface {
	Get(ctx context.Context, ind *models.Indicator, refresh bool) (*models.IndicatorSnapshot, error)
	History(ctx context.Context, ind *models.Indicator, from, to time.Time, limit int) ([]*models.IndicatorSnapshot, error)
	Health(ctx context.Context) error
}

// IndicatorsEchoHandler serves descriptor lookups, history and the catalog.
type IndicatorsEchoHandler struct {
	logger  *xlogger.Logger
	query   IndicatorQuerier
	refresh queue.Enqueuer
}

func NewIndicatorsEchoHandler(logger *xlogger.Logger, query IndicatorQuerier) *IndicatorsEchoHandler {
	return &IndicatorsEchoHandler{logger: logger, query: query}
}

// SetRefreshQueue enables POST /api/indicator/refresh.
func (h *IndicatorsEchoHandler) SetRefreshQueue(q queue.Enqueuer) { h.refresh = q }

var _ xhttp.Handler = (*IndicatorsEchoHandler)(nil)

func (h *IndicatorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/indicator", h.Indicator)
	g.GET("/indicator/history", h.History)
	g.POST("/indicator/refresh", h.Refresh)
	g.GET("/catalog", h.Catalog)
	e.GET("/healthz", h.Health)
}

func (h *IndicatorsEchoHandler) Indicator(c echo.Context) error {
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind, err := descriptor(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	snap, err := h.query.Get(c.Request().Context(), ind, req.Refresh)
	if err != nil {
		return h.fail(c, "indicator", ind, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *IndicatorsEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind, err := descriptor(&req.IndicatorRequest)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	from, err := timeParam("from", req.From)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	to, err := timeParam("to", req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	snaps, err := h.query.History(c.Request().Context(), ind, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "history", ind, err)
	}
	return xhttp.ListResponse(c, snaps, int64(len(snaps)))
}

// Refresh queues a cache-bypassing fetch of the descriptor and answers 202
// with the job id.
func (h *IndicatorsEchoHandler) Refresh(c echo.Context) error {
	if h.refresh == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refresh queue disabled"))
	}
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ind, err := descriptor(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if err := ind.Validate(); err != nil {
		return h.fail(c, "refresh", ind, err)
	}

	id, err := h.refresh.Enqueue(c.Request().Context(), usecase.RefreshJobType, usecase.NewRefreshTask(ind))
	if err != nil {
		h.logger.Error("enqueue refresh failed", xlogger.String("series", models.SeriesKey(ind)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("refresh queue unavailable").WithError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{
		"job_id": id,
		"series": models.SeriesKey(ind),
	})
}

func (h *IndicatorsEchoHandler) Catalog(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"indicators":   models.Catalog(),
		"admin_levels": models.AdminLevels(),
	})
}

func (h *IndicatorsEchoHandler) Health(c echo.Context) error {
	if err := h.query.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("storage unhealthy").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// fail maps use case errors onto HTTP errors.
func (h *IndicatorsEchoHandler) fail(c echo.Context, op string, ind *models.Indicator, err error) error {
	var missing *models.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		return xhttp.AppErrorResponse(c, xhttp.MissingFieldsError(missing.Fields))
	case errors.Is(err, usecase.ErrHistoryUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(err.Error()))
	case errors.Is(err, context.Canceled):
		return c.NoContent(statusClientClosed)
	}
	h.logger.Error(op+" usecase error",
		xlogger.String("series", models.SeriesKey(ind)),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("upstream request failed").WithError(err))
}

func descriptor(req *models.IndicatorRequest) (*models.Indicator, error) {
	ind, err := req.Descriptor()
	switch {
	case errors.Is(err, models.ErrTaxonomyConflict):
		return nil, xhttp.BadRequestError("ERR_TAXONOMY_CONFLICT", models.ParamTaxonomy, "taxonomy and category must match when both are given")
	case err != nil:
		return nil, xhttp.BadRequestError("ERR_NUMERIC", models.ParamAdminLevel, "admin_level must be numeric")
	}
	return ind, nil
}

func timeParam(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseTime(v)
	if !ok {
		return time.Time{}, xhttp.BadRequestError("ERR_TIME", name, name+" must be RFC3339, YYYY-MM-DD or unix seconds")
	}
	return t, nil
}
