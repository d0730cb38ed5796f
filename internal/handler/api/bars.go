package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/metrics"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
	"StockPulse/pkg/util"
)

// BarsHandler serves historical bars.
type BarsHandler struct {
	logger *xlogger.Logger
	bars   *usecase.BarsUseCase
}

func NewBarsHandler(logger *xlogger.Logger, bars *usecase.BarsUseCase) *BarsHandler {
	metrics.Register()
	return &BarsHandler{logger: logger, bars: bars}
}

func (h *BarsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/bars", h.GetBars)
}

func (h *BarsHandler) GetBars(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues("bars").Observe(time.Since(start).Seconds())
	}()

	req := &models.BarsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// An explicit from/to pair selects a range instead of the latest window.
	if fromRaw := c.QueryParam("from"); fromRaw != "" {
		from, ok := util.ParseTime(fromRaw)
		if !ok {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid from timestamp %q", fromRaw))
		}
		to := util.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())

		res, err := h.bars.GetRange(c.Request().Context(), req.Symbol, from, to,
			domrepo.NormalizeTimeframe(req.Timeframe))
		if err != nil {
			metrics.PredictionErrors.WithLabelValues("bars").Inc()
			h.logger.Error("bars range error",
				xlogger.String("symbol", req.Symbol),
				xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, res)
	}

	res, err := h.bars.GetLatest(c.Request().Context(), req)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues("bars").Inc()
		h.logger.Error("bars usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}
