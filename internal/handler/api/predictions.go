package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "StockPulse/internal/domain/models"
	"StockPulse/internal/service/metrics"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
)

// PredictionsHandler exposes the prediction coordinator over Echo.
type PredictionsHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	rl        *ratelimit.Limiter
}

func NewPredictionsHandler(logger *xlogger.Logger, predictor *usecase.Predictor) *PredictionsHandler {
	metrics.Register()
	return &PredictionsHandler{logger: logger, predictor: predictor, rl: ratelimit.New()}
}

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.POST("/outcome", h.Outcome)
	g.GET("/report", h.Report)
}

func (h *PredictionsHandler) Predict(c echo.Context) error {
	start := time.Now()
	endpoint := "predict"
	defer func() {
		metrics.PredictionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predict", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	res, err := h.predictor.Predict(c.Request().Context(), req)
	if err != nil {
		metrics.PredictionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("predict usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapPredictionError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) Outcome(c echo.Context) error {
	endpoint := "outcome"
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.predictor.RecordActual(c.Request().Context(), req.Symbol, req.Predicted, req.Actual); err != nil {
		metrics.PredictionErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("outcome usecase error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapPredictionError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *PredictionsHandler) Report(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.predictor.Report())
}

// mapPredictionError translates domain sentinels into HTTP app errors.
func mapPredictionError(err error) error {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoModelsAvailable):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidOutcome):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	default:
		return err
	}
}
