package api

import (
	"errors"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	apimetrics "RegimeTrader/internal/service/metrics"
	"RegimeTrader/internal/usecase"
	xhttp "RegimeTrader/pkg/http"
	xlogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/queue"

	"github.com/labstack/echo/v4"
)

// JobsHandler accepts asynchronous backtests and reports their status.
type JobsHandler struct {
	logger *xlogger.Logger
	jobs   *usecase.JobUseCase
}

func NewJobsHandler(logger *xlogger.Logger, jobs *usecase.JobUseCase) *JobsHandler {
	apimetrics.Register()
	return &JobsHandler{logger: logger, jobs: jobs}
}

func (h *JobsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/jobs")
	g.POST("/backtest", h.Submit)
	g.GET("/:id", h.Get)
}

func (h *JobsHandler) Submit(c echo.Context) error {
	start := time.Now()
	var failed error
	defer func() { apimetrics.Observe("jobs_submit", start, failed) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	job, err := h.jobs.Submit(c.Request().Context(), usecase.BacktestParams{
		Symbol:    req.Symbol,
		Days:      req.Days,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Fresh:     req.Fresh,
	})
	if err != nil {
		failed = err
		h.logger.Error("job submit error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		if errors.Is(err, queue.ErrQueueFull) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("job queue is full, retry later").WithError(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not queue backtest").WithError(err))
	}
	return xhttp.AcceptedResponse(c, "/api/jobs/"+job.ID, job)
}

func (h *JobsHandler) Get(c echo.Context) error {
	start := time.Now()
	var failed error
	defer func() { apimetrics.Observe("jobs_get", start, failed) }()

	job, err := h.jobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrJobNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		failed = err
		return xhttp.AppErrorResponse(c, xhttp.InternalError("job lookup failed").WithError(err))
	}
	if !job.Finished() {
		c.Response().Header().Set("Retry-After", "5")
	}
	return xhttp.SuccessResponse(c, job)
}
