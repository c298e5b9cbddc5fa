package api

import (
	"errors"
	"strings"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/repository"
	apimetrics "RegimeTrader/internal/service/metrics"
	"RegimeTrader/internal/services/regime"
	"RegimeTrader/internal/usecase"
	xhttp "RegimeTrader/pkg/http"
	xlogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/util"

	"github.com/labstack/echo/v4"
)

// BacktestHandler serves backtests, regime snapshots and watchlist runs.
type BacktestHandler struct {
	logger *xlogger.Logger
	bt     *usecase.BacktestUseCase
	rg     *usecase.RegimeUseCase
	wl     *usecase.WatchlistUseCase
}

func NewBacktestHandler(logger *xlogger.Logger, bt *usecase.BacktestUseCase, rg *usecase.RegimeUseCase, wl *usecase.WatchlistUseCase) *BacktestHandler {
	apimetrics.Register()
	return &BacktestHandler{logger: logger, bt: bt, rg: rg, wl: wl}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/backtest", h.Backtest)
	g.GET("/regime", h.Regime)
	g.GET("/watchlist", h.Watchlist)
}

func (h *BacktestHandler) Backtest(c echo.Context) error {
	start := time.Now()
	var failed error
	defer func() { apimetrics.Observe("backtest", start, failed) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.bt.Run(c.Request().Context(), usecase.BacktestParams{
		Symbol:    req.Symbol,
		Days:      req.Days,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Fresh:     req.Fresh,
	})
	if err != nil {
		failed = err
		h.logger.Error("backtest usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestHandler) Regime(c echo.Context) error {
	start := time.Now()
	var failed error
	defer func() { apimetrics.Observe("regime", start, failed) }()

	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.rg.Snapshot(c.Request().Context(), usecase.RegimeParams{
		Symbol:    req.Symbol,
		Days:      req.Days,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
	})
	if err != nil {
		failed = err
		h.logger.Error("regime usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, snap)
}

func (h *BacktestHandler) Watchlist(c echo.Context) error {
	start := time.Now()
	var failed error
	defer func() { apimetrics.Observe("watchlist", start, failed) }()

	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := util.NormalizeSymbols(strings.Split(req.Symbols, ","))
	if len(symbols) == 0 && len(h.wl.Symbols()) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("no symbols given and the watchlist is empty"))
	}

	entries := h.wl.Run(c.Request().Context(), symbols, req.Days, domrepo.NormalizeTimeframe(req.TF))
	if len(entries) > 0 && len(usecase.RankByAlpha(entries)) == 0 {
		failed = errors.New("every watchlist run failed")
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

// toAppError maps use case failures onto HTTP statuses.
func toAppError(err error) error {
	switch {
	case errors.Is(err, regime.ErrInsufficientData):
		return xhttp.UnprocessableError("not enough history to train the regime model").WithError(err)
	case errors.Is(err, regime.ErrModelFit):
		return xhttp.UnprocessableError("regime model failed to fit").WithError(err)
	case errors.Is(err, repository.ErrSymbolNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, repository.ErrSourceUnavailable):
		return xhttp.UnavailableError("bar source unavailable, retry later").WithError(err)
	default:
		return xhttp.InternalError("backtest failed").WithError(err)
	}
}
