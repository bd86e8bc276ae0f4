package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "SignalPilot/internal/domain/models"
	"SignalPilot/internal/middleware"
	"SignalPilot/internal/service/ratelimit"
	"SignalPilot/internal/services/extractor"
	"SignalPilot/internal/usecase"
	xhttp "SignalPilot/pkg/http"
	xlogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/util"
)

// MessageIngester accepts raw chat messages, usually the ingest pipeline.
type MessageIngester interface {
	Process(ctx context.Context, msg *models.RawMessage) error
}

// StrategyEchoHandler serves signal, analysis, simulation and live strategy routes.
type StrategyEchoHandler struct {
	logger   *xlogger.Logger
	ingest   MessageIngester
	analysis *usecase.MarketAnalysis
	sims     *usecase.SimulationService
	live     *usecase.LiveTrader
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

// NewStrategyEchoHandler wires the handler. ingest, live and limiter may be nil.
func NewStrategyEchoHandler(
	logger *xlogger.Logger,
	ingest MessageIngester,
	analysis *usecase.MarketAnalysis,
	sims *usecase.SimulationService,
	live *usecase.LiveTrader,
	limiter *ratelimit.Limiter,
) *StrategyEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StrategyEchoHandler{
		logger:   logger,
		ingest:   ingest,
		analysis: analysis,
		sims:     sims,
		live:     live,
		limiter:  limiter,
		now:      time.Now,
	}
}

func (h *StrategyEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/extract", h.Extract)
	g.POST("/signals", h.IngestSignal, h.throttle("signals"))
	g.GET("/signals", h.Signals)
	g.GET("/conditions", h.Conditions)
	g.GET("/hours", h.Hours)
	g.GET("/overview", h.Overview)
	g.POST("/simulate", h.Simulate, h.throttle("simulate"))
	g.POST("/simulations", h.EnqueueSimulation, h.throttle("simulate"))
	g.GET("/simulations/:id", h.Simulation)
	g.GET("/strategy", h.Strategy)
	g.GET("/stats", h.Stats)
}

// throttle limits write routes per client address.
func (h *StrategyEchoHandler) throttle(route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":"+route) {
				h.logger.Warn("rate limited", xlogger.String("route", route), xlogger.String("remote", c.RealIP()))
				return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
			}
			return next(c)
		}
	}
}

func (h *StrategyEchoHandler) Extract(c echo.Context) error {
	req := &models.ExtractRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, ok := extractor.Extract(req.Text)
	if !ok {
		return xhttp.SuccessResponse(c, models.ExtractResult{})
	}
	return xhttp.SuccessResponse(c, models.ExtractResult{
		Matched: true,
		Pattern: extractor.PatternName(req.Text),
		Result:  m.Result,
		Attempt: m.Attempt,
		Asset:   m.Asset,
	})
}

func (h *StrategyEchoHandler) IngestSignal(c echo.Context) error {
	if h.ingest == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ingestion disabled"))
	}
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	msg := &models.RawMessage{ID: req.ID, ChatID: req.ChatID, Text: req.Text, Date: h.now()}
	if req.Date != "" {
		ts, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("date %q is not RFC3339", req.Date))
		}
		msg.Date = ts
	}
	if msg.ID == 0 {
		msg.ID = msg.Date.UnixNano()
	}

	err := h.ingest.Process(c.Request().Context(), msg)
	switch {
	case errors.Is(err, middleware.ErrDuplicate):
		return xhttp.SuccessResponse(c, map[string]interface{}{"id": msg.ID, "duplicate": true})
	case err != nil:
		return h.fail(c, "ingest", err)
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{"id": msg.ID})
}

func (h *StrategyEchoHandler) Signals(c echo.Context) error {
	req := &models.DayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := h.day(req.Date)
	if err != nil {
		return h.fail(c, "signals", err)
	}
	sigs, stats, err := h.analysis.DaySignals(c.Request().Context(), day)
	if err != nil {
		return h.fail(c, "signals", err)
	}
	if sigs == nil {
		sigs = []models.Signal{}
	}
	return xhttp.SuccessResponse(c, models.DaySignals{Date: day.Format(util.DayLayout), Signals: sigs, Stats: stats})
}

func (h *StrategyEchoHandler) Conditions(c echo.Context) error {
	req := &models.ConditionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := h.day(req.Date)
	if err != nil {
		return h.fail(c, "conditions", err)
	}
	rep, err := h.analysis.Conditions(c.Request().Context(), day, req.FromHour, req.ToHour)
	if err != nil {
		return h.fail(c, "conditions", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, rep)
}

func (h *StrategyEchoHandler) Hours(c echo.Context) error {
	req := &models.DayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := h.day(req.Date)
	if err != nil {
		return h.fail(c, "hours", err)
	}
	hours, err := h.analysis.Hours(c.Request().Context(), day)
	if err != nil {
		return h.fail(c, "hours", err)
	}
	return xhttp.ListResponse(c, hours, int64(len(hours)))
}

func (h *StrategyEchoHandler) Overview(c echo.Context) error {
	req := &models.DayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := h.day(req.Date)
	if err != nil {
		return h.fail(c, "overview", err)
	}
	ov, err := h.analysis.Overview(c.Request().Context(), day)
	if err != nil {
		return h.fail(c, "overview", err)
	}
	return xhttp.SuccessResponse(c, ov)
}

func (h *StrategyEchoHandler) Simulate(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := h.day(req.Date)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	table, err := usecase.ParseStrategyTable(req.Strategies)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	rep, err := h.sims.SimulateDay(c.Request().Context(), day, table)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *StrategyEchoHandler) EnqueueSimulation(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.sims.Enqueue(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "enqueue_simulation", err)
	}
	return xhttp.AcceptedResponse(c, job)
}

func (h *StrategyEchoHandler) Simulation(c echo.Context) error {
	req := &models.SimulationIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.sims.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "simulation", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *StrategyEchoHandler) Strategy(c echo.Context) error {
	if h.live == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("live trading disabled"))
	}
	return xhttp.SuccessResponse(c, models.LiveStatus{
		Strategy:     h.live.Info(),
		Session:      h.live.Session(),
		Buffered:     h.live.Buffered(),
		TradingHours: h.live.InTradingHours(h.now()),
	})
}

func (h *StrategyEchoHandler) Stats(c echo.Context) error {
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := h.day(req.From)
	if err != nil {
		return h.fail(c, "stats", err)
	}
	to := from
	if req.To != "" {
		if to, err = h.day(req.To); err != nil {
			return h.fail(c, "stats", err)
		}
	}
	if to.Before(from) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must not be before from"))
	}
	st, err := h.analysis.Stats(c.Request().Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		return h.fail(c, "stats", err)
	}
	return xhttp.SuccessResponse(c, st)
}

// day parses a YYYY-MM-DD date in the trading timezone; empty means today.
func (h *StrategyEchoHandler) day(s string) (time.Time, error) {
	d, err := util.ParseDay(s, h.analysis.Location(), h.now())
	if err != nil {
		return time.Time{}, xhttp.BadRequestError(err.Error())
	}
	return d, nil
}

// fail maps use case errors onto API errors.
func (h *StrategyEchoHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, models.ErrNotFound):
		appErr = xhttp.NotFoundError("not found").WithError(err)
	case errors.Is(err, models.ErrInvalidSignal), errors.Is(err, models.ErrInvalidRequest), errors.Is(err, middleware.ErrInvalidMessage):
		appErr = xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrQueueDisabled):
		appErr = xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.ServiceUnavailableError("request timed out").WithError(err)
	default:
		h.logger.Error(op+" usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if appErr.Status >= 500 {
		h.logger.Warn(op+" unavailable", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
