package api

import (
	"encoding/json"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
	icache "LevelCast/internal/service/cache"
	"LevelCast/internal/service/metrics"
	"LevelCast/internal/service/ratelimit"
	"LevelCast/internal/usecase"
	xhttp "LevelCast/pkg/http"
	xlogger "LevelCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// probsTTL bounds staleness of cached distribution responses; a fresh bar
// arrives every minute so a few seconds is plenty.
const probsTTL = 5 * time.Second

// StreamEchoHandler exposes the engine state over Echo-based HTTP handlers.
type StreamEchoHandler struct {
	logger *xlogger.Logger
	orch   *usecase.StreamOrchestrator
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewStreamEchoHandler(logger *xlogger.Logger, orch *usecase.StreamOrchestrator) *StreamEchoHandler {
	metrics.Register()
	return &StreamEchoHandler{logger: logger, orch: orch, rl: ratelimit.New()}
}

// SetCache injects the response cache.
func (h *StreamEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *StreamEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/probs", h.Probs)
	g.GET("/levels", h.Levels)
	g.GET("/tick", h.Tick)
	g.GET("/prediction", h.Prediction)
	g.POST("/filters", h.Filters)
}

// probsResponse is the REST view of one timeframe's current distribution.
type probsResponse struct {
	TF       string                        `json:"tf"`
	Snapshot *models.Snapshot              `json:"snapshot"`
	Counts   []models.ColorCount           `json:"counts"`
	Probs    map[models.ColorLabel]float64 `json:"probs"`
	Events   *models.EventProbs            `json:"events"`
	Filters  models.FilterSet              `json:"filters_enabled"`
}

func (h *StreamEchoHandler) Probs(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.StreamLatency.WithLabelValues("probs").Observe(time.Since(start).Seconds()) }()

	req := &models.ProbsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	if !h.rl.Allow(c.RealIP()+":probs", 5, 2) {
		h.logger.Warn("probs rate_limited", xlogger.String("remote", c.RealIP()))
		return echo.ErrTooManyRequests
	}

	cacheKey := "probs:" + string(tf)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("probs cache_get_error", xlogger.Error(err))
		} else if ok {
			var cached probsResponse
			if err := json.Unmarshal(b, &cached); err == nil {
				return xhttp.SuccessResponse(c, &cached)
			}
		}
	}

	snap, dist, events := h.orch.Distribution(tf)
	if snap == nil {
		metrics.StreamErrors.WithLabelValues("probs").Inc()
		return xhttp.NotFoundResponse(c, "no bar processed yet")
	}

	res := &probsResponse{
		TF:       string(tf),
		Snapshot: snap,
		Counts:   dist.Counts,
		Probs:    dist.Probs,
		Events:   events,
		Filters:  h.orch.Filters(tf),
	}
	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, probsTTL); err != nil {
				h.logger.Warn("probs cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StreamEchoHandler) Levels(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.StreamLatency.WithLabelValues("levels").Observe(time.Since(start).Seconds()) }()

	if !h.orch.Ready() {
		metrics.StreamErrors.WithLabelValues("levels").Inc()
		return xhttp.NotFoundResponse(c, "levels not initialized yet")
	}
	return xhttp.SuccessResponse(c, h.orch.Levels())
}

func (h *StreamEchoHandler) Tick(c echo.Context) error {
	payload := h.orch.LatestPayload()
	if payload == nil {
		return xhttp.NotFoundResponse(c, "no bar processed yet")
	}
	return xhttp.SuccessResponse(c, payload)
}

func (h *StreamEchoHandler) Prediction(c echo.Context) error {
	pred := h.orch.LatestPrediction()
	if pred == nil {
		return xhttp.NotFoundResponse(c, "no prediction available yet")
	}
	return xhttp.SuccessResponse(c, pred)
}

func (h *StreamEchoHandler) Filters(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.StreamLatency.WithLabelValues("filters").Observe(time.Since(start).Seconds()) }()

	req := &models.FiltersUpdateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	update, err := h.orch.SetFilters(tf, req.FiltersEnabled)
	if err != nil {
		metrics.StreamErrors.WithLabelValues("filters").Inc()
		h.logger.Error("filters usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if update == nil {
		return xhttp.SuccessResponse(c, map[string]string{"status": "filters stored"})
	}
	return xhttp.SuccessResponse(c, update)
}
