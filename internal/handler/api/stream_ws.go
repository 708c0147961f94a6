package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
	mid "LevelCast/internal/middleware"
	"LevelCast/internal/usecase"
	xlogger "LevelCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

// StreamWSHandler serves /ws/stream: tick payloads and range predictions go
// out as they are produced, filter_request messages come back in. Delivery is
// latest-wins per client; a slow consumer skips intermediate ticks.
type StreamWSHandler struct {
	logger   *xlogger.Logger
	orch     *usecase.StreamOrchestrator
	upgrader websocket.Upgrader
}

func NewStreamWSHandler(logger *xlogger.Logger, orch *usecase.StreamOrchestrator) *StreamWSHandler {
	return &StreamWSHandler{
		logger: logger,
		orch:   orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamWSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/stream", h.Stream)
}

// wsClient pairs a connection with a write lock; the broadcast pump and the
// filter-reply path both write to the same socket.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *StreamWSHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := &wsClient{conn: conn}
	defer conn.Close()

	sub := h.orch.Hub().Subscribe()
	defer h.orch.Hub().Unsubscribe(sub)

	h.logger.Info("ws subscriber attached", xlogger.String("remote", c.RealIP()))

	// Seed the fresh client with current state so it need not wait a minute.
	if payload := h.orch.LatestPayload(); payload != nil {
		if err := client.writeJSON(payload); err != nil {
			return nil
		}
	}
	if pred := h.orch.LatestPrediction(); pred != nil {
		if err := client.writeJSON(pred); err != nil {
			return nil
		}
	}

	done := make(chan struct{})
	go h.writePump(client, sub, done)

	h.readPump(client)
	close(done)
	h.logger.Info("ws subscriber detached", xlogger.String("remote", c.RealIP()))
	return nil
}

func (h *StreamWSHandler) writePump(client *wsClient, sub *mid.Subscriber, done chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if err := client.writeJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

func (h *StreamWSHandler) readPump(client *wsClient) {
	conn := client.conn
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))

		var req models.FilterRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Warn("ws bad message", xlogger.Error(err))
			continue
		}

		var tf domrepo.Timeframe
		switch req.Type {
		case "filter_request_1h":
			tf = domrepo.TF1h
		case "filter_request_4h":
			tf = domrepo.TF4h
		default:
			continue
		}

		update, err := h.orch.SetFilters(tf, req.FiltersEnabled)
		if err != nil {
			h.logger.Error("ws filter update failed", xlogger.Error(err))
			continue
		}
		if update == nil {
			continue
		}
		if err := client.writeJSON(update); err != nil {
			return
		}
	}
}
