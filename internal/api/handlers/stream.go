package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/metrics"
	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/internal/services"
	"github.com/stitts-dev/dfs-lineup/pkg/logger"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

const (
	EventLineup = "lineup"
	EventBatch  = "batch"
	EventError  = "error"

	writeWait = 10 * time.Second
)

// StreamEvent is one websocket message. Exactly one payload field is set.
type StreamEvent struct {
	Type   string                `json:"type"`
	Lineup *optimizer.LineupView `json:"lineup,omitempty"`
	Batch  *optimizer.BatchView  `json:"batch,omitempty"`
	Error  *utils.AppError       `json:"error,omitempty"`
}

// StreamHandler runs one optimization per websocket connection and pushes
// each lineup as soon as the optimizer accepts it.
type StreamHandler struct {
	service  *services.LineupService
	metrics  *metrics.Registry
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(service *services.LineupService, m *metrics.Registry, origins []string, logger *logrus.Logger) *StreamHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &StreamHandler{
		service: service,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// HandleOptimize expects the first client message to be an optimize request
// body. It replies with lineup events, then a batch or error event, and
// closes. Closing the socket early cancels the batch.
func (h *StreamHandler) HandleOptimize(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithHTTPContext(c.Request.Method, c.Request.URL.Path, c.ClientIP()).
			WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	var req services.OptimizeRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.send(conn, StreamEvent{Type: EventError, Error: utils.NewAppError(utils.ErrCodeValidation, "Invalid request body", err.Error())})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// any read error means the client went away
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	batch, err := h.service.Stream(ctx, req, func(l optimizer.LineupView) {
		h.send(conn, StreamEvent{Type: EventLineup, Lineup: &l})
	})
	if err != nil {
		_, appErr := utils.ToAppError(err)
		h.send(conn, StreamEvent{Type: EventError, Error: appErr})
		return
	}

	logger.WithBatchContext(batch.BatchID, batch.PoolID).WithField("produced", batch.Produced).Info("Streamed batch")
	h.send(conn, StreamEvent{Type: EventBatch, Batch: batch})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}

func (h *StreamHandler) send(conn *websocket.Conn, ev StreamEvent) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.WithError(err).WithField("event", ev.Type).Debug("Failed to write stream event")
	}
}
