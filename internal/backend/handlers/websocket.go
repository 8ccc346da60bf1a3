package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

func (h *Handlers) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// EventsWebSocket GET /ws/events транслирует события очереди команд.
// Параметр device_id ограничивает поток одним устройством
func (h *Handlers) EventsWebSocket(c *gin.Context) {
	deviceID := c.Query("device_id")

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	events, cancel, err := h.events.Subscribe(ctx, h.eventsChannel)
	if err != nil {
		h.logger.Error("failed to subscribe to command events", "error", err)
		conn.WriteJSON(ErrorResponse("subscribe_failed", "Event stream unavailable"))
		return
	}
	defer cancel()

	h.logger.Info("websocket connected for command events", "device_id", deviceID)

	// читаем только для обнаружения закрытия соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug("events websocket disconnected", "device_id", deviceID)
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if deviceID != "" && !eventForDevice(msg, deviceID) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}
