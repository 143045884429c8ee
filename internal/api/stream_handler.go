package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"script-studio/internal/model"
	"script-studio/internal/stream"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время на первое сообщение с запросом.
	requestWait = 30 * time.Second
	// Максимальный размер сообщения от клиента.
	maxMessageSize = 1 << 20
)

type wsConfig struct {
	upgrader websocket.Upgrader
}

func newWSConfig(allowedOrigins []string) wsConfig {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return wsConfig{upgrader: websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}}
}

// streamAction обслуживает потоковое действие по WebSocket. Первое сообщение клиента -
// ActionRequestDTO; дальше сервер шлёт partial, затем completed или error.
// Закрытие соединения или сообщение {"type":"cancel"} отменяет вызов.
func (h *Handler) streamAction(c *gin.Context) {
	conn, err := h.ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	dto, err := readRequest(conn)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		h.writeError(conn, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchClient(conn, cancel)

	s, err := h.actions.Stream(ctx, req)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	log := h.logger.With(zap.String("kind", string(req.Kind())), zap.String("channel", string(req.Channel())))

	for ev := range s.Events() {
		msg := StreamMessage{Type: MessagePartial, Delta: ev.Delta}
		if ev.Type == stream.EventCompleted {
			msg = StreamMessage{
				Type:    MessageCompleted,
				Result:  ev.Result,
				Entries: h.entriesFor(req, *ev.Result, dto.NextShotNumber),
			}
		}
		if err := writeMessage(conn, msg); err != nil {
			log.Info("Client gone, cancelling stream", zap.Error(err))
			s.Cancel()
			for range s.Events() {
			}
			return
		}
	}

	<-s.Done()
	if err := s.Err(); err != nil {
		h.writeError(conn, err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func readRequest(conn *websocket.Conn) (ActionRequestDTO, error) {
	var dto ActionRequestDTO
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return dto, fmt.Errorf("%w: failed to read request: %v", model.ErrInvalidRequest, err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if err := json.Unmarshal(data, &dto); err != nil {
		return dto, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return dto, nil
}

// watchClient читает соединение до закрытия или команды cancel и отменяет вызов.
func watchClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == MessageCancel {
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (h *Handler) writeError(conn *websocket.Conn, err error) {
	status, apiErr := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Stream failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Warn("Stream rejected", zap.Int("status", status), zap.Error(err))
	}
	if werr := writeMessage(conn, StreamMessage{Type: MessageError, Error: &apiErr}); werr != nil {
		h.logger.Debug("Failed to deliver stream error", zap.Error(werr))
	}
}
