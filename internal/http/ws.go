package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

// streamFeed upgrades to a WebSocket and pushes a FeedEvent for the
// current feed and every change after it.
func (h *handlers) streamFeed(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	clientLog := h.log.With().Str("roomId", room.ID()).Str("clientId", clientID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feeds, stop, err := room.Watch(ctx)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		return
	}
	defer stop()

	metrics.DefaultMetrics.RecordWebSocketConnected()
	defer metrics.DefaultMetrics.RecordWebSocketDisconnected()
	clientLog.Info().Msg("Feed client connected")
	defer clientLog.Info().Msg("Feed client disconnected")

	// Reads only serve to detect disconnects and pongs.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case feed, ok := <-feeds:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed"),
					time.Now().Add(writeWait))
				return
			}
			if feed == nil {
				feed = []models.DisplayMessage{}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(models.FeedEvent{
				EventType: models.EventFeedUpdated,
				RoomID:    room.ID(),
				Timestamp: time.Now().UnixMilli(),
				Messages:  feed,
			})
			if err != nil {
				clientLog.Debug().Err(err).Msg("WebSocket write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
