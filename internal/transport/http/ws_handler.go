package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizroom-service/internal/app"
	"quizroom-service/internal/broadcast"
	"quizroom-service/internal/domain"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 50 * time.Second
)

// WSHandler upgrades connections into room event subscribers. Every event
// the coordinator publishes for the room is forwarded as JSON.
type WSHandler struct {
	service  *app.QuizService
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, hub *broadcast.Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS subscribes the connection to the room given by ?room=CODE.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeRoomCode(r.URL.Query().Get("room"))
	if code == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	// Reject unknown rooms before upgrading.
	if _, _, err := h.service.GetByCode(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe(code)
	defer cancel()

	if err := conn.WriteJSON(broadcast.Event{Event: "connected", Payload: map[string]string{"room_code": code}}); err != nil {
		return
	}

	done := make(chan struct{})
	pongs := make(chan struct{}, 1)

	// Reader: detects close and forwards client pings to the writer loop,
	// which owns all writes on the connection.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			var inbound struct {
				Event string `json:"event"`
			}
			if err := conn.ReadJSON(&inbound); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			if inbound.Event == "ping" {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-pongs:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(broadcast.Event{Event: "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
