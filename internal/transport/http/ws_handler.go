package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"qbank-service/internal/app"
	"qbank-service/internal/domain"
)

// WSHandler streams leaderboard snapshots to websocket clients. Clients
// receive the current standings on connect and a fresh snapshot after every
// graded quiz.
type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string                    `json:"type"`
	Payload []domain.LeaderboardEntry `json:"payload"`
}

// ServeWS upgrades the request and streams leaderboard updates until the
// client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.SubscribeLeaderboard(r.Context())
	if err != nil {
		log.Printf("ws subscribe failed: %v", err)
		return
	}
	defer cancel()

	// Reader goroutine only detects the client going away; all writes happen
	// on this goroutine.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: topEntries(update)}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
