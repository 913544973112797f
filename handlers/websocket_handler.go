package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/strideteam/competition-engine/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true // Для разработки разрешаем все
	},
}

type WebSocketHandler struct {
	hub *events.Hub
}

func NewWebSocketHandler(hub *events.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeCompetition подписывает клиента на события одного соревнования.
// Клиент подключается к /ws/competitions/{competitionID}.
func (h *WebSocketHandler) ServeCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := readIDParam(r, "competitionID")
	if err != nil {
		http.Error(w, "Missing or invalid competitionID", http.StatusBadRequest)
		return
	}
	h.serve(w, r, events.CompetitionRoom(competitionID))
}

// ServeFeed подписывает клиента на общую ленту событий жизненного цикла.
func (h *WebSocketHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, events.FeedRoom)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		log.Printf("Failed to upgrade connection for room %s: %v", roomID, err)
		return
	}

	client := &events.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256), // Буферизированный канал
		Room: roomID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
