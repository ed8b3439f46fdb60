package waitingroom

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware owns origin policy for the API.
	},
}

// Handler upgrades portal connections and pumps hub messages.
type Handler struct {
	hub    *Hub
	logger *logging.Logger
}

func NewHandler(hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{hub: hub, logger: logger}
}

// HandleConnect upgrades to WebSocket, registers the client, and starts the
// read/write pumps. Initial subscriptions come from the ?appointment query
// parameter.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Topics: r.URL.Query()["appointment"],
		Send:   make(chan []byte, 16),
		conn:   ws,
	}
	h.hub.Register(client)
	h.logger.Info("waiting room client connected", "client_id", client.ID, "topics", len(client.Topics))

	go h.writePump(client)
	h.readPump(client)
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = client.conn.Close()
	}()
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			h.logger.Debug("waiting room client disconnected", "client_id", client.ID)
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client) {
	for data := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			return
		}
	}
}
