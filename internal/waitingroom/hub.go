// Package waitingroom pushes live appointment status to connected portal
// clients. Guardians sit in a virtual waiting room; when the doctor starts
// the call their client flips to the video room without polling.
package waitingroom

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// Event is a real-time status notification sent to subscribers.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID string    `json:"appointment_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClientMessage is an inbound message from a portal client.
type ClientMessage struct {
	Action       string   `json:"action"` // "subscribe", "unsubscribe", "ping"
	Appointments []string `json:"appointments"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single portal connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
	conn   Conn
}

// Hub tracks clients and their appointment subscriptions. All operations are
// thread-safe via sync.RWMutex. It satisfies the lifecycle's
// StatusBroadcaster.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // appointment id -> subscribers
	all     map[*Client]struct{}
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

// Register adds a client and subscribes it to its initial appointments.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes a client from all subscriptions and closes its Send
// channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.dropSubscription(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds appointments to an already-registered client.
func (h *Hub) Subscribe(client *Client, appointmentIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range appointmentIDs {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	client.Topics = append(client.Topics, appointmentIDs...)
}

// Unsubscribe removes appointments from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, appointmentIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(appointmentIDs))
	for _, id := range appointmentIDs {
		removeSet[id] = struct{}{}
		h.dropSubscription(id, client)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) dropSubscription(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// ProcessMessage dispatches an inbound client message.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Appointments)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Appointments)
	}
}

// BroadcastStatus fans a lifecycle transition out to every client watching
// the appointment. Slow clients are skipped, never waited on.
func (h *Hub) BroadcastStatus(appointmentID uuid.UUID, status appointments.Status) {
	event := Event{
		Type:          "status",
		AppointmentID: appointmentID.String(),
		Status:        string(status),
		Timestamp:     time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal status event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.clients[event.AppointmentID]
	if !ok {
		return
	}
	for client := range subscribers {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking the lifecycle.
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients watching an appointment.
func (h *Hub) TopicCount(appointmentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[appointmentID])
}
