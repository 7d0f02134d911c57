package livetiming

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	messageTypeLapDataUpdate      = "lap_data_update"
	messageTypeCarTelemetryUpdate = "car_telemetry_update"
	messageTypeStandingsUpdate    = "standings_update"
	messageTypeSessionUpdate      = "session_update"
	messageTypeCarStatusUpdate    = "car_status_update"
	messageTypeAlert              = "alert"

	hubClientBufferSize = 64
	hubWriteTimeout     = 5 * time.Second
	hubPingInterval     = 30 * time.Second
)

// Message is a single frame pushed to websocket clients.
type Message struct {
	MessageType string      `json:"type"`
	Body        interface{} `json:"body,omitempty"`
}

type Broadcaster interface {
	Send(message Message) error
}

type NilBroadcaster struct{}

func (NilBroadcaster) Send(_ Message) error {
	return nil
}

type hubClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to all connected websocket clients. A client whose buffer is full is dropped.
type Hub struct {
	logger   Logger
	upgrader websocket.Upgrader

	clients map[uuid.UUID]*hubClient
	mutex   sync.RWMutex
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[uuid.UUID]*hubClient),
	}
}

func (h *Hub) Send(message Message) error {
	b, err := json.Marshal(message)

	if err != nil {
		return errors.Wrapf(err, "could not encode %s message", message.MessageType)
	}

	var slowClients []*hubClient

	h.mutex.RLock()

	for _, client := range h.clients {
		select {
		case client.send <- b:
		default:
			slowClients = append(slowClients, client)
		}
	}

	h.mutex.RUnlock()

	for _, client := range slowClients {
		h.logger.Warnf("Websocket client %s is not keeping up, disconnecting", client.id)
		websocketDroppedClientsMetric.Inc()
		h.unregister(client)
	}

	return nil
}

func (h *Hub) NumClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn, initial []Message) *hubClient {
	client := &hubClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, hubClientBufferSize+len(initial)),
	}

	for _, message := range initial {
		b, err := json.Marshal(message)

		if err != nil {
			h.logger.WithError(err).Errorf("Could not encode initial %s message", message.MessageType)
			continue
		}

		client.send <- b
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	h.mutex.Unlock()

	websocketClientsMetric.Inc()
	h.logger.Infof("Websocket client connected: %s (%s)", client.id, conn.RemoteAddr())

	return client
}

func (h *Hub) unregister(client *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return
	}

	delete(h.clients, client.id)
	close(client.send)

	websocketClientsMetric.Dec()
	h.logger.Infof("Websocket client disconnected: %s", client.id)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.RLock()
	clients := make([]*hubClient, 0, len(h.clients))

	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		h.unregister(client)
	}
}

// Handler upgrades the request to a websocket. The messages returned by initial are sent
// before any broadcast so a new client starts with the current state.
func (h *Hub) Handler(initial func() []Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)

		if err != nil {
			h.logger.WithError(err).Error("Could not upgrade websocket connection")
			return
		}

		var messages []Message

		if initial != nil {
			messages = initial()
		}

		client := h.register(conn, messages)

		go h.writeLoop(client)

		h.readLoop(client)
	}
}

// readLoop discards anything clients send, and notices when they go away.
func (h *Hub) readLoop(client *hubClient) {
	defer h.unregister(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debugf("Websocket client %s read error", client.id)
			}

			return
		}
	}
}

func (h *Hub) writeLoop(client *hubClient) {
	ticker := time.NewTicker(hubPingInterval)

	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case b, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))

			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.logger.WithError(err).Debugf("Could not write to websocket client %s", client.id)
				h.unregister(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))

			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		}
	}
}
