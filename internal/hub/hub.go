package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

const maxConnsPerRecipient = 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers on other origins are allowed; auth is the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn  *websocket.Conn
	farms map[string]bool // farm ids this connection subscribed to
}

// Hub is the server side of the live channel. It tracks attached client
// connections per recipient, handles their subscribe/unsubscribe control
// frames, and pushes notification envelopes to them.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]bool // recipientID -> connections
	logger  *logging.Logger

	// Authenticate maps a bearer token to a recipient id. Empty result
	// rejects the attach. Credential issuance lives elsewhere.
	Authenticate func(token string) string
}

// New constructs an empty Hub.
func New(logger *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]bool),
		logger:  logger,
	}
}

// Attach upgrades an HTTP request to a websocket connection and serves its
// control frames until it closes. The bearer token comes from the `token`
// query parameter or the Authorization header.
func (h *Hub) Attach(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		const prefix = "Bearer "
		if auth := c.GetHeader("Authorization"); len(auth) > len(prefix) {
			token = auth[len(prefix):]
		}
	}

	recipientID := ""
	if h.Authenticate != nil {
		recipientID = h.Authenticate(token)
	}
	if recipientID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for %s: %v", recipientID, err)
		return
	}

	cl := &client{conn: conn, farms: make(map[string]bool)}
	if !h.add(recipientID, cl) {
		conn.Close()
		return
	}

	go h.serve(recipientID, cl)
}

func (h *Hub) add(recipientID string, cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[recipientID]
	if !ok {
		conns = make(map[*client]bool)
		h.clients[recipientID] = conns
	}
	if len(conns) >= maxConnsPerRecipient {
		h.logger.Warnf("Max connections reached for recipient %s", recipientID)
		return false
	}
	conns[cl] = true
	h.logger.Infof("Attached connection for recipient %s (total: %d)", recipientID, len(conns))
	return true
}

func (h *Hub) remove(recipientID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[recipientID]; ok {
		delete(conns, cl)
		if len(conns) == 0 {
			delete(h.clients, recipientID)
		}
		h.logger.Infof("Detached connection for recipient %s (remaining: %d)", recipientID, len(conns))
	}
}

// serve reads control frames until the connection drops.
func (h *Hub) serve(recipientID string, cl *client) {
	defer func() {
		h.remove(recipientID, cl)
		cl.conn.Close()
	}()

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnf("Connection for recipient %s dropped: %v", recipientID, err)
			}
			return
		}

		var ctl models.ControlMessage
		if err := json.Unmarshal(data, &ctl); err != nil {
			h.logger.Warnf("Dropping malformed control frame from %s: %v", recipientID, err)
			continue
		}
		h.mu.Lock()
		switch ctl.Action {
		case models.ActionSubscribe:
			cl.farms[ctl.FarmID] = true
		case models.ActionUnsubscribe:
			delete(cl.farms, ctl.FarmID)
		}
		h.mu.Unlock()
	}
}

// SendToRecipient pushes a notification envelope to every connection the
// recipient currently has attached. Dead connections are dropped on write
// failure. Returns the number of connections written.
func (h *Hub) SendToRecipient(recipientID string, payload models.NotificationPayload) int {
	frame, err := json.Marshal(struct {
		Type string `json:"type"`
		models.NotificationPayload
	}{Type: models.MsgNotification, NotificationPayload: payload})
	if err != nil {
		h.logger.Errorf("Failed to encode notification for %s: %v", recipientID, err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	if conns, ok := h.clients[recipientID]; ok {
		for cl := range conns {
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Errorf("Failed to push to recipient %s: %v", recipientID, err)
				delete(conns, cl)
				cl.conn.Close()
				continue
			}
			sent++
		}
		if len(conns) == 0 {
			delete(h.clients, recipientID)
		}
	}
	return sent
}

// BroadcastFarm pushes a notification envelope to every connection
// subscribed to the given farm, across all recipients.
func (h *Hub) BroadcastFarm(farmID string, payload models.NotificationPayload) {
	frame, err := json.Marshal(struct {
		Type string `json:"type"`
		models.NotificationPayload
	}{Type: models.MsgNotification, NotificationPayload: payload})
	if err != nil {
		h.logger.Errorf("Failed to encode broadcast for farm %s: %v", farmID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for recipientID, conns := range h.clients {
		for cl := range conns {
			if !cl.farms[farmID] {
				continue
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Errorf("Failed to push to recipient %s: %v", recipientID, err)
				delete(conns, cl)
				cl.conn.Close()
			}
		}
	}
}

// Connected reports whether the recipient has at least one attached
// connection.
func (h *Hub) Connected(recipientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[recipientID]) > 0
}

// NotificationFromAlert builds the push envelope for an alert.
func NotificationFromAlert(a models.Alert) models.NotificationPayload {
	return models.NotificationPayload{
		NotificationType: string(a.Type),
		Title:            a.Title,
		Message:          a.Description,
		Priority:         string(a.Severity),
		RelatedID:        a.ID,
		RelatedType:      "alert",
		ActionURL:        "/farms/" + a.FarmID + "/alerts/" + a.ID,
		Timestamp:        time.Now(),
	}
}
