package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// hub fans server events out to every open socket on one chat. Delivery is
// at-least-once; clients dedupe by message id.
type hub struct {
	chatID  string
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

var (
	hubsMu sync.RWMutex
	hubs   = make(map[string]*hub)
)

func getHub(chatID string) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	if h, ok := hubs[chatID]; ok {
		return h
	}
	h := &hub{chatID: chatID, clients: make(map[*websocket.Conn]bool)}
	hubs[chatID] = h
	return h
}

func (h *hub) broadcast(evt wsEvent) {
	payload, _ := json.Marshal(evt)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.WriteMessage(websocket.TextMessage, payload)
	}
}

func (h *hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChatWS subscribes a participant to a chat's realtime feed.
func ChatWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	if chatID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing chat id"})
	}

	var buyerID, sellerID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT buyer_id, seller_id FROM chats WHERE id = $1`, chatID,
	).Scan(&buyerID, &sellerID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "chat not found"})
	}
	if userID != buyerID && userID != sellerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this chat"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h := getHub(chatID)
	h.register(ws)
	h.broadcast(wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	// Read loop; the protocol is server push only.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(ws)
			_ = ws.Close()
			h.broadcast(wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
			break
		}
	}
	return nil
}

// BroadcastNewMessage publishes a freshly inserted message to subscribers.
func BroadcastNewMessage(chatID string, message interface{}) {
	getHub(chatID).broadcast(wsEvent{Type: "message_new", Data: message})
}

// BroadcastMessageRead publishes a read receipt.
func BroadcastMessageRead(chatID string, payload interface{}) {
	getHub(chatID).broadcast(wsEvent{Type: "message_read", Data: payload})
}

// BroadcastOfferUpdate publishes an offer/hire-request status change.
func BroadcastOfferUpdate(chatID string, payload interface{}) {
	getHub(chatID).broadcast(wsEvent{Type: "offer_update", Data: payload})
}
