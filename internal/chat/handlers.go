package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/alerts"
	"github.com/lancehub-io/lancehub/internal/contracts"
	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

// Handler serves chat endpoints. Offer acceptance is delegated to the escrow
// core so the money movement stays in one transaction.
type Handler struct {
	svc *contracts.Service
}

func NewHandler(svc *contracts.Service) *Handler {
	return &Handler{svc: svc}
}

type OpenChatRequest struct {
	PeerID string `json:"peer_id" validate:"required,uuid4"`
}

// OpenChat finds or creates the direct chat between the caller and a peer.
// Buyer and seller slots are assigned from the two account types.
func (h *Handler) OpenChat(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(OpenChatRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if req.PeerID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot open a chat with yourself"})
	}

	ctx := context.Background()
	callerType, _ := c.Get("user_type").(string)
	var peerType string
	if err := db.Conn.QueryRow(ctx,
		`SELECT user_type FROM users WHERE id = $1`, req.PeerID).Scan(&peerType); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "peer not found"})
	}
	if callerType == peerType {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "chats connect a buyer with a seller"})
	}

	buyerID, sellerID := userID, req.PeerID
	if callerType == string(models.UserTypeSeller) {
		buyerID, sellerID = req.PeerID, userID
	}

	findDirect := func() (models.Chat, error) {
		var ch models.Chat
		err := db.Conn.QueryRow(ctx, `
			SELECT id, buyer_id, seller_id, contract_id, created_at FROM chats
			WHERE buyer_id = $1 AND seller_id = $2 AND contract_id IS NULL
		`, buyerID, sellerID).Scan(&ch.ID, &ch.BuyerID, &ch.SellerID, &ch.ContractID, &ch.CreatedAt)
		return ch, err
	}

	ch, err := findDirect()
	if errors.Is(err, pgx.ErrNoRows) {
		ch = models.Chat{ID: uuid.New().String(), BuyerID: buyerID, SellerID: sellerID}
		err = db.Conn.QueryRow(ctx, `
			INSERT INTO chats (id, buyer_id, seller_id) VALUES ($1, $2, $3) RETURNING created_at
		`, ch.ID, ch.BuyerID, ch.SellerID).Scan(&ch.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// a concurrent opener created it first
			ch, err = findDirect()
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not open chat"})
	}

	return c.JSON(http.StatusOK, ch)
}

// ListChats returns every chat the caller participates in.
func (h *Handler) ListChats(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT id, buyer_id, seller_id, contract_id, created_at FROM chats
		WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch chats"})
	}
	defer rows.Close()

	items := []models.Chat{}
	for rows.Next() {
		var ch models.Chat
		if err := rows.Scan(&ch.ID, &ch.BuyerID, &ch.SellerID, &ch.ContractID, &ch.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse chat record"})
		}
		items = append(items, ch)
	}
	return c.JSON(http.StatusOK, echo.Map{"chats": items})
}

type SendMessageRequest struct {
	Content     *string         `json:"content"`
	MessageType string          `json:"message_type" validate:"required"`
	Data        json.RawMessage `json:"data"`
}

// SendMessage appends a typed message to a chat the caller participates in.
// The payload is decoded against the variant for its type before insert;
// malformed payloads never reach the store.
func (h *Handler) SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	req := new(SendMessageRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := context.Background()
	recipientID, herr := otherParticipant(ctx, chatID, userID)
	if herr != nil {
		return herr
	}

	msgType := models.MessageType(req.MessageType)
	if _, err := models.DecodeMessageData(msgType, req.Data); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if msgType == models.MessageText && (req.Content == nil || *req.Content == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text messages require content"})
	}

	msg := models.Message{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		SenderID:    userID,
		Content:     req.Content,
		MessageType: msgType,
		Data:        req.Data,
	}
	err := db.Conn.QueryRow(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, message_type, data, read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE) RETURNING created_at
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.MessageType, msg.Data).Scan(&msg.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	BroadcastNewMessage(chatID, msg)

	title := "New message"
	if msgType == models.MessageOffer || msgType == models.MessageHireRequest {
		title = "New offer"
		_ = alerts.EnqueueOfferReceived(chatID, userID, recipientID)
	} else {
		_ = alerts.EnqueueMessageNew(chatID, userID, recipientID)
	}
	body := ""
	if req.Content != nil {
		body = *req.Content
	}
	_ = alerts.CreateNotification(recipientID, "message:new", title, body, &msg.ID, nil)

	return c.JSON(http.StatusCreated, msg)
}

// ListMessages returns a chat's messages in creation order. Supports limit,
// offset and an RFC3339 since filter for incremental fetches.
func (h *Handler) ListMessages(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	ctx := context.Background()
	if _, err := otherParticipant(ctx, chatID, userID); err != nil {
		return err
	}

	limit, offset := 50, 0
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	var since time.Time
	if s := c.QueryParam("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		since = t
	}

	rows, err := db.Conn.Query(ctx, `
		SELECT id, chat_id, sender_id, content, message_type, data, read, created_at
		FROM messages
		WHERE chat_id = $1 AND ($2::timestamptz IS NULL OR created_at > $2)
		ORDER BY created_at ASC LIMIT $3 OFFSET $4
	`, chatID, nullableTime(since), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType,
			&m.Data, &m.Read, &m.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, m)
	}

	return c.JSON(http.StatusOK, echo.Map{"messages": items})
}

// UnreadCount counts messages the caller has not read in one chat.
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	ctx := context.Background()
	if _, err := otherParticipant(ctx, chatID, userID); err != nil {
		return err
	}

	var count int64
	err := db.Conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND sender_id <> $2 AND read = FALSE
	`, chatID, userID).Scan(&count)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkRead flags every message from the other participant as read.
func (h *Handler) MarkRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	ctx := context.Background()
	if _, err := otherParticipant(ctx, chatID, userID); err != nil {
		return err
	}

	tag, err := db.Conn.Exec(ctx, `
		UPDATE messages SET read = TRUE WHERE chat_id = $1 AND sender_id <> $2 AND read = FALSE
	`, chatID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}

	if tag.RowsAffected() > 0 {
		BroadcastMessageRead(chatID, echo.Map{
			"chat_id": chatID,
			"user_id": userID,
			"read_at": time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"updated": tag.RowsAffected()})
}

// otherParticipant verifies membership and returns the peer's user id.
func otherParticipant(ctx context.Context, chatID, userID string) (string, *echo.HTTPError) {
	var buyerID, sellerID string
	err := db.Conn.QueryRow(ctx,
		`SELECT buyer_id, seller_id FROM chats WHERE id = $1`, chatID,
	).Scan(&buyerID, &sellerID)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	switch userID {
	case buyerID:
		return sellerID, nil
	case sellerID:
		return buyerID, nil
	default:
		return "", echo.NewHTTPError(http.StatusForbidden, "not a participant in this chat")
	}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
