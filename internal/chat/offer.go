package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/alerts"
	"github.com/lancehub-io/lancehub/internal/contracts"
	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

// resolveAction maps an offer action to its target status after checking the
// role guard: the recipient accepts or declines, the initiator cancels.
func resolveAction(action string, isInitiator bool) (string, error) {
	switch action {
	case "accept":
		if isInitiator {
			return "", errors.New("the sender cannot accept their own offer")
		}
		return models.InteractiveAccepted, nil
	case "decline":
		if isInitiator {
			return "", errors.New("the sender cannot decline their own offer")
		}
		return models.InteractiveDeclined, nil
	case "cancel":
		if !isInitiator {
			return "", errors.New("only the sender may cancel an offer")
		}
		return models.InteractiveCancelled, nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

type OfferActionRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline cancel"`
}

// OfferAction drives the interactive sub-state machine on offer and
// hire_request messages. Terminal states are frozen: the status patch only
// applies while data.status is still pending.
func (h *Handler) OfferAction(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	chatID := c.Param("id")
	messageID := c.Param("message_id")
	req := new(OfferActionRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := context.Background()
	if _, herr := otherParticipant(ctx, chatID, userID); herr != nil {
		return herr
	}

	var senderID string
	var msgType models.MessageType
	err := db.Conn.QueryRow(ctx, `
		SELECT sender_id, message_type FROM messages WHERE id = $1 AND chat_id = $2
	`, messageID, chatID).Scan(&senderID, &msgType)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}
	if msgType != models.MessageOffer && msgType != models.MessageHireRequest {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message is not an offer"})
	}

	target, err := resolveAction(req.Action, senderID == userID)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}

	if req.Action == "accept" {
		result, err := h.svc.AcceptOffer(c.Request().Context(), messageID, userID)
		if err != nil {
			return respondAcceptError(c, err)
		}

		BroadcastOfferUpdate(chatID, echo.Map{
			"message_id":  messageID,
			"status":      models.InteractiveAccepted,
			"contract_id": result.Contract.ID,
		})
		BroadcastNewMessage(result.Chat.ID, result.Activation)

		_ = alerts.EnqueueContractAccepted(result.Contract.ID, result.Contract.BuyerID, result.Contract.SellerID, result.Contract.Amount)
		_ = alerts.CreateNotification(senderID, "offer:accepted", "Offer accepted",
			"Your offer was accepted and a contract was created.", &result.Contract.ID, nil)

		return c.JSON(http.StatusOK, result)
	}

	tag, err := db.Conn.Exec(ctx, `
		UPDATE messages SET data = jsonb_set(data, '{status}', to_jsonb($1::text))
		WHERE id = $2 AND data->>'status' = $3
	`, target, messageID, models.InteractivePending)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update offer"})
	}
	if tag.RowsAffected() == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "offer is no longer pending"})
	}

	BroadcastOfferUpdate(chatID, echo.Map{"message_id": messageID, "status": target})
	return c.JSON(http.StatusOK, echo.Map{"message_id": messageID, "status": target})
}

func respondAcceptError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, contracts.ErrContractExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a contract already exists for this job"})
	case errors.Is(err, contracts.ErrInsufficientBalance):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient balance"})
	case errors.Is(err, contracts.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, contracts.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, contracts.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "offer acceptance failed"})
	}
}
