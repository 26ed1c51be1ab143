package wallet

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
)

type TopupRequest struct {
	Amount int64 `json:"amount" validate:"required,min=100"`
}

type TopupResponse struct {
	TopupID string `json:"topup_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TopupInit records a pending topup and hands back a payment URL.
func TopupInit(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(TopupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	topupID := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(), `
		INSERT INTO transactions (id, user_id, amount, type, status, reference)
		VALUES ($1, $2, $3, 'credit', 'topup_pending', $1)
	`, topupID, userID, req.Amount)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create topup"})
	}

	paymentURL := os.Getenv("MOCK_PAYMENT_URL")
	if paymentURL == "" {
		paymentURL = "https://pay.lancehub.dev/mock/" + topupID
	}

	return c.JSON(http.StatusOK, TopupResponse{
		TopupID: topupID,
		Status:  "pending",
		Message: "Topup initialized. Complete payment at " + paymentURL,
	})
}

// ConfirmTopup settles a pending topup and credits the user's balance. The
// pending row is flipped and the balance credited in one transaction so a
// double confirm cannot double-credit.
func ConfirmTopup(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	topupID := c.Param("id")
	if topupID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing topup id"})
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE transactions SET status = 'topup'
		WHERE id = $1 AND user_id = $2 AND status = 'topup_pending'
		RETURNING amount
	`, topupID, userID).Scan(&amount)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "topup not found or already confirmed"})
	}

	if _, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not credit balance"})
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"topup_id": topupID, "status": "confirmed", "amount": amount})
}
