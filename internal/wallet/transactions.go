package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

// GetUserTransactions lists the caller's audit trail, newest first.
func GetUserTransactions(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT id, user_id, amount, type, status, COALESCE(reference::text, ''), created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch transactions"})
	}
	defer rows.Close()

	items := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, t)
	}

	return c.JSON(http.StatusOK, echo.Map{"transactions": items})
}
