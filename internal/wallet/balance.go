package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
)

// Balance returns the authenticated user's available balance.
func Balance(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var balance int64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id": userID,
		"balance": balance,
	})
}
