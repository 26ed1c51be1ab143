package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
	"github.com/lancehub-io/lancehub/internal/models"
)

// Me returns the authenticated user's own record, balance included.
func Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var u models.User
	err := db.Conn.QueryRow(context.Background(), `
		SELECT id, username, full_name, user_type, email, balance, bio, avatar_url, language, music_data, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Username, &u.FullName, &u.UserType, &u.Email, &u.Balance,
		&u.Bio, &u.AvatarURL, &u.Language, &u.MusicData, &u.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, u)
}
