package user

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/db"
)

// GetPublicProfile returns the public fields of any user. Balance is never
// exposed here.
func GetPublicProfile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	var (
		username, fullName, userType string
		bio, avatarURL, language     *string
		musicData                    json.RawMessage
	)
	err := db.Conn.QueryRow(context.Background(), `
		SELECT username, full_name, user_type, bio, avatar_url, language, music_data
		FROM users WHERE id = $1
	`, id).Scan(&username, &fullName, &userType, &bio, &avatarURL, &language, &musicData)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":         id,
		"username":   username,
		"full_name":  fullName,
		"user_type":  userType,
		"bio":        bio,
		"avatar_url": avatarURL,
		"language":   language,
		"music_data": musicData,
	})
}

type UpdateProfileRequest struct {
	FullName  *string         `json:"full_name"`
	Bio       *string         `json:"bio"`
	AvatarURL *string         `json:"avatar_url" validate:"omitempty,url"`
	Language  *string         `json:"language"`
	MusicData json.RawMessage `json:"music_data"`
}

// UpdateProfile patches the authenticated user's profile fields. Absent
// fields are left untouched.
func UpdateProfile(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(UpdateProfileRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	_, err := db.Conn.Exec(context.Background(), `
		UPDATE users SET
			full_name  = COALESCE($1, full_name),
			bio        = COALESCE($2, bio),
			avatar_url = COALESCE($3, avatar_url),
			language   = COALESCE($4, language),
			music_data = COALESCE($5, music_data)
		WHERE id = $6
	`, req.FullName, req.Bio, req.AvatarURL, req.Language, req.MusicData, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile update failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated"})
}
