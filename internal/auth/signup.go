package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/lancehub-io/lancehub/internal/config"
	"github.com/lancehub-io/lancehub/internal/db"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	UserType string `json:"user_type" validate:"required,oneof=buyer seller"`
	Email    string `json:"email" validate:"omitempty,email"`
	Language string `json:"language"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Signup creates an account with a zero balance and returns a session token.
func Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	var lang, email *string
	if req.Language != "" {
		lang = &req.Language
	}
	if req.Email != "" {
		email = &req.Email
	}

	userID := uuid.New().String()
	_, err = db.Conn.Exec(context.Background(), `
		INSERT INTO users (id, username, full_name, password, user_type, balance, language, email)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`, userID, req.Username, req.FullName, string(hashed), req.UserType, lang, email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already taken"})
	}

	signed, err := issueToken(userID, req.UserType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: signed})
}

func issueToken(userID, userType string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   userID,
		"user_type": userType,
		"exp":       time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.JWTSecret())
}
