package models

import (
	"encoding/json"
	"time"
)

// UserType distinguishes the two marketplace roles.
type UserType string

const (
	UserTypeBuyer  UserType = "buyer"
	UserTypeSeller UserType = "seller"
)

// User is an account holder. Balance is in minor currency units and is mutated
// only by the escrow operations in internal/contracts.
type User struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	FullName  string          `json:"full_name"`
	UserType  UserType        `json:"user_type"`
	Email     *string         `json:"email,omitempty"`
	Balance   int64           `json:"balance"`
	Bio       *string         `json:"bio,omitempty"`
	AvatarURL *string         `json:"avatar_url,omitempty"`
	Language  *string         `json:"language,omitempty"`
	MusicData json.RawMessage `json:"music_data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
