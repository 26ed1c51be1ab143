package models

import "time"

// Transaction is an audit row written alongside every balance movement.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`   // debit | credit
	Status    string    `json:"status"` // escrow_hold | escrow_release | refund | topup
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}
