package alerts

import "time"

// Task type constants
const (
	TaskMessageNew       = "email:message_new"
	TaskOfferReceived    = "email:offer_received"
	TaskContractAccepted = "email:contract_accepted"
	TaskMilestonePaid    = "email:milestone_paid"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// New chat message payload (sent to the recipient)
type MessageNewPayload struct {
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
}

// Offer received payload (sent to the recipient of an offer or hire request)
type OfferReceivedPayload struct {
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
}

// Contract accepted payload (sent to both parties)
type ContractAcceptedPayload struct {
	ContractID string    `json:"contract_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	Amount     int64     `json:"amount"`
	SentAt     time.Time `json:"sent_at"`
}

// Milestone paid payload (sent to the seller after escrow release)
type MilestonePaidPayload struct {
	ContractID  string    `json:"contract_id"`
	MilestoneID string    `json:"milestone_id"`
	SellerID    string    `json:"seller_id"`
	Amount      int64     `json:"amount"`
	SentAt      time.Time `json:"sent_at"`
}
