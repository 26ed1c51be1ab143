package models

import (
	"encoding/json"
	"time"
)

// Chat is a conversation between a buyer and a seller. At most one direct
// chat (contract_id null) exists per pair; contract-scoped chats are keyed by
// the full triple.
type Chat struct {
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	ContractID *string   `json:"contract_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessageType string

const (
	MessageText               MessageType = "text"
	MessageImage              MessageType = "image"
	MessageOffer              MessageType = "offer"
	MessageMilestone          MessageType = "milestone"
	MessageSystemEvent        MessageType = "system_event"
	MessageMilestoneActivated MessageType = "milestone_activated"
	MessageMilestoneCompleted MessageType = "milestone_completed"
	MessageAudio              MessageType = "audio"
	MessageFile               MessageType = "file"
	MessageHireRequest        MessageType = "hire_request"
)

// Message rows are append-only; only Read and the payload's status field are
// ever mutated after insert.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	SenderID    string          `json:"sender_id"`
	Content     *string         `json:"content,omitempty"`
	MessageType MessageType     `json:"message_type"`
	Data        json.RawMessage `json:"data,omitempty"`
	Read        bool            `json:"read"`
	CreatedAt   time.Time       `json:"created_at"`
}
