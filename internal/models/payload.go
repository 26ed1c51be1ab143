package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Interactive payload statuses for offer and hire_request messages.
const (
	InteractivePending   = "pending"
	InteractiveAccepted  = "accepted"
	InteractiveDeclined  = "declined"
	InteractiveCancelled = "cancelled"
)

// OfferMilestone is one proposed installment inside an offer.
type OfferMilestone struct {
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// OfferData is the payload of offer and hire_request messages. An offer is
// sent by the seller, a hire request by the buyer; both carry the same terms.
type OfferData struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	JobID        *string          `json:"job_id,omitempty"`
	ServiceID    *string          `json:"service_id,omitempty"`
	ContractType ContractType     `json:"contract_type"`
	Amount       int64            `json:"amount"`
	Currency     string           `json:"currency"`
	Milestones   []OfferMilestone `json:"milestones,omitempty"`
	Status       string           `json:"status"`
}

// TotalAmount is the sum the buyer must escrow on acceptance.
func (o *OfferData) TotalAmount() int64 {
	if o.ContractType == ContractInstallment {
		var sum int64
		for _, m := range o.Milestones {
			sum += m.Amount
		}
		return sum
	}
	return o.Amount
}

// MilestoneEventData snapshots a milestone for milestone, milestone_activated
// and milestone_completed messages.
type MilestoneEventData struct {
	MilestoneID string `json:"milestone_id"`
	ContractID  string `json:"contract_id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Sequence    int    `json:"sequence"`
	Status      string `json:"status"`
}

// FileData describes an uploaded attachment for image, audio and file messages.
type FileData struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"` // seconds, audio only
}

// SystemEventData carries machine-generated notices rendered inline in a chat.
type SystemEventData struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

var ErrUnknownMessageType = errors.New("unknown message_type")

// DecodeMessageData decodes a raw payload into the variant matching the
// message type. Decode failure is a hard error; callers must not substitute
// defaults for malformed rows.
func DecodeMessageData(t MessageType, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(raw) == 0 {
			return nil, fmt.Errorf("message_type %s requires a data payload", t)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return v, nil
	}

	switch t {
	case MessageText:
		if len(raw) != 0 {
			return nil, fmt.Errorf("text messages carry no data payload")
		}
		return nil, nil
	case MessageOffer, MessageHireRequest:
		v, err := decode(&OfferData{})
		if err != nil {
			return nil, err
		}
		o := v.(*OfferData)
		if err := validateOffer(o); err != nil {
			return nil, err
		}
		return o, nil
	case MessageMilestone, MessageMilestoneActivated, MessageMilestoneCompleted:
		return decode(&MilestoneEventData{})
	case MessageImage, MessageAudio, MessageFile:
		v, err := decode(&FileData{})
		if err != nil {
			return nil, err
		}
		if v.(*FileData).URL == "" {
			return nil, errors.New("file payload missing url")
		}
		return v, nil
	case MessageSystemEvent:
		return decode(&SystemEventData{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, t)
	}
}

func validateOffer(o *OfferData) error {
	if (o.JobID == nil) == (o.ServiceID == nil) {
		return ErrContractSubject
	}
	switch o.ContractType {
	case ContractOneTime:
		if o.Amount <= 0 {
			return ErrContractAmount
		}
	case ContractInstallment:
		if len(o.Milestones) == 0 {
			return errors.New("installment offer requires at least one milestone")
		}
		for _, m := range o.Milestones {
			if m.Amount <= 0 {
				return ErrContractAmount
			}
		}
	default:
		return fmt.Errorf("unknown contract_type: %q", o.ContractType)
	}
	switch o.Status {
	case InteractivePending, InteractiveAccepted, InteractiveDeclined, InteractiveCancelled:
		return nil
	default:
		return fmt.Errorf("unknown offer status: %q", o.Status)
	}
}
