package models

import (
	"errors"
	"time"
)

type ContractType string

const (
	ContractOneTime     ContractType = "one-time"
	ContractInstallment ContractType = "installment"
)

type ContractStatus string

const (
	ContractPending   ContractStatus = "pending"
	ContractAccepted  ContractStatus = "accepted"
	ContractRejected  ContractStatus = "rejected"
	ContractCompleted ContractStatus = "completed"
)

// Contract binds a buyer and seller over exactly one job or one service.
type Contract struct {
	ID           string         `json:"id"`
	BuyerID      string         `json:"buyer_id"`
	SellerID     string         `json:"seller_id"`
	JobID        *string        `json:"job_id,omitempty"`
	ServiceID    *string        `json:"service_id,omitempty"`
	Title        *string        `json:"title,omitempty"`
	ContractType ContractType   `json:"contract_type"`
	Status       ContractStatus `json:"status"`
	Amount       int64          `json:"amount"`
	Description  string         `json:"description"`
	Attachments  []string       `json:"attachments"`
	Currency     string         `json:"currency"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

var (
	ErrContractSubject = errors.New("contract must reference exactly one of job_id or service_id")
	ErrContractAmount  = errors.New("contract amount must be positive")
	ErrContractParties = errors.New("contract requires distinct buyer_id and seller_id")
)

// Validate checks the structural invariants every persisted contract must hold.
func (c *Contract) Validate() error {
	if (c.JobID == nil) == (c.ServiceID == nil) {
		return ErrContractSubject
	}
	if c.Amount <= 0 {
		return ErrContractAmount
	}
	if c.BuyerID == "" || c.SellerID == "" || c.BuyerID == c.SellerID {
		return ErrContractParties
	}
	switch c.ContractType {
	case ContractOneTime, ContractInstallment:
	default:
		return errors.New("unknown contract_type: " + string(c.ContractType))
	}
	return nil
}

type MilestoneStatus string

const (
	MilestonePending  MilestoneStatus = "pending"
	MilestoneApproved MilestoneStatus = "approved"
	MilestoneRejected MilestoneStatus = "rejected"
	MilestonePaid     MilestoneStatus = "paid"
)

// Milestone is an escrowed slice of a contract's amount. Funds leave the
// buyer's balance when the milestone is created and reach the seller when it
// is approved or paid.
type Milestone struct {
	ID          string          `json:"id"`
	ContractID  string          `json:"contract_id"`
	Description string          `json:"description"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Amount      int64           `json:"amount"`
	Status      MilestoneStatus `json:"status"`
	Sequence    int             `json:"sequence"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
