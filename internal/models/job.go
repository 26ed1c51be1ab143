package models

import "time"

type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
)

// Job is a buyer's project posting.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Budget      int64     `json:"budget"`
	BuyerID     string    `json:"buyer_id"`
	Status      JobStatus `json:"status"`
	Currency    string    `json:"currency"`
	SkillLevels []string  `json:"skill_levels"`
	Files       []string  `json:"files"`
	CreatedAt   time.Time `json:"created_at"`
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// JobApplication links a seller to a job. One per {job, seller} pair,
// enforced by a unique index.
type JobApplication struct {
	ID        string            `json:"id"`
	JobID     string            `json:"job_id"`
	SellerID  string            `json:"seller_id"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}
