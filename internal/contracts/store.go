package contracts

import (
	"context"

	"github.com/lancehub-io/lancehub/internal/models"
)

// ContractPatch carries the updatable contract fields. Nil means untouched.
type ContractPatch struct {
	Title       *string
	Description *string
	Amount      *int64
	Status      *models.ContractStatus
	Attachments []string
}

// Store is the persistence boundary of the escrow core. Every multi-step
// money operation runs inside WithTx; the balance methods are single
// conditional statements so a debit can never partially apply.
type Store interface {
	// WithTx runs fn against a transactional view of the store. Any error
	// rolls the whole unit back.
	WithTx(ctx context.Context, fn func(Store) error) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	// DebitBalance subtracts amount from the user's balance only if the
	// balance covers it, returning ErrInsufficientBalance otherwise.
	DebitBalance(ctx context.Context, userID string, amount int64) error
	CreditBalance(ctx context.Context, userID string, amount int64) error

	InsertContract(ctx context.Context, ct *models.Contract) error
	GetContract(ctx context.Context, id string) (*models.Contract, error)
	UpdateContract(ctx context.Context, id string, patch ContractPatch) (*models.Contract, error)
	ListContracts(ctx context.Context, userID string) ([]models.Contract, error)

	InsertMilestone(ctx context.Context, m *models.Milestone) error
	GetMilestone(ctx context.Context, id string) (*models.Milestone, error)
	// TransitionMilestone moves a milestone from one of the given statuses to
	// the target status. It reports false, without error, when the milestone
	// exists but none of the from statuses matched.
	TransitionMilestone(ctx context.Context, id string, from []models.MilestoneStatus, to models.MilestoneStatus) (bool, error)
	MilestonesByContract(ctx context.Context, contractID string) ([]models.Milestone, error)
	// MilestoneTotals sums milestone amounts per status across every contract
	// where the user holds the given role ("buyer" or "seller").
	MilestoneTotals(ctx context.Context, userID, role string) (map[models.MilestoneStatus]int64, error)

	GetJob(ctx context.Context, id string) (*models.Job, error)
	SetJobStatus(ctx context.Context, jobID string, status models.JobStatus) error

	GetChat(ctx context.Context, id string) (*models.Chat, error)
	FindOrCreateChat(ctx context.Context, buyerID, sellerID string, contractID *string) (*models.Chat, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// PatchMessageStatus rewrites data.status on an interactive message, but
	// only when its current value matches from. Reports false when the guard
	// failed.
	PatchMessageStatus(ctx context.Context, messageID, from, to string) (bool, error)

	RecordTransaction(ctx context.Context, t *models.Transaction) error
}
