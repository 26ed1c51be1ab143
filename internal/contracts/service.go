package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lancehub-io/lancehub/internal/config"
	"github.com/lancehub-io/lancehub/internal/models"
)

func newUUID() string { return uuid.New().String() }

// Service runs the escrow state machine. Every operation that moves money is
// a single store transaction: the debit, the dependent inserts and the status
// writes commit or roll back together.
type Service struct {
	store  Store
	policy config.EscrowPolicy
}

func NewService(store Store, policy config.EscrowPolicy) *Service {
	return &Service{store: store, policy: policy}
}

type CreateContractInput struct {
	BuyerID      string
	SellerID     string
	JobID        *string
	ServiceID    *string
	Title        *string
	ContractType models.ContractType
	Amount       int64
	Description  string
	Attachments  []string
	Currency     string
}

// CreateContract opens a pending contract. One-time contracts escrow the full
// amount immediately; installment contracts defer the debit to milestone
// creation.
func (s *Service) CreateContract(ctx context.Context, in CreateContractInput) (*models.Contract, error) {
	ct := &models.Contract{
		ID:           newUUID(),
		BuyerID:      in.BuyerID,
		SellerID:     in.SellerID,
		JobID:        in.JobID,
		ServiceID:    in.ServiceID,
		Title:        in.Title,
		ContractType: in.ContractType,
		Status:       models.ContractPending,
		Amount:       in.Amount,
		Description:  in.Description,
		Attachments:  in.Attachments,
		Currency:     in.Currency,
	}
	if err := ct.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetUser(ctx, in.BuyerID); err != nil {
			return err
		}
		if in.JobID != nil {
			if err := guardJobSubject(ctx, tx, *in.JobID, in.BuyerID); err != nil {
				return err
			}
		}
		if ct.ContractType == models.ContractOneTime {
			if err := tx.DebitBalance(ctx, in.BuyerID, ct.Amount); err != nil {
				return err
			}
			if err := tx.RecordTransaction(ctx, &models.Transaction{
				ID: newUUID(), UserID: in.BuyerID, Amount: ct.Amount,
				Type: "debit", Status: "escrow_hold", Reference: ct.ID,
			}); err != nil {
				return err
			}
		}
		return tx.InsertContract(ctx, ct)
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

// UpdateContract patches contract fields. An amount change on a one-time
// contract re-applies the escrow delta against the buyer's balance inside the
// same transaction.
func (s *Service) UpdateContract(ctx context.Context, id string, patch ContractPatch) (*models.Contract, error) {
	if patch.Amount != nil && *patch.Amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidation, models.ErrContractAmount)
	}

	var updated *models.Contract
	err := s.store.WithTx(ctx, func(tx Store) error {
		ct, err := tx.GetContract(ctx, id)
		if err != nil {
			return err
		}

		if patch.Amount != nil && ct.ContractType == models.ContractOneTime {
			delta := *patch.Amount - ct.Amount
			switch {
			case delta > 0:
				if err := tx.DebitBalance(ctx, ct.BuyerID, delta); err != nil {
					return err
				}
				if err := tx.RecordTransaction(ctx, &models.Transaction{
					ID: newUUID(), UserID: ct.BuyerID, Amount: delta,
					Type: "debit", Status: "escrow_hold", Reference: ct.ID,
				}); err != nil {
					return err
				}
			case delta < 0:
				if err := tx.CreditBalance(ctx, ct.BuyerID, -delta); err != nil {
					return err
				}
				if err := tx.RecordTransaction(ctx, &models.Transaction{
					ID: newUUID(), UserID: ct.BuyerID, Amount: -delta,
					Type: "credit", Status: "refund", Reference: ct.ID,
				}); err != nil {
					return err
				}
			}
		}

		updated, err = tx.UpdateContract(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateContractStatus is a thin wrapper over UpdateContract.
func (s *Service) UpdateContractStatus(ctx context.Context, id string, status models.ContractStatus) (*models.Contract, error) {
	switch status {
	case models.ContractPending, models.ContractAccepted, models.ContractRejected, models.ContractCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown contract status %q", ErrValidation, status)
	}
	return s.UpdateContract(ctx, id, ContractPatch{Status: &status})
}

type CreateMilestoneInput struct {
	ContractID  string
	Description string
	Amount      int64
	Sequence    int
	DueDate     *time.Time
}

// CreateMilestone escrows funds for one milestone: the buyer's balance drops
// by the amount the moment the pending milestone row exists, atomically.
func (s *Service) CreateMilestone(ctx context.Context, in CreateMilestoneInput) (*models.Milestone, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: milestone amount must be positive", ErrValidation)
	}
	if in.Sequence <= 0 {
		in.Sequence = 1
	}

	m := &models.Milestone{
		ID:          newUUID(),
		ContractID:  in.ContractID,
		Description: in.Description,
		DueDate:     in.DueDate,
		Amount:      in.Amount,
		Status:      models.MilestonePending,
		Sequence:    in.Sequence,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		ct, err := tx.GetContract(ctx, in.ContractID)
		if err != nil {
			return err
		}
		if err := tx.DebitBalance(ctx, ct.BuyerID, in.Amount); err != nil {
			return err
		}
		if err := tx.InsertMilestone(ctx, m); err != nil {
			return err
		}
		return tx.RecordTransaction(ctx, &models.Transaction{
			ID: newUUID(), UserID: ct.BuyerID, Amount: in.Amount,
			Type: "debit", Status: "escrow_hold", Reference: m.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMilestoneStatus drives the escrow release. Approving or paying a
// milestone credits the seller exactly once: the credit rides on the status
// transition out of pending, so repeated calls cannot double-pay. Rejection
// refunds the buyer only when the configured policy says so.
func (s *Service) UpdateMilestoneStatus(ctx context.Context, id string, to models.MilestoneStatus) (*models.Milestone, error) {
	switch to {
	case models.MilestoneApproved, models.MilestoneRejected, models.MilestonePaid:
	default:
		return nil, fmt.Errorf("%w: unsupported milestone status %q", ErrValidation, to)
	}

	var out *models.Milestone
	err := s.store.WithTx(ctx, func(tx Store) error {
		m, err := tx.GetMilestone(ctx, id)
		if err != nil {
			return err
		}
		ct, err := tx.GetContract(ctx, m.ContractID)
		if err != nil {
			return err
		}

		switch to {
		case models.MilestoneApproved:
			ok, err := tx.TransitionMilestone(ctx, id, []models.MilestoneStatus{models.MilestonePending}, to)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: milestone is %s", ErrConflict, m.Status)
			}
			if err := s.creditSeller(ctx, tx, ct, m); err != nil {
				return err
			}

		case models.MilestonePaid:
			// approved milestones were credited at approval time
			ok, err := tx.TransitionMilestone(ctx, id, []models.MilestoneStatus{models.MilestoneApproved}, to)
			if err != nil {
				return err
			}
			if !ok {
				ok, err = tx.TransitionMilestone(ctx, id, []models.MilestoneStatus{models.MilestonePending}, to)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: milestone is %s", ErrConflict, m.Status)
				}
				if err := s.creditSeller(ctx, tx, ct, m); err != nil {
					return err
				}
			}

		case models.MilestoneRejected:
			ok, err := tx.TransitionMilestone(ctx, id, []models.MilestoneStatus{models.MilestonePending}, to)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: milestone is %s", ErrConflict, m.Status)
			}
			if s.policy.RefundOnReject {
				if err := tx.CreditBalance(ctx, ct.BuyerID, m.Amount); err != nil {
					return err
				}
				if err := tx.RecordTransaction(ctx, &models.Transaction{
					ID: newUUID(), UserID: ct.BuyerID, Amount: m.Amount,
					Type: "credit", Status: "refund", Reference: m.ID,
				}); err != nil {
					return err
				}
			}
		}

		out, err = tx.GetMilestone(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// guardJobSubject verifies a job-backed contract targets the buyer's own,
// still-open job. Without it an offer could name any job id and acceptance
// would consume the active-contract slot of a job the buyer never posted.
func guardJobSubject(ctx context.Context, tx Store, jobID, buyerID string) error {
	job, err := tx.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.BuyerID != buyerID {
		return fmt.Errorf("%w: job %s does not belong to the buyer", ErrValidation, jobID)
	}
	if job.Status != models.JobStatusOpen {
		return fmt.Errorf("%w: job %s is %s", ErrConflict, jobID, job.Status)
	}
	return nil
}

func (s *Service) creditSeller(ctx context.Context, tx Store, ct *models.Contract, m *models.Milestone) error {
	if err := tx.CreditBalance(ctx, ct.SellerID, m.Amount); err != nil {
		return err
	}
	return tx.RecordTransaction(ctx, &models.Transaction{
		ID: newUUID(), UserID: ct.SellerID, Amount: m.Amount,
		Type: "credit", Status: "escrow_release", Reference: m.ID,
	})
}

// OrderStats aggregates milestone amounts for a user in one role.
type OrderStats struct {
	TotalAmount int64 `json:"total_amount"`
	Settled     int64 `json:"settled"`
	InEscrow    int64 `json:"in_escrow"`
	Refunded    int64 `json:"refunded"`
}

// UserOrderStats is a pure read: milestone amounts bucketed by status.
// Rejected amounts count as refunded only under the refund-on-reject policy;
// otherwise they remain in escrow.
func (s *Service) UserOrderStats(ctx context.Context, userID, role string) (*OrderStats, error) {
	if role != "buyer" && role != "seller" {
		return nil, fmt.Errorf("%w: role must be buyer or seller", ErrValidation)
	}
	totals, err := s.store.MilestoneTotals(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	stats := &OrderStats{
		Settled:  totals[models.MilestoneApproved] + totals[models.MilestonePaid],
		InEscrow: totals[models.MilestonePending],
	}
	if s.policy.RefundOnReject {
		stats.Refunded = totals[models.MilestoneRejected]
	} else {
		stats.InEscrow += totals[models.MilestoneRejected]
	}
	for _, v := range totals {
		stats.TotalAmount += v
	}
	return stats, nil
}

// Milestones lists a contract's milestones in sequence order.
func (s *Service) Milestones(ctx context.Context, contractID string) ([]models.Milestone, error) {
	return s.store.MilestonesByContract(ctx, contractID)
}

// Contract fetches one contract.
func (s *Service) Contract(ctx context.Context, id string) (*models.Contract, error) {
	return s.store.GetContract(ctx, id)
}

// ContractsFor lists all contracts a user participates in.
func (s *Service) ContractsFor(ctx context.Context, userID string) ([]models.Contract, error) {
	return s.store.ListContracts(ctx, userID)
}

func marshalMilestoneEvent(m *models.Milestone, status string) json.RawMessage {
	b, _ := json.Marshal(models.MilestoneEventData{
		MilestoneID: m.ID,
		ContractID:  m.ContractID,
		Description: m.Description,
		Amount:      m.Amount,
		Sequence:    m.Sequence,
		Status:      status,
	})
	return b
}
