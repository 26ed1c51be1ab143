package contracts

import (
	"context"
	"fmt"

	"github.com/lancehub-io/lancehub/internal/models"
)

// AcceptResult is everything the caller needs to render and broadcast after a
// successful offer acceptance.
type AcceptResult struct {
	Contract   *models.Contract   `json:"contract"`
	Chat       *models.Chat       `json:"chat"`
	Milestones []models.Milestone `json:"milestones"`
	Activation *models.Message    `json:"activation_message"`
}

// AcceptOffer turns an offer or hire_request message into a live contract.
// The whole composite — offer status patch, contract insert, escrow debit,
// milestone rows, contract chat, activation message, job status — commits or
// rolls back as one unit. The partial unique index on contracts(job_id)
// rejects a second acceptance for the same job before any balance moves.
func (s *Service) AcceptOffer(ctx context.Context, messageID, acceptorID string) (*AcceptResult, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.MessageType != models.MessageOffer && msg.MessageType != models.MessageHireRequest {
		return nil, fmt.Errorf("%w: message %s is not an offer", ErrValidation, messageID)
	}

	decoded, err := models.DecodeMessageData(msg.MessageType, msg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	offer := decoded.(*models.OfferData)

	chat, err := s.store.GetChat(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}
	if acceptorID != chat.BuyerID && acceptorID != chat.SellerID {
		return nil, fmt.Errorf("%w: not a participant in this chat", ErrValidation)
	}
	if acceptorID == msg.SenderID {
		return nil, fmt.Errorf("%w: the sender cannot accept their own offer", ErrValidation)
	}

	total := offer.TotalAmount()
	if total <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidation, models.ErrContractAmount)
	}

	result := &AcceptResult{}
	err = s.store.WithTx(ctx, func(tx Store) error {
		ok, err := tx.PatchMessageStatus(ctx, messageID, models.InteractivePending, models.InteractiveAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: offer is no longer pending", ErrConflict)
		}

		var title *string
		if offer.Title != "" {
			title = &offer.Title
		}
		ct := &models.Contract{
			ID:           newUUID(),
			BuyerID:      chat.BuyerID,
			SellerID:     chat.SellerID,
			JobID:        offer.JobID,
			ServiceID:    offer.ServiceID,
			Title:        title,
			ContractType: offer.ContractType,
			Status:       models.ContractAccepted,
			Amount:       total,
			Description:  offer.Description,
			Currency:     offer.Currency,
		}
		if err := ct.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := tx.InsertContract(ctx, ct); err != nil {
			return err
		}
		// ordered after the insert so a duplicate acceptance of the same job
		// surfaces as ErrContractExists, not as a closed-job conflict
		if ct.JobID != nil {
			if err := guardJobSubject(ctx, tx, *ct.JobID, ct.BuyerID); err != nil {
				return err
			}
		}
		result.Contract = ct

		if err := tx.DebitBalance(ctx, chat.BuyerID, total); err != nil {
			return err
		}
		if err := tx.RecordTransaction(ctx, &models.Transaction{
			ID: newUUID(), UserID: chat.BuyerID, Amount: total,
			Type: "debit", Status: "escrow_hold", Reference: ct.ID,
		}); err != nil {
			return err
		}

		contractChat, err := tx.FindOrCreateChat(ctx, chat.BuyerID, chat.SellerID, &ct.ID)
		if err != nil {
			return err
		}
		result.Chat = contractChat

		proposed := offer.Milestones
		if ct.ContractType == models.ContractOneTime {
			proposed = []models.OfferMilestone{{Description: offer.Description, Amount: total}}
		}
		for i, p := range proposed {
			m := &models.Milestone{
				ID:          newUUID(),
				ContractID:  ct.ID,
				Description: p.Description,
				DueDate:     p.DueDate,
				Amount:      p.Amount,
				Status:      models.MilestonePending,
				Sequence:    i + 1,
			}
			if err := tx.InsertMilestone(ctx, m); err != nil {
				return err
			}
			result.Milestones = append(result.Milestones, *m)
		}

		first := &result.Milestones[0]
		activation := &models.Message{
			ID:          newUUID(),
			ChatID:      contractChat.ID,
			SenderID:    acceptorID,
			MessageType: models.MessageMilestoneActivated,
			Data:        marshalMilestoneEvent(first, string(models.MilestonePending)),
		}
		if err := tx.InsertMessage(ctx, activation); err != nil {
			return err
		}
		result.Activation = activation

		if offer.JobID != nil {
			if err := tx.SetJobStatus(ctx, *offer.JobID, models.JobStatusInProgress); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
