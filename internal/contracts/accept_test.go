package contracts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancehub-io/lancehub/internal/config"
	"github.com/lancehub-io/lancehub/internal/models"
)

// seedOffer places a pending offer message from the seller in a direct chat
// and returns the message ID.
func seedOffer(t *testing.T, store *memStore, chatID, buyer, seller string, offer models.OfferData) string {
	t.Helper()
	if offer.Status == "" {
		offer.Status = models.InteractivePending
	}
	data, err := json.Marshal(offer)
	require.NoError(t, err)

	store.chats[chatID] = &models.Chat{ID: chatID, BuyerID: buyer, SellerID: seller}
	msgID := "msg-" + chatID
	store.messages[msgID] = &models.Message{
		ID:          msgID,
		ChatID:      chatID,
		SenderID:    seller,
		MessageType: models.MessageOffer,
		Data:        data,
	}
	return msgID
}

func TestAcceptOfferEndToEnd(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	store.jobs["job-1"] = &models.Job{ID: "job-1", BuyerID: buyer, Title: "landing page", Status: models.JobStatusOpen}
	svc := NewService(store, config.EscrowPolicy{})

	msgID := seedOffer(t, store, "chat-direct", buyer, seller, models.OfferData{
		Title:        "Landing page",
		Description:  "build the landing page",
		JobID:        strp("job-1"),
		ContractType: models.ContractOneTime,
		Amount:       400,
		Currency:     "USD",
	})

	res, err := svc.AcceptOffer(context.Background(), msgID, buyer)
	require.NoError(t, err)

	assert.Equal(t, models.ContractAccepted, res.Contract.Status)
	assert.Equal(t, int64(400), res.Contract.Amount)
	assert.Equal(t, buyer, res.Contract.BuyerID)
	assert.Equal(t, seller, res.Contract.SellerID)

	// escrow held
	assert.Equal(t, int64(600), store.users[buyer].Balance)

	// one pending milestone covering the full amount
	require.Len(t, res.Milestones, 1)
	assert.Equal(t, int64(400), res.Milestones[0].Amount)
	assert.Equal(t, models.MilestonePending, res.Milestones[0].Status)

	// contract chat with activation message
	require.NotNil(t, res.Chat.ContractID)
	assert.Equal(t, res.Contract.ID, *res.Chat.ContractID)
	require.NotNil(t, res.Activation)
	assert.Equal(t, models.MessageMilestoneActivated, res.Activation.MessageType)

	// job moved off the open market
	assert.Equal(t, models.JobStatusInProgress, store.jobs["job-1"].Status)

	// offer message is terminal now
	var data map[string]any
	require.NoError(t, json.Unmarshal(store.messages[msgID].Data, &data))
	assert.Equal(t, models.InteractiveAccepted, data["status"])

	// paying the milestone releases escrow to the seller
	_, err = svc.UpdateMilestoneStatus(context.Background(), res.Milestones[0].ID, models.MilestonePaid)
	require.NoError(t, err)
	assert.Equal(t, int64(400), store.users[seller].Balance)
}

func TestAcceptOfferInstallmentMilestones(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1500, 0)
	svc := NewService(store, config.EscrowPolicy{})

	msgID := seedOffer(t, store, "chat-1", buyer, seller, models.OfferData{
		Description:  "two phase build",
		ServiceID:    strp("svc-1"),
		ContractType: models.ContractInstallment,
		Milestones: []models.OfferMilestone{
			{Description: "phase one", Amount: 300},
			{Description: "phase two", Amount: 700},
		},
	})

	res, err := svc.AcceptOffer(context.Background(), msgID, buyer)
	require.NoError(t, err)

	// contract amount is the milestone sum, escrowed up front
	assert.Equal(t, int64(1000), res.Contract.Amount)
	assert.Equal(t, int64(500), store.users[buyer].Balance)

	require.Len(t, res.Milestones, 2)
	assert.Equal(t, 1, res.Milestones[0].Sequence)
	assert.Equal(t, int64(300), res.Milestones[0].Amount)
	assert.Equal(t, 2, res.Milestones[1].Sequence)
	assert.Equal(t, int64(700), res.Milestones[1].Amount)
}

func TestAcceptOfferSecondContractForJobRejected(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, _ := seedUsers(store, 2000, 0)
	store.users["seller-2"] = &models.User{ID: "seller-2", Username: "kim", UserType: models.UserTypeSeller}
	store.jobs["job-1"] = &models.Job{ID: "job-1", BuyerID: buyer, Status: models.JobStatusOpen}
	svc := NewService(store, config.EscrowPolicy{})

	offer := models.OfferData{JobID: strp("job-1"), ContractType: models.ContractOneTime, Amount: 400}
	first := seedOffer(t, store, "chat-a", buyer, "seller-1", offer)
	second := seedOffer(t, store, "chat-b", buyer, "seller-2", offer)

	_, err := svc.AcceptOffer(context.Background(), first, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), store.users[buyer].Balance)

	_, err = svc.AcceptOffer(context.Background(), second, buyer)
	require.ErrorIs(t, err, ErrContractExists)

	// nothing from the failed acceptance stuck: balance and offer status intact
	assert.Equal(t, int64(1600), store.users[buyer].Balance)
	var data map[string]any
	require.NoError(t, json.Unmarshal(store.messages[second].Data, &data))
	assert.Equal(t, models.InteractivePending, data["status"])
}

func TestAcceptOfferForeignJobRejected(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 2000, 0)
	store.users["victim"] = &models.User{ID: "victim", Username: "vik", UserType: models.UserTypeBuyer, Balance: 2000}
	store.jobs["victim-job"] = &models.Job{ID: "victim-job", BuyerID: "victim", Status: models.JobStatusOpen}
	svc := NewService(store, config.EscrowPolicy{})

	// offer in an unrelated buyer-seller chat names the victim's job
	hostile := seedOffer(t, store, "chat-a", buyer, seller, models.OfferData{
		JobID: strp("victim-job"), ContractType: models.ContractOneTime, Amount: 400,
	})
	_, err := svc.AcceptOffer(context.Background(), hostile, buyer)
	require.ErrorIs(t, err, ErrValidation)

	// nothing stuck: job still open, no escrow moved, offer back to pending
	assert.Equal(t, models.JobStatusOpen, store.jobs["victim-job"].Status)
	assert.Equal(t, int64(2000), store.users[buyer].Balance)
	assert.Empty(t, store.contracts)
	var data map[string]any
	require.NoError(t, json.Unmarshal(store.messages[hostile].Data, &data))
	assert.Equal(t, models.InteractivePending, data["status"])

	// the victim can still contract their own job
	own := seedOffer(t, store, "chat-b", "victim", seller, models.OfferData{
		JobID: strp("victim-job"), ContractType: models.ContractOneTime, Amount: 400,
	})
	_, err = svc.AcceptOffer(context.Background(), own, "victim")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, store.jobs["victim-job"].Status)
}

func TestAcceptOfferClosedJobConflicts(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 2000, 0)
	store.jobs["job-1"] = &models.Job{ID: "job-1", BuyerID: buyer, Status: models.JobStatusCompleted}
	svc := NewService(store, config.EscrowPolicy{})

	msgID := seedOffer(t, store, "chat-1", buyer, seller, models.OfferData{
		JobID: strp("job-1"), ContractType: models.ContractOneTime, Amount: 400,
	})
	_, err := svc.AcceptOffer(context.Background(), msgID, buyer)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(2000), store.users[buyer].Balance)
	assert.Empty(t, store.contracts)
}

func TestAcceptOfferInsufficientBalanceRollsBack(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 100, 0)
	svc := NewService(store, config.EscrowPolicy{})

	msgID := seedOffer(t, store, "chat-1", buyer, seller, models.OfferData{
		ServiceID:    strp("svc-1"),
		ContractType: models.ContractOneTime,
		Amount:       400,
	})

	_, err := svc.AcceptOffer(context.Background(), msgID, buyer)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, int64(100), store.users[buyer].Balance)
	assert.Empty(t, store.contracts)

	// the status patch ran inside the same transaction and must be undone
	var data map[string]any
	require.NoError(t, json.Unmarshal(store.messages[msgID].Data, &data))
	assert.Equal(t, models.InteractivePending, data["status"])
}

func TestAcceptOfferGuards(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	svc := NewService(store, config.EscrowPolicy{})

	msgID := seedOffer(t, store, "chat-1", buyer, seller, models.OfferData{
		ServiceID:    strp("svc-1"),
		ContractType: models.ContractOneTime,
		Amount:       400,
	})

	t.Run("sender cannot accept own offer", func(t *testing.T) {
		_, err := svc.AcceptOffer(context.Background(), msgID, seller)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("outsider cannot accept", func(t *testing.T) {
		_, err := svc.AcceptOffer(context.Background(), msgID, "someone-else")
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("text message is not an offer", func(t *testing.T) {
		content := "hello"
		store.messages["msg-text"] = &models.Message{
			ID: "msg-text", ChatID: "chat-1", SenderID: seller,
			MessageType: models.MessageText, Content: &content,
		}
		_, err := svc.AcceptOffer(context.Background(), "msg-text", buyer)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("already handled offer conflicts", func(t *testing.T) {
		_, err := svc.AcceptOffer(context.Background(), msgID, buyer)
		require.NoError(t, err)
		_, err = svc.AcceptOffer(context.Background(), msgID, buyer)
		require.ErrorIs(t, err, ErrConflict)
	})
}
