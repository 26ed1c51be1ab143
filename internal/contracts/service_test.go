package contracts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancehub-io/lancehub/internal/config"
	"github.com/lancehub-io/lancehub/internal/models"
)

func strp(s string) *string { return &s }

func seedUsers(store *memStore, buyerBalance, sellerBalance int64) (buyer, seller string) {
	store.users["buyer-1"] = &models.User{ID: "buyer-1", Username: "ada", UserType: models.UserTypeBuyer, Balance: buyerBalance}
	store.users["seller-1"] = &models.User{ID: "seller-1", Username: "sam", UserType: models.UserTypeSeller, Balance: sellerBalance}
	return "buyer-1", "seller-1"
}

func oneTimeInput(buyer, seller string, amount int64) CreateContractInput {
	return CreateContractInput{
		BuyerID:      buyer,
		SellerID:     seller,
		ServiceID:    strp("svc-1"),
		ContractType: models.ContractOneTime,
		Amount:       amount,
		Description:  "logo design",
		Currency:     "USD",
	}
}

func TestCreateContractEscrowsOneTimeAmount(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	svc := NewService(store, config.EscrowPolicy{})

	ct, err := svc.CreateContract(context.Background(), oneTimeInput(buyer, seller, 400))
	require.NoError(t, err)
	assert.Equal(t, models.ContractPending, ct.Status)
	assert.Equal(t, int64(600), store.users[buyer].Balance)
	require.Len(t, store.txns, 1)
	assert.Equal(t, "escrow_hold", store.txns[0].Status)
	assert.Equal(t, ct.ID, store.txns[0].Reference)
}

func TestCreateContractRollsBackDebitOnFailure(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	store.failOn["InsertContract"] = errors.New("connection reset")
	svc := NewService(store, config.EscrowPolicy{})

	_, err := svc.CreateContract(context.Background(), oneTimeInput(buyer, seller, 400))
	require.Error(t, err)

	// the debit happened inside the transaction and must be undone
	assert.Equal(t, int64(1000), store.users[buyer].Balance)
	assert.Empty(t, store.txns)
	assert.Empty(t, store.contracts)
}

func TestCreateContractInsufficientBalance(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 100, 0)
	svc := NewService(store, config.EscrowPolicy{})

	_, err := svc.CreateContract(context.Background(), oneTimeInput(buyer, seller, 400))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(100), store.users[buyer].Balance)
	assert.Empty(t, store.contracts)
}

func TestCreateContractForeignJobRejected(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	store.jobs["victim-job"] = &models.Job{ID: "victim-job", BuyerID: "victim", Status: models.JobStatusOpen}
	svc := NewService(store, config.EscrowPolicy{})

	in := oneTimeInput(buyer, seller, 400)
	in.ServiceID = nil
	in.JobID = strp("victim-job")
	_, err := svc.CreateContract(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, models.JobStatusOpen, store.jobs["victim-job"].Status)
	assert.Equal(t, int64(1000), store.users[buyer].Balance)
	assert.Empty(t, store.contracts)
}

func TestCreateContractValidation(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	svc := NewService(store, config.EscrowPolicy{})

	cases := []struct {
		name   string
		mutate func(*CreateContractInput)
	}{
		{"no subject", func(in *CreateContractInput) { in.ServiceID = nil }},
		{"both subjects", func(in *CreateContractInput) { in.JobID = strp("job-1") }},
		{"zero amount", func(in *CreateContractInput) { in.Amount = 0 }},
		{"same parties", func(in *CreateContractInput) { in.SellerID = in.BuyerID }},
		{"unknown type", func(in *CreateContractInput) { in.ContractType = "retainer" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := oneTimeInput(buyer, seller, 400)
			tc.mutate(&in)
			_, err := svc.CreateContract(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	// no escrow moved for any rejected input
	assert.Equal(t, int64(1000), store.users[buyer].Balance)
}

func installmentContract(t *testing.T, svc *Service, store *memStore, buyer, seller string, amount int64) *models.Contract {
	t.Helper()
	ct, err := svc.CreateContract(context.Background(), CreateContractInput{
		BuyerID:      buyer,
		SellerID:     seller,
		ServiceID:    strp("svc-1"),
		ContractType: models.ContractInstallment,
		Amount:       amount,
		Description:  "site build",
		Currency:     "USD",
	})
	require.NoError(t, err)
	return ct
}

func TestMilestoneLifecyclePaysSellerOnce(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 50)
	svc := NewService(store, config.EscrowPolicy{})
	ct := installmentContract(t, svc, store, buyer, seller, 1000)

	// installment contracts debit per milestone, not at creation
	assert.Equal(t, int64(1000), store.users[buyer].Balance)

	m, err := svc.CreateMilestone(context.Background(), CreateMilestoneInput{
		ContractID:  ct.ID,
		Description: "first drop",
		Amount:      300,
		Sequence:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), store.users[buyer].Balance)
	assert.Equal(t, models.MilestonePending, m.Status)

	paid, err := svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestonePaid)
	require.NoError(t, err)
	assert.Equal(t, models.MilestonePaid, paid.Status)
	assert.Equal(t, int64(350), store.users[seller].Balance)

	// a second payment attempt must not credit again
	_, err = svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestonePaid)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(350), store.users[seller].Balance)
}

func TestMilestoneApproveThenPayCreditsOnce(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	svc := NewService(store, config.EscrowPolicy{})
	ct := installmentContract(t, svc, store, buyer, seller, 1000)

	m, err := svc.CreateMilestone(context.Background(), CreateMilestoneInput{ContractID: ct.ID, Amount: 300})
	require.NoError(t, err)

	_, err = svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestoneApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(300), store.users[seller].Balance)

	// approval already released the escrow; paying is a pure status change
	paid, err := svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestonePaid)
	require.NoError(t, err)
	assert.Equal(t, models.MilestonePaid, paid.Status)
	assert.Equal(t, int64(300), store.users[seller].Balance)
}

func TestMilestoneRejectRefundPolicy(t *testing.T) {
	t.Parallel()

	t.Run("refund disabled keeps funds escrowed", func(t *testing.T) {
		store := newMemStore()
		buyer, seller := seedUsers(store, 1000, 0)
		svc := NewService(store, config.EscrowPolicy{RefundOnReject: false})
		ct := installmentContract(t, svc, store, buyer, seller, 1000)

		m, err := svc.CreateMilestone(context.Background(), CreateMilestoneInput{ContractID: ct.ID, Amount: 300})
		require.NoError(t, err)

		_, err = svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestoneRejected)
		require.NoError(t, err)
		assert.Equal(t, int64(700), store.users[buyer].Balance)
		assert.Equal(t, int64(0), store.users[seller].Balance)
	})

	t.Run("refund enabled returns escrow to buyer", func(t *testing.T) {
		store := newMemStore()
		buyer, seller := seedUsers(store, 1000, 0)
		svc := NewService(store, config.EscrowPolicy{RefundOnReject: true})
		ct := installmentContract(t, svc, store, buyer, seller, 1000)

		m, err := svc.CreateMilestone(context.Background(), CreateMilestoneInput{ContractID: ct.ID, Amount: 300})
		require.NoError(t, err)

		_, err = svc.UpdateMilestoneStatus(context.Background(), m.ID, models.MilestoneRejected)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), store.users[buyer].Balance)
		assert.Equal(t, int64(0), store.users[seller].Balance)
	})
}

func TestUpdateContractAmountReappliesEscrow(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 1000, 0)
	svc := NewService(store, config.EscrowPolicy{})

	ct, err := svc.CreateContract(context.Background(), oneTimeInput(buyer, seller, 400))
	require.NoError(t, err)
	assert.Equal(t, int64(600), store.users[buyer].Balance)

	raise := int64(700)
	_, err = svc.UpdateContract(context.Background(), ct.ID, ContractPatch{Amount: &raise})
	require.NoError(t, err)
	assert.Equal(t, int64(300), store.users[buyer].Balance)

	lower := int64(500)
	updated, err := svc.UpdateContract(context.Background(), ct.ID, ContractPatch{Amount: &lower})
	require.NoError(t, err)
	assert.Equal(t, int64(500), updated.Amount)
	assert.Equal(t, int64(500), store.users[buyer].Balance)

	bad := int64(0)
	_, err = svc.UpdateContract(context.Background(), ct.ID, ContractPatch{Amount: &bad})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUserOrderStatsBuckets(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	buyer, seller := seedUsers(store, 10000, 0)
	svc := NewService(store, config.EscrowPolicy{})
	ct := installmentContract(t, svc, store, buyer, seller, 1000)

	amounts := []int64{100, 200, 300, 400}
	var ids []string
	for i, a := range amounts {
		m, err := svc.CreateMilestone(context.Background(), CreateMilestoneInput{ContractID: ct.ID, Amount: a, Sequence: i + 1})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	_, err := svc.UpdateMilestoneStatus(context.Background(), ids[0], models.MilestoneApproved)
	require.NoError(t, err)
	_, err = svc.UpdateMilestoneStatus(context.Background(), ids[1], models.MilestonePaid)
	require.NoError(t, err)
	_, err = svc.UpdateMilestoneStatus(context.Background(), ids[2], models.MilestoneRejected)
	require.NoError(t, err)

	stats, err := svc.UserOrderStats(context.Background(), seller, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stats.TotalAmount)
	assert.Equal(t, int64(300), stats.Settled)
	// without refund-on-reject, rejected amounts stay escrowed
	assert.Equal(t, int64(700), stats.InEscrow)
	assert.Equal(t, int64(0), stats.Refunded)

	_, err = svc.UserOrderStats(context.Background(), seller, "admin")
	require.ErrorIs(t, err, ErrValidation)
}
