package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestDecodeMessageDataVariants(t *testing.T) {
	t.Parallel()

	t.Run("text carries no payload", func(t *testing.T) {
		v, err := DecodeMessageData(MessageText, nil)
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = DecodeMessageData(MessageText, json.RawMessage(`{"x":1}`))
		require.Error(t, err)
	})

	t.Run("offer decodes into OfferData", func(t *testing.T) {
		raw := json.RawMessage(`{
			"title": "Logo",
			"description": "logo design",
			"service_id": "svc-1",
			"contract_type": "one-time",
			"amount": 400,
			"currency": "USD",
			"status": "pending"
		}`)
		v, err := DecodeMessageData(MessageOffer, raw)
		require.NoError(t, err)
		offer, ok := v.(*OfferData)
		require.True(t, ok)
		assert.Equal(t, int64(400), offer.Amount)
		assert.Equal(t, int64(400), offer.TotalAmount())
	})

	t.Run("hire request uses the offer payload", func(t *testing.T) {
		raw := json.RawMessage(`{
			"job_id": "job-1",
			"contract_type": "installment",
			"milestones": [
				{"description": "phase one", "amount": 300},
				{"description": "phase two", "amount": 700}
			],
			"status": "pending"
		}`)
		v, err := DecodeMessageData(MessageHireRequest, raw)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), v.(*OfferData).TotalAmount())
	})

	t.Run("file payload requires url", func(t *testing.T) {
		_, err := DecodeMessageData(MessageImage, json.RawMessage(`{"name":"a.png"}`))
		require.Error(t, err)

		v, err := DecodeMessageData(MessageFile, json.RawMessage(`{"url":"https://x/f.pdf","name":"f.pdf","size":12}`))
		require.NoError(t, err)
		assert.Equal(t, "f.pdf", v.(*FileData).Name)
	})

	t.Run("milestone events decode", func(t *testing.T) {
		raw := json.RawMessage(`{"milestone_id":"m1","contract_id":"c1","amount":300,"sequence":1,"status":"pending"}`)
		for _, mt := range []MessageType{MessageMilestone, MessageMilestoneActivated, MessageMilestoneCompleted} {
			v, err := DecodeMessageData(mt, raw)
			require.NoError(t, err)
			assert.Equal(t, "m1", v.(*MilestoneEventData).MilestoneID)
		}
	})

	t.Run("missing payload is a hard error", func(t *testing.T) {
		_, err := DecodeMessageData(MessageOffer, nil)
		require.Error(t, err)
	})

	t.Run("malformed payload is a hard error", func(t *testing.T) {
		_, err := DecodeMessageData(MessageOffer, json.RawMessage(`{"amount":"lots"}`))
		require.Error(t, err)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := DecodeMessageData(MessageType("sticker"), json.RawMessage(`{}`))
		require.ErrorIs(t, err, ErrUnknownMessageType)
	})
}

func TestDecodeOfferValidation(t *testing.T) {
	t.Parallel()

	base := func() OfferData {
		return OfferData{
			ServiceID:    strp("svc-1"),
			ContractType: ContractOneTime,
			Amount:       400,
			Status:       InteractivePending,
		}
	}

	cases := []struct {
		name   string
		mutate func(*OfferData)
	}{
		{"no subject", func(o *OfferData) { o.ServiceID = nil }},
		{"both subjects", func(o *OfferData) { o.JobID = strp("job-1") }},
		{"zero amount", func(o *OfferData) { o.Amount = 0 }},
		{"unknown contract type", func(o *OfferData) { o.ContractType = "retainer" }},
		{"unknown status", func(o *OfferData) { o.Status = "maybe" }},
		{"installment without milestones", func(o *OfferData) {
			o.ContractType = ContractInstallment
			o.Milestones = nil
		}},
		{"installment with zero milestone", func(o *OfferData) {
			o.ContractType = ContractInstallment
			o.Milestones = []OfferMilestone{{Amount: 0}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := base()
			tc.mutate(&o)
			raw, err := json.Marshal(o)
			require.NoError(t, err)
			_, err = DecodeMessageData(MessageOffer, raw)
			require.Error(t, err)
		})
	}
}

func TestContractValidate(t *testing.T) {
	t.Parallel()

	valid := func() Contract {
		return Contract{
			BuyerID:      "b1",
			SellerID:     "s1",
			ServiceID:    strp("svc-1"),
			ContractType: ContractOneTime,
			Amount:       100,
		}
	}

	c := valid()
	require.NoError(t, c.Validate())

	t.Run("subject is exactly one of job or service", func(t *testing.T) {
		c := valid()
		c.ServiceID = nil
		assert.ErrorIs(t, c.Validate(), ErrContractSubject)

		c = valid()
		c.JobID = strp("job-1")
		assert.ErrorIs(t, c.Validate(), ErrContractSubject)
	})

	t.Run("amount must be positive", func(t *testing.T) {
		c := valid()
		c.Amount = -5
		assert.ErrorIs(t, c.Validate(), ErrContractAmount)
	})

	t.Run("parties must be distinct", func(t *testing.T) {
		c := valid()
		c.SellerID = c.BuyerID
		assert.ErrorIs(t, c.Validate(), ErrContractParties)
	})

	t.Run("contract type must be known", func(t *testing.T) {
		c := valid()
		c.ContractType = "retainer"
		assert.Error(t, c.Validate())
	})
}
