package alerts

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

func enqueue(taskType string, payload any, queue string) error {
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(taskType, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue(queue))
	return err
}

// EnqueueMessageNew notifies the other chat participant of a new message
func EnqueueMessageNew(chatID, senderID, recipientID string) error {
	p := MessageNewPayload{ChatID: chatID, SenderID: senderID, Recipient: recipientID, SentAt: time.Now()}
	return enqueue(TaskMessageNew, p, "emails")
}

// EnqueueOfferReceived notifies the recipient that an offer or hire request landed in a chat
func EnqueueOfferReceived(chatID, senderID, recipientID string) error {
	p := OfferReceivedPayload{ChatID: chatID, SenderID: senderID, Recipient: recipientID, SentAt: time.Now()}
	return enqueue(TaskOfferReceived, p, "emails")
}

// EnqueueContractAccepted notifies both parties that an offer became a contract
func EnqueueContractAccepted(contractID, buyerID, sellerID string, amount int64) error {
	p := ContractAcceptedPayload{ContractID: contractID, BuyerID: buyerID, SellerID: sellerID, Amount: amount, SentAt: time.Now()}
	return enqueue(TaskContractAccepted, p, "emails")
}

// EnqueueMilestonePaid notifies the seller that escrow was released to their wallet
func EnqueueMilestonePaid(contractID, milestoneID, sellerID string, amount int64) error {
	p := MilestonePaidPayload{ContractID: contractID, MilestoneID: milestoneID, SellerID: sellerID, Amount: amount, SentAt: time.Now()}
	return enqueue(TaskMilestonePaid, p, "emails")
}
