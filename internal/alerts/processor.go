package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/lancehub-io/lancehub/internal/db"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		// Prefer docker hostname, fallback to localhost
		if host := os.Getenv("REDIS_HOST"); host != "" {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = host + ":" + port
		} else {
			redisAddr = "redis:6379"
			if os.Getenv("RUN_LOCAL") == "true" {
				redisAddr = "127.0.0.1:6379"
			}
		}
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMessageNew, handleMessageNew)
	mux.HandleFunc(TaskOfferReceived, handleOfferReceived)
	mux.HandleFunc(TaskContractAccepted, handleContractAccepted)
	mux.HandleFunc(TaskMilestonePaid, handleMilestonePaid)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"emails": 10,
			"alerts": 5,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

// contact resolves a user's display name and optional email address.
// Email is optional at signup, so a nil email means in-app only delivery.
func contact(userID string) (name string, email *string, err error) {
	err = db.Conn.QueryRow(context.Background(),
		`SELECT full_name, email FROM users WHERE id = $1`, userID,
	).Scan(&name, &email)
	return
}

// formatAmount renders minor currency units as a decimal string.
func formatAmount(n int64) string {
	return fmt.Sprintf("%d.%02d", n/100, n%100)
}

func deliver(userID, subject, body, tag string) error {
	name, email, err := contact(userID)
	if err != nil {
		return err
	}
	if email == nil {
		log.Printf("[notify] %s skipped email (no address) -> user=%s", tag, userID)
		return nil
	}
	if err := SendEmail(*email, subject, body); err != nil {
		log.Printf("[notify][ERROR] %s send failed: %v", tag, err)
		return err
	}
	log.Printf("[notify] %s sent -> to=%s user=%s (%s)", tag, *email, userID, name)
	return nil
}

func handleMessageNew(_ context.Context, t *asynq.Task) error {
	var p MessageNewPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	senderName, _, err := contact(p.SenderID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New message from %s", senderName)
	body := fmt.Sprintf("%s sent you a message on LanceHub. Open the chat to reply.", senderName)
	return deliver(p.Recipient, subject, body, "MessageNew")
}

func handleOfferReceived(_ context.Context, t *asynq.Task) error {
	var p OfferReceivedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	senderName, _, err := contact(p.SenderID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s sent you an offer", senderName)
	body := fmt.Sprintf("%s sent you an offer on LanceHub. Review it in the chat to accept or decline.", senderName)
	return deliver(p.Recipient, subject, body, "OfferReceived")
}

func handleContractAccepted(_ context.Context, t *asynq.Task) error {
	var p ContractAcceptedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	amount := formatAmount(p.Amount)
	if err := deliver(p.BuyerID, "Contract started",
		fmt.Sprintf("Contract %s is active. Amount %s is held in escrow.", p.ContractID, amount),
		"ContractAccepted"); err != nil {
		return err
	}
	return deliver(p.SellerID, "Contract started",
		fmt.Sprintf("Contract %s is active. Amount %s will be released as milestones complete.", p.ContractID, amount),
		"ContractAccepted")
}

func handleMilestonePaid(_ context.Context, t *asynq.Task) error {
	var p MilestonePaidPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	subject := "Milestone paid"
	body := fmt.Sprintf("Milestone %s on contract %s is paid. Amount %s has been released to your wallet.",
		p.MilestoneID, p.ContractID, formatAmount(p.Amount))
	return deliver(p.SellerID, subject, body, "MilestonePaid")
}
