package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// EscrowPolicy names the choices the escrow core leaves to deployment.
type EscrowPolicy struct {
	// RefundOnReject credits a rejected milestone's amount back to the buyer.
	// When false (the default) rejected funds stay escrowed pending
	// renegotiation.
	RefundOnReject bool
}

// Load reads .env if present. Missing files are fine; real deployments set
// the environment directly.
func Load() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
}

// Escrow returns the configured escrow policy.
func Escrow() EscrowPolicy {
	return EscrowPolicy{
		RefundOnReject: os.Getenv("ESCROW_REFUND_ON_REJECT") == "true",
	}
}

// JWTSecret returns the token signing key.
func JWTSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

// Port returns the HTTP listen port.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

// UploadDir is where the local-disk uploader stores attachment files.
func UploadDir() string {
	if d := os.Getenv("UPLOAD_DIR"); d != "" {
		return d
	}
	return "./uploads"
}

// BaseURL is the public URL prefix for uploaded files.
func BaseURL() string {
	if u := os.Getenv("APP_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}
