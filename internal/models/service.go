package models

import "time"

// AdditionalService is an optional add-on a seller offers on top of a listing.
type AdditionalService struct {
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// Service is a seller's offering. Read-mostly from the escrow core's
// perspective.
type Service struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Price              int64               `json:"price"`
	SellerID           string              `json:"seller_id"`
	Currency           string              `json:"currency"`
	Tags               []string            `json:"tags"`
	Images             []string            `json:"images"`
	AdditionalServices []AdditionalService `json:"additional_services"`
	CreatedAt          time.Time           `json:"created_at"`
}
