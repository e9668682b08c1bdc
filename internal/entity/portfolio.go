package entity

import "time"

// Portfolio groups holdings under one owner. BaseCurrency is the display
// currency for reporting and is independent of each holding's own
// transaction currency.
type Portfolio struct {
	ID           uint64    `json:"id"`
	OwnerID      uint64    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	BaseCurrency string    `json:"base_currency"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	Active       bool      `json:"active"`
}
