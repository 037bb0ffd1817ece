package models

import "time"

type ActionType string

const (
	ActionLogin     ActionType = "login"
	ActionCheckIn   ActionType = "checkin"
	ActionClaim     ActionType = "claim"
	ActionReconnect ActionType = "reconnect"
	ActionPurchase  ActionType = "purchase"
	ActionActivate  ActionType = "activate"
)

// ActionRecord is one entry of the per-address action journal.
type ActionRecord struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Type        ActionType `json:"type"`
	Success     bool       `json:"success"`
	Amount      float64    `json:"amount,omitempty"`
	TxHash      string     `json:"tx_hash,omitempty"`
	Description string     `json:"description"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
