package models

import "fmt"

type ReconnectMode string

const (
	// ReconnectStandard revives with a reset streak and forfeits unclaimed progress.
	ReconnectStandard ReconnectMode = "standard"
	// ReconnectDefibrillator keeps streak and unclaimed progress and consumes one pacemaker.
	ReconnectDefibrillator ReconnectMode = "defibrillator"
)

func (m ReconnectMode) Validate() error {
	switch m {
	case ReconnectStandard, ReconnectDefibrillator:
		return nil
	default:
		return fmt.Errorf("invalid reconnect mode: %s", m)
	}
}

type ItemCode string

const (
	ItemSoulMate  ItemCode = "soul-mate"
	ItemPacemaker ItemCode = "pacemaker"
)

type Item struct {
	Code     ItemCode `json:"code"`
	Quantity int      `json:"quantity"`
}

// CatalogItem is one entry of GET /items. Price is in token wei.
type CatalogItem struct {
	Code        ItemCode `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	MaxOwned    int      `json:"maxOwned,omitempty"`
}
