package models

import "time"

// PlayerSnapshot is the locally held copy of a player's state. The server
// values are authoritative as of LastCheckpointTime/LastTickTime; the
// Health and ClaimableReward fields are refined locally between refreshes.
type PlayerSnapshot struct {
	Address string `json:"address"`

	Health             int       `json:"health"`
	MaxHealth          int       `json:"max_health"`
	CheckpointHealth   int       `json:"checkpoint_health"`
	LastCheckpointTime time.Time `json:"last_checkpoint_time"`
	Alive              bool      `json:"alive"`

	StreakDays         int     `json:"streak_days"`
	SurvivalMultiplier float64 `json:"survival_multiplier"`
	DopamineIndex      float64 `json:"dopamine_index"`

	ClaimableReward float64   `json:"claimable_reward"`
	ClaimedRewards  float64   `json:"claimed_rewards"` // lifetime, as counted by the backend
	EmissionRate    float64   `json:"emission_rate"`
	LastTickTime    time.Time `json:"last_tick_time"`

	IsAccountActivated bool   `json:"is_account_activated"`
	OwnedItems         []Item `json:"owned_items"`

	TokenBalance float64 `json:"token_balance"`
	ClaimNonce   uint64  `json:"claim_nonce"`

	GlobalStats *DashboardSummary `json:"global_stats,omitempty"`

	// Populated is false until the first successful reconciliation.
	Populated bool      `json:"populated"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s PlayerSnapshot) Clone() PlayerSnapshot {
	out := s
	if s.OwnedItems != nil {
		out.OwnedItems = make([]Item, len(s.OwnedItems))
		copy(out.OwnedItems, s.OwnedItems)
	}
	if s.GlobalStats != nil {
		stats := *s.GlobalStats
		out.GlobalStats = &stats
	}
	return out
}

func (s PlayerSnapshot) ItemQuantity(code ItemCode) int {
	for _, item := range s.OwnedItems {
		if item.Code == code {
			return item.Quantity
		}
	}
	return 0
}
