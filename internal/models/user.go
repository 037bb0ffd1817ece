package models

// PlayerStatus values reported by the backend.
const (
	PlayerStatusAlive        = "ALIVE"
	PlayerStatusDisconnected = "DISCONNECTED"
)

// UserStatus is the backend's per-address view of a player, as served by
// GET /users/{address}. Token amounts are 18-decimal fixed-point strings.
type UserStatus struct {
	Address                  string  `json:"address"`
	HP                       int     `json:"hp"`
	MaxHP                    int     `json:"maxHp"`
	Status                   string  `json:"status"`
	ConsecutiveCheckinDays   int     `json:"consecutiveCheckinDays"`
	Multiplier               float64 `json:"multiplier"`
	UnclaimedDays            int     `json:"unclaimedDays"`
	Claimable                string  `json:"claimable"`
	OptimisticClaimedRewards string  `json:"optimisticClaimedRewards"`
	Activated                bool    `json:"activated"`
	Items                    []Item  `json:"items"`
}

func (u *UserStatus) IsAlive() bool {
	return u.Status == PlayerStatusAlive
}
