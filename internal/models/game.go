package models

// DashboardSummary is the aggregate pool view served by GET /dashboard/summary.
// GlobalEmissionPerSecond and DailyPoolTotal are wei strings; TotalRewardWeight
// is scaled by the backend weight scale (10000 per unit of multiplier).
type DashboardSummary struct {
	GlobalEmissionPerSecond string `json:"globalEmissionPerSecond"`
	TotalRewardWeight       string `json:"totalRewardWeight"`
	DailyPoolTotal          string `json:"dailyPoolTotal"`
	TotalPlayers            int    `json:"totalPlayers"`
	AlivePlayers            int    `json:"alivePlayers"`
}

type CheckInResponse struct {
	HP     int  `json:"hp"`
	MaxHP  int  `json:"maxHp"`
	Streak int  `json:"consecutiveCheckinDays"`
	Healed bool `json:"healed"`
}

type ReconnectRequest struct {
	Mode ReconnectMode `json:"mode"`
}

// ReconnectResponse carries the mode the server actually applied, which can
// be a downgrade from defibrillator to standard.
type ReconnectResponse struct {
	Mode ReconnectMode `json:"mode"`
	User UserStatus    `json:"user"`
}

// ClaimAuthorization is the backend-signed voucher redeemed by the claim
// contract. Amount is in wei.
type ClaimAuthorization struct {
	User      string `json:"user"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

type PurchaseConfirmRequest struct {
	ItemCode ItemCode `json:"itemCode"`
	TxHash   string   `json:"txHash"`
}

type PurchaseResponse struct {
	ItemCode ItemCode `json:"itemCode"`
	Quantity int      `json:"quantity"`
}
