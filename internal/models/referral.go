package models

// Referral data served by the subgraph. Reward amounts are wei strings.

type ReferralStats struct {
	Level1ReferralCount int    `json:"level1ReferralCount"`
	Level2ReferralCount int    `json:"level2ReferralCount"`
	Level1TotalRewards  string `json:"level1TotalRewards"`
	Level2TotalRewards  string `json:"level2TotalRewards"`
	TotalRewards        string `json:"totalRewards"`
}

type ReferralStatsData struct {
	User *ReferralStats `json:"user"`
}

type ReferralAccount struct {
	ID                  string `json:"id"`
	Level1ReferralCount int    `json:"level1ReferralCount,omitempty"`
}

type Level1Referral struct {
	ID           string          `json:"id"`
	Invitee      ReferralAccount `json:"invitee"`
	RewardAmount string          `json:"rewardAmount"`
	Timestamp    string          `json:"timestamp"`
}

type Level2Referral struct {
	ID           string          `json:"id"`
	Invitee      ReferralAccount `json:"invitee"`
	Intermediary ReferralAccount `json:"intermediary"`
	RewardAmount string          `json:"rewardAmount"`
	Timestamp    string          `json:"timestamp"`
}

type ReferralList struct {
	Level1Referrals []Level1Referral `json:"level1Referrals"`
	Level2Referrals []Level2Referral `json:"level2Referrals"`
}

type ReferralListData struct {
	User *ReferralList `json:"user"`
}
